package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/wneessen/go-mail"
)

//go:embed templates/email/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/email/*.tmpl"))

const (
	subjectVerification    = "Verify your Workhive email address"
	subjectPasswordChanged = "Your Workhive password was changed"
	subjectAccountLocked   = "Your Workhive account is temporarily locked"
)

// SMTPConfig configures the outbound mail client
type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string

	// VerificationURL is the page the verification link points at; the
	// token is appended as a query parameter.
	VerificationURL string
}

// EmailNotifier sends the login-flow emails over SMTP
type EmailNotifier struct {
	config SMTPConfig
	client *mail.Client
}

// NewEmailNotifier creates an EmailNotifier from the SMTP config
func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	if config.From == "" {
		return nil, fmt.Errorf("email notifier requires a from address")
	}

	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30 * time.Second),
	}
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}
	if config.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "host", config.Host, "err", err)
		return nil, err
	}

	return &EmailNotifier{config: config, client: client}, nil
}

func (e *EmailNotifier) VerificationRequested(ctx context.Context, email, name, token string) error {
	link := fmt.Sprintf("%s?token=%s", e.config.VerificationURL, token)
	body, err := renderTemplate("verification_requested.tmpl", map[string]string{
		"Name": displayName(name),
		"Link": link,
	})
	if err != nil {
		return err
	}
	return e.send(ctx, email, subjectVerification, body)
}

func (e *EmailNotifier) PasswordChanged(ctx context.Context, email, name string) error {
	body, err := renderTemplate("password_changed.tmpl", map[string]string{
		"Name": displayName(name),
	})
	if err != nil {
		return err
	}
	return e.send(ctx, email, subjectPasswordChanged, body)
}

func (e *EmailNotifier) AccountLocked(ctx context.Context, email, name string, until time.Time) error {
	body, err := renderTemplate("account_locked.tmpl", map[string]string{
		"Name":  displayName(name),
		"Until": until.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return err
	}
	return e.send(ctx, email, subjectAccountLocked, body)
}

func (e *EmailNotifier) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(e.config.From); err != nil {
		slog.Error("Failed to set from address", "err", err)
		return err
	}
	if err := msg.To(to); err != nil {
		slog.Error("Failed to set to address", "err", err)
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := e.client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("Failed to send email", "to", to, "subject", subject, "err", err)
		return err
	}
	slog.Info("Email sent", "to", to, "subject", subject)
	return nil
}

func renderTemplate(name string, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Failed to render email template", "template", name, "err", err)
		return "", err
	}
	return buf.String(), nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
