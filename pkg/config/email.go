package config

import (
	"github.com/workhive/auth/pkg/notify"
)

// EmailConfig holds SMTP email configuration. When Enabled is false the
// service falls back to the no-op notifier and login flows skip outbound
// mail entirely.
type EmailConfig struct {
	Enabled         bool   `env:"EMAIL_ENABLED" env-default:"false"`
	Host            string `env:"EMAIL_HOST" env-default:"localhost"`
	Port            uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username        string `env:"EMAIL_USERNAME" env-default:""`
	Password        string `env:"EMAIL_PASSWORD" env-default:""`
	From            string `env:"EMAIL_FROM" env-default:"noreply@workhive.io"`
	TLS             bool   `env:"EMAIL_TLS" env-default:"false"`
	VerificationURL string `env:"EMAIL_VERIFICATION_URL" env-default:"http://localhost:3000/verify-email"`
}

// ToSMTPConfig converts the config to a notify.SMTPConfig
func (e EmailConfig) ToSMTPConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:            e.Host,
		Port:            int(e.Port),
		TLS:             e.TLS,
		Username:        e.Username,
		Password:        e.Password,
		From:            e.From,
		VerificationURL: e.VerificationURL,
	}
}
