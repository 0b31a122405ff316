// Package notify delivers the emails the login flows trigger. Callers treat
// delivery as fire-and-forget; a failed send never fails the flow that
// requested it.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Notifier is the outbound mail surface of the login service
type Notifier interface {
	// VerificationRequested asks the recipient to confirm their address.
	// Token is the single-use verification token to embed in the link.
	VerificationRequested(ctx context.Context, email, name, token string) error

	// PasswordChanged tells the recipient their password was changed
	PasswordChanged(ctx context.Context, email, name string) error

	// AccountLocked tells the recipient their account is locked until the
	// given time
	AccountLocked(ctx context.Context, email, name string, until time.Time) error
}

// NoopNotifier drops every notification. Use it in tests and in deployments
// without an SMTP server.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

func (n *NoopNotifier) VerificationRequested(_ context.Context, email, _, _ string) error {
	slog.Debug("Skipping verification email", "email", email)
	return nil
}

func (n *NoopNotifier) PasswordChanged(_ context.Context, email, _ string) error {
	slog.Debug("Skipping password changed email", "email", email)
	return nil
}

func (n *NoopNotifier) AccountLocked(_ context.Context, email, _ string, _ time.Time) error {
	slog.Debug("Skipping account locked email", "email", email)
	return nil
}
