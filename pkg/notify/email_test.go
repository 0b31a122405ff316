package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplates(t *testing.T) {
	body, err := renderTemplate("verification_requested.tmpl", map[string]string{
		"Name": "Alice",
		"Link": "https://app.workhive.dev/verify-email?token=abc123",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Hi Alice,")
	assert.Contains(t, body, "https://app.workhive.dev/verify-email?token=abc123")

	body, err = renderTemplate("password_changed.tmpl", map[string]string{
		"Name": "Alice",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "password")

	until := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	body, err = renderTemplate("account_locked.tmpl", map[string]string{
		"Name":  "Alice",
		"Until": until.Format(time.RFC1123),
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Sun, 01 Jun 2025 12:30:00 UTC")
}

func TestRenderTemplate_UnknownName(t *testing.T) {
	_, err := renderTemplate("nope.tmpl", nil)
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Alice", displayName("Alice"))
	assert.Equal(t, "there", displayName(""))
}

func TestNewEmailNotifier_RequiresFrom(t *testing.T) {
	_, err := NewEmailNotifier(SMTPConfig{Host: "localhost", Port: 1025})
	assert.Error(t, err)
}

func TestNoopNotifier(t *testing.T) {
	n := NewNoopNotifier()
	ctx := context.Background()
	assert.NoError(t, n.VerificationRequested(ctx, "a@x.com", "Alice", "tok"))
	assert.NoError(t, n.PasswordChanged(ctx, "a@x.com", "Alice"))
	assert.NoError(t, n.AccountLocked(ctx, "a@x.com", "Alice", time.Now()))
}
