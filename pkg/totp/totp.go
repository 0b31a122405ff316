// Package totp wraps time-based one-time password generation and
// verification for the two-factor login flow.
package totp

import (
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// DefaultPeriod is the authenticator-app step size in seconds
	DefaultPeriod = 30
	// DefaultSkew accepts codes one step either side of the current one
	DefaultSkew = 1
)

// Secret is a freshly provisioned TOTP secret with its otpauth:// URI
// for authenticator-app enrollment
type Secret struct {
	Secret string
	URL    string
}

// GenerateSecret provisions a new TOTP secret for the given account
func GenerateSecret(issuer, accountName string) (*Secret, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "account", accountName, "issuer", issuer, "err", err)
		return nil, err
	}
	return &Secret{
		Secret: key.Secret(),
		URL:    key.URL(),
	}, nil
}

// Verifier validates TOTP codes within a bounded clock-skew window
type Verifier struct {
	period uint
	skew   uint
}

// NewVerifier creates a Verifier accepting codes within skewSteps steps
// of the current time step
func NewVerifier(skewSteps uint) *Verifier {
	return &Verifier{
		period: DefaultPeriod,
		skew:   skewSteps,
	}
}

// VerifyCode checks a passcode against the secret at the current time
func (v *Verifier) VerifyCode(secret, passcode string) (bool, error) {
	return v.VerifyCodeAt(secret, passcode, time.Now().UTC())
}

// VerifyCodeAt checks a passcode against the secret at the given time
func (v *Verifier) VerifyCodeAt(secret, passcode string, at time.Time) (bool, error) {
	valid, err := totp.ValidateCustom(passcode, secret, at.UTC(), totp.ValidateOpts{
		Period:    v.period,
		Skew:      v.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		slog.Error("Failed to validate totp passcode", "err", err)
		return false, err
	}
	return valid, nil
}

// GenerateCode produces the passcode for a secret at the given time
func (v *Verifier) GenerateCode(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at.UTC(), totp.ValidateOpts{
		Period:    v.period,
		Skew:      v.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		slog.Error("Failed to generate totp passcode", "err", err)
		return "", err
	}
	return code, nil
}
