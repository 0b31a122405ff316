package password

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Policy defines the requirements for password complexity
type Policy struct {
	MinLength          int
	RequireUppercase   bool
	RequireLowercase   bool
	RequireDigit       bool
	RequireSpecialChar bool
	MaxRepeatedChars   int
}

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// DefaultPolicy returns a default password policy
func DefaultPolicy() *Policy {
	return &Policy{
		MinLength:        8,
		RequireUppercase: false,
		RequireLowercase: true,
		RequireDigit:     true,
		MaxRepeatedChars: 3,
	}
}

// Validate verifies that a password meets the complexity requirements
func (p *Policy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}

	if p.RequireUppercase && !upperRe.MatchString(password) {
		return errors.New("password must contain at least one uppercase letter")
	}

	if p.RequireLowercase && !lowerRe.MatchString(password) {
		return errors.New("password must contain at least one lowercase letter")
	}

	if p.RequireDigit && !digitRe.MatchString(password) {
		return errors.New("password must contain at least one digit")
	}

	if p.RequireSpecialChar && !specialRe.MatchString(password) {
		return errors.New("password must contain at least one special character")
	}

	if p.MaxRepeatedChars > 0 && hasRepeatedChars(password, p.MaxRepeatedChars+1) {
		return fmt.Errorf("password cannot contain more than %d consecutive repeated characters", p.MaxRepeatedChars)
	}

	return nil
}

func hasRepeatedChars(password string, runLength int) bool {
	for i := 0; i+runLength <= len(password); i++ {
		if strings.Count(password[i:i+runLength], string(password[i])) == runLength {
			return true
		}
	}
	return false
}
