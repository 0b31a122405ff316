// Package token is the token issuer: it mints and parses the signed access,
// refresh, challenge, and email-verification tokens, and tracks refresh-token
// families so rotation replay can be detected.
package token

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	autherr "github.com/workhive/auth/pkg/errors"
)

// Use distinguishes what a signed token is good for
type Use string

const (
	UseAccess            Use = "access"
	UseRefresh           Use = "refresh"
	UseChallenge         Use = "challenge"
	UseEmailVerification Use = "verify_email"
)

// Claims carried by every token this package signs. FamilyID ties access and
// refresh tokens to the refresh lineage they were minted in; Provider records
// which login path issued them.
type Claims struct {
	Use      Use    `json:"token_use"`
	FamilyID string `json:"fid,omitempty"`
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// Generator signs and parses tokens
type Generator interface {
	// Generate mints a signed token for the subject. FamilyID and provider
	// may be empty for token uses that do not carry them.
	Generate(subject string, use Use, expiry time.Duration, familyID, provider string) (string, *Claims, error)

	// Parse validates signature and registered claims and returns the claims
	Parse(tokenStr string) (*Claims, error)

	// ParseExpired validates the signature only, so claims of an expired
	// token can still be read for revocation bookkeeping
	ParseExpired(tokenStr string) (*Claims, error)
}

// JWTGenerator implements Generator with HS256 and a shared server secret
type JWTGenerator struct {
	secret   []byte
	issuer   string
	audience string
}

// NewJWTGenerator creates a JWTGenerator. An empty secret is a fatal
// configuration error, surfaced at construction rather than per request.
func NewJWTGenerator(secret, issuer, audience string) (*JWTGenerator, error) {
	if secret == "" {
		return nil, autherr.Configuration("jwt signing secret is required")
	}
	return &JWTGenerator{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}, nil
}

// Generate implements Generator.Generate
func (g *JWTGenerator) Generate(subject string, use Use, expiry time.Duration, familyID, provider string) (string, *Claims, error) {
	now := time.Now().UTC()
	claims := &Claims{
		Use:      use,
		FamilyID: familyID,
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.issuer,
			Subject:   subject,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{g.audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(g.secret)
	if err != nil {
		slog.Error("Failed to sign token", "use", use, "err", err)
		return "", nil, err
	}
	return ss, claims, nil
}

// Parse implements Generator.Parse
func (g *JWTGenerator) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, g.keyFunc)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ParseExpired implements Generator.ParseExpired
func (g *JWTGenerator) ParseExpired(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, g.keyFunc)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func (g *JWTGenerator) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return g.secret, nil
}
