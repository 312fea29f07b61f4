package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("identity: missing bearer token")
	ErrInvalidToken = errors.New("identity: invalid token")
)

// DefaultTokenTTL is used when TokenConfig.TTL is zero.
const DefaultTokenTTL = 24 * time.Hour

// TokenConfig configures token issuing and verification.
type TokenConfig struct {
	// Secret is the HMAC key. Required.
	Secret []byte

	// Issuer is written to and required in the iss claim.
	Issuer string

	// TTL is the lifetime of issued tokens.
	// Default: 24h
	TTL time.Duration
}

// Issuer signs HS256 tokens whose subject is an account id.
type Issuer struct {
	cfg TokenConfig
	now func() time.Time
}

// NewIssuer returns an Issuer. The secret must not be empty.
func NewIssuer(cfg TokenConfig) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("identity: token secret required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	return &Issuer{cfg: cfg, now: time.Now}, nil
}

// Issue returns a signed token for account.
func (i *Issuer) Issue(account AccountID) (string, error) {
	if account == "" {
		return "", fmt.Errorf("identity: empty account")
	}
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   string(account),
		Issuer:    i.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// Verifier checks tokens produced by an Issuer with the same secret.
type Verifier struct {
	cfg    TokenConfig
	parser *jwt.Parser
}

// NewVerifier returns a Verifier. The secret must not be empty.
func NewVerifier(cfg TokenConfig) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("identity: token secret required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Verifier{cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

// Verify checks the token and returns its subject.
func (v *Verifier) Verify(tokenString string) (AccountID, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.cfg.Secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return AccountID(claims.Subject), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
