package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/shared"
)

// MinSecretLength is the shortest signing secret accepted.
const MinSecretLength = 32

var (
	// ErrInvalidToken marks any token that fails parsing or verification.
	ErrInvalidToken = fmt.Errorf("%w: invalid session token", shared.ErrUnauthenticated)
	// ErrWeakSecret is returned by NewIssuer for short secrets.
	ErrWeakSecret = errors.New("auth: signing secret must be at least 32 bytes")
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer. Tokens expire ttl after issuance.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for acc.
func (i *Issuer) Issue(acc *account.Account) (SessionToken, error) {
	if acc == nil || acc.ID == "" {
		return SessionToken{}, errors.New("auth: issue: missing account")
	}
	if !acc.Role.Valid() {
		return SessionToken{}, fmt.Errorf("auth: issue: invalid role %q", acc.Role)
	}
	issuedAt := i.now().UTC().Truncate(time.Second)
	claims := shared.Claims{
		ID:        uuid.NewString(),
		Subject:   acc.ID,
		Role:      acc.Role,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(i.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.ID,
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
		Role: string(claims.Role),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return SessionToken{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return SessionToken{Token: signed, Claims: claims}, nil
}

// Parse verifies raw and returns its claims. Every failure is ErrInvalidToken.
func (i *Issuer) Parse(raw string) (*shared.Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	parsed := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, parsed, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed.Subject == "" || parsed.ID == "" {
		return nil, ErrInvalidToken
	}
	role, err := shared.ParseRole(parsed.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims := &shared.Claims{
		ID:        parsed.ID,
		Subject:   parsed.Subject,
		Role:      role,
		ExpiresAt: parsed.ExpiresAt.Time,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	return claims, nil
}
