package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/policy"
	"github.com/odyssey-erp/accounts/internal/shared"
)

// Accounts is the account storage the service reads from.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*account.Account, error)
	FindByID(ctx context.Context, id string) (*account.Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// PasswordVerifier checks passwords against stored hashes.
type PasswordVerifier interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	VerifyDummy(password string)
	NeedsUpgrade(encoded string) bool
}

// LoginObserver counts login attempts by result.
type LoginObserver interface {
	ObserveLogin(result string)
}

// Service wraps authentication business rules.
type Service struct {
	accounts    Accounts
	hasher      PasswordVerifier
	issuer      *Issuer
	revocations Revocations
	logger      *slog.Logger
	observer    LoginObserver
}

// NewService constructs a new Service. revocations may be nil, which disables logout
// revocation.
func NewService(accounts Accounts, hasher PasswordVerifier, issuer *Issuer, revocations Revocations, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{accounts: accounts, hasher: hasher, issuer: issuer, revocations: revocations, logger: logger}
}

// WithObserver attaches login metrics.
func (s *Service) WithObserver(o LoginObserver) *Service {
	s.observer = o
	return s
}

// Login validates credentials and mints a session token. Unknown emails and wrong
// passwords both yield shared.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (SessionToken, *account.Account, error) {
	token, acc, err := s.login(ctx, email, password)
	if s.observer != nil {
		switch {
		case err == nil:
			s.observer.ObserveLogin("success")
		case errors.Is(err, shared.ErrInvalidCredentials):
			s.observer.ObserveLogin("invalid")
		default:
			s.observer.ObserveLogin("error")
		}
	}
	return token, acc, err
}

func (s *Service) login(ctx context.Context, email, password string) (SessionToken, *account.Account, error) {
	acc, err := s.accounts.FindByEmail(ctx, policy.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return SessionToken{}, nil, fmt.Errorf("auth: login: %w", err)
		}
		s.hasher.VerifyDummy(password)
		return SessionToken{}, nil, shared.ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(password, acc.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", slog.String("account_id", acc.ID), slog.Any("error", err))
		return SessionToken{}, nil, shared.ErrInvalidCredentials
	}
	if !ok {
		return SessionToken{}, nil, shared.ErrInvalidCredentials
	}

	if s.hasher.NeedsUpgrade(acc.PasswordHash) {
		s.upgradeHash(ctx, acc.ID, password)
	}

	token, err := s.issuer.Issue(acc)
	if err != nil {
		return SessionToken{}, nil, err
	}
	return token, acc, nil
}

func (s *Service) upgradeHash(ctx context.Context, id, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.accounts.UpdatePasswordHash(ctx, id, hash)
	}
	if err != nil {
		s.logger.Warn("password hash upgrade failed", slog.String("account_id", id), slog.Any("error", err))
		return
	}
	s.logger.Info("password hash upgraded", slog.String("account_id", id))
}

// Verify parses raw and rejects revoked tokens and tokens whose account no longer
// exists. The role is taken from the stored account. A failing revocation store or
// account store rejects the token.
func (s *Service) Verify(ctx context.Context, raw string) (*shared.Claims, error) {
	claims, err := s.issuer.Parse(raw)
	if err != nil {
		return nil, err
	}
	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.Error("revocation check failed", slog.Any("error", err))
			return nil, ErrInvalidToken
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}
	acc, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("session account lookup failed", slog.String("account_id", claims.Subject), slog.Any("error", err))
		}
		return nil, ErrInvalidToken
	}
	claims.Role = acc.Role
	return claims, nil
}

// Logout revokes the token described by claims until its expiry.
func (s *Service) Logout(ctx context.Context, claims *shared.Claims) error {
	if claims == nil || s.revocations == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt))
}

// Current returns the account behind claims.
func (s *Service) Current(ctx context.Context, claims *shared.Claims) (*account.Account, error) {
	if claims == nil {
		return nil, shared.ErrUnauthenticated
	}
	acc, err := s.accounts.FindByID(ctx, claims.Subject)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrUnauthenticated
	}
	return acc, err
}
