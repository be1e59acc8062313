package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/accounts/internal/policy"
	"github.com/odyssey-erp/accounts/internal/shared"
)

// RecentWindow is how far back Stats counts new accounts.
const RecentWindow = 7 * 24 * time.Hour

// PasswordHasher produces storable password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Service implements account administration.
type Service struct {
	repo   Repository
	emails *policy.Validator
	hasher PasswordHasher
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, emails *policy.Validator, hasher PasswordHasher, logger *slog.Logger) *Service {
	if emails == nil {
		emails = policy.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, emails: emails, hasher: hasher, logger: logger, now: time.Now}
}

// List returns all accounts, newest first.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("account: list: %w", err)
	}
	if accounts == nil {
		accounts = []Account{}
	}
	return accounts, nil
}

// Update changes an account's name and email.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*Account, error) {
	verr := shared.NewValidationError()
	name, violations := policy.Name(input.Name)
	for _, msg := range policy.Messages(violations) {
		verr.Add("name", msg)
	}
	email, violations := s.emails.Email(input.Email)
	for _, msg := range policy.Messages(violations) {
		verr.Add("email", msg)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, shared.ErrNotFound
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	owner, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && owner.ID != id:
		return nil, shared.ErrEmailInUse
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("account: lookup email: %w", err)
	}
	return s.repo.Update(ctx, id, UpdateInput{Name: name, Email: email})
}

// Delete removes the account with the given id on behalf of actorID.
// An actor can never delete itself.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if id == actorID {
		return shared.ErrSelfDeletion
	}
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

// Stats summarises the account base.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.repo.Stats(ctx, s.now().Add(-RecentWindow))
	if err != nil {
		return Stats{}, fmt.Errorf("account: stats: %w", err)
	}
	return stats, nil
}

// EnsureAdmin creates the bootstrap administrator unless its email is taken.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, admin BootstrapAdmin) (bool, error) {
	if s.hasher == nil {
		return false, errors.New("account: ensure admin: no password hasher configured")
	}
	verr := shared.NewValidationError()
	name, violations := policy.Name(admin.Name)
	for _, msg := range policy.Messages(violations) {
		verr.Add("name", msg)
	}
	email := policy.NormalizeEmail(admin.Email)
	if email == "" {
		verr.Add("email", policy.ViolationEmailRequired.Message)
	}
	for _, msg := range policy.Messages(policy.Password(admin.Password)) {
		verr.Add("password", msg)
	}
	if err := verr.OrNil(); err != nil {
		return false, fmt.Errorf("account: ensure admin: %w", err)
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return false, fmt.Errorf("account: ensure admin: %w", err)
	}

	hash, err := s.hasher.Hash(admin.Password)
	if err != nil {
		return false, fmt.Errorf("account: ensure admin: %w", err)
	}
	created, err := s.repo.Create(ctx, Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         shared.RoleAdmin,
	})
	if errors.Is(err, shared.ErrEmailInUse) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("account: ensure admin: %w", err)
	}
	s.logger.Info("bootstrap admin created", slog.String("account_id", created.ID), slog.String("email", created.Email))
	return true, nil
}
