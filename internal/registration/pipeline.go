// Package registration turns untrusted sign-up input into a persisted member account.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/address"
	"github.com/odyssey-erp/accounts/internal/policy"
	"github.com/odyssey-erp/accounts/internal/shared"
)

// Input is the raw sign-up payload.
type Input struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	PostalCode string `json:"postalCode,omitempty"`
}

// Resolver resolves postal codes to addresses.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (address.Address, error)
}

// Hasher turns a plaintext password into a storable hash.
type Hasher interface {
	Hash(password string) (string, error)
}

// Pipeline runs the registration stages in order, stopping at the first failing one:
// validation, uniqueness, address enrichment, hashing, persistence.
type Pipeline struct {
	repo     account.Repository
	emails   *policy.Validator
	resolver Resolver
	hasher   Hasher
	logger   *slog.Logger
}

// NewPipeline wires the pipeline. resolver may be nil, in which case postal codes are
// stored without enrichment.
func NewPipeline(repo account.Repository, emails *policy.Validator, resolver Resolver, hasher Hasher, logger *slog.Logger) *Pipeline {
	if emails == nil {
		emails = policy.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{repo: repo, emails: emails, resolver: resolver, hasher: hasher, logger: logger}
}

type validated struct {
	name       string
	email      string
	password   string
	postalCode string
}

// Register validates in and creates a member account. Errors are a
// *shared.ValidationError, shared.ErrEmailInUse, or an internal failure.
func (p *Pipeline) Register(ctx context.Context, in Input) (*account.Account, error) {
	v, err := p.validate(in)
	if err != nil {
		return nil, err
	}

	if _, err := p.repo.FindByEmail(ctx, v.email); err == nil {
		return nil, shared.ErrEmailInUse
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("registration: uniqueness check: %w", err)
	}

	acc := account.Account{
		ID:    uuid.NewString(),
		Name:  v.name,
		Email: v.email,
		Role:  shared.RoleMember,
	}
	if v.postalCode != "" {
		code := v.postalCode
		acc.PostalCode = &code
		if err := p.enrich(ctx, &acc); err != nil {
			return nil, err
		}
	}

	hash, err := p.hasher.Hash(v.password)
	if err != nil {
		return nil, fmt.Errorf("registration: hash password: %w", err)
	}
	acc.PasswordHash = hash

	created, err := p.repo.Create(ctx, acc)
	if err != nil {
		if errors.Is(err, shared.ErrEmailInUse) {
			return nil, shared.ErrEmailInUse
		}
		return nil, fmt.Errorf("registration: create account: %w", err)
	}
	p.logger.Info("account registered",
		slog.String("account_id", created.ID),
		slog.Bool("address_enriched", created.Region != nil))
	return created, nil
}

func (p *Pipeline) validate(in Input) (validated, error) {
	verr := shared.NewValidationError()

	name, violations := policy.Name(in.Name)
	for _, msg := range policy.Messages(violations) {
		verr.Add("name", msg)
	}
	email, violations := p.emails.Email(in.Email)
	for _, msg := range policy.Messages(violations) {
		verr.Add("email", msg)
	}
	for _, msg := range policy.Messages(policy.Password(in.Password)) {
		verr.Add("password", msg)
	}
	var postalCode string
	if in.PostalCode != "" {
		code, err := address.NormalizePostalCode(in.PostalCode)
		if err != nil {
			verr.Add("postalCode", "postal code must have 8 digits, optionally as 00000-000")
		}
		postalCode = code
	}

	if err := verr.OrNil(); err != nil {
		return validated{}, err
	}
	return validated{name: name, email: email, password: in.Password, postalCode: postalCode}, nil
}

// enrich fills region and locality. A postal code that does not exist rejects the
// registration; an unavailable upstream only drops the enrichment.
func (p *Pipeline) enrich(ctx context.Context, acc *account.Account) error {
	if p.resolver == nil {
		return nil
	}
	addr, err := p.resolver.Resolve(ctx, *acc.PostalCode)
	switch {
	case err == nil:
		region, locality := addr.Region, addr.Locality
		acc.Region = &region
		acc.Locality = &locality
		return nil
	case errors.Is(err, address.ErrNotFound):
		verr := shared.NewValidationError()
		verr.Add("postalCode", "postal code not found")
		return verr
	case errors.Is(err, shared.ErrUpstream):
		p.logger.Warn("address lookup unavailable, registering without address",
			slog.String("postal_code", *acc.PostalCode),
			slog.Any("error", err))
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("registration: address lookup: %w", ctx.Err())
	default:
		return fmt.Errorf("registration: address lookup: %w", err)
	}
}
