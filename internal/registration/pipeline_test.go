package registration_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/account/accounttest"
	"github.com/odyssey-erp/accounts/internal/address"
	"github.com/odyssey-erp/accounts/internal/credential"
	"github.com/odyssey-erp/accounts/internal/registration"
	"github.com/odyssey-erp/accounts/internal/shared"
)

var fastParams = credential.Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

type stubResolver struct {
	mu    sync.Mutex
	addr  address.Address
	err   error
	calls []string
}

func (s *stubResolver) Resolve(_ context.Context, raw string) (address.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, raw)
	return s.addr, s.err
}

type countingHasher struct {
	*credential.Hasher
	calls int
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.calls++
	return h.Hasher.Hash(password)
}

type fixture struct {
	pipeline *registration.Pipeline
	repo     *accounttest.Memory
	resolver *stubResolver
	hasher   *countingHasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     accounttest.NewMemory(),
		resolver: &stubResolver{addr: address.Address{PostalCode: "01310930", Region: "SP", Locality: "São Paulo"}},
		hasher:   &countingHasher{Hasher: credential.NewHasher(fastParams)},
	}
	f.pipeline = registration.NewPipeline(f.repo, nil, f.resolver, f.hasher, nil)
	return f
}

func validInput() registration.Input {
	return registration.Input{Name: "Ana Souza", Email: "Ana@Example.com", Password: "Abcd123!", PostalCode: "01310-930"}
}

func TestRegisterCreatesMember(t *testing.T) {
	f := newFixture(t)

	acc, err := f.pipeline.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", acc.Email)
	assert.Equal(t, shared.RoleMember, acc.Role)
	require.NotNil(t, acc.PostalCode)
	assert.Equal(t, "01310930", *acc.PostalCode)
	require.NotNil(t, acc.Region)
	assert.Equal(t, "SP", *acc.Region)
	assert.Equal(t, "São Paulo", *acc.Locality)

	stored, ok := f.repo.Get(acc.ID)
	require.True(t, ok)
	assert.NotContains(t, stored.PasswordHash, "Abcd123!")
	h := credential.NewHasher(fastParams)
	match, err := h.Verify("Abcd123!", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestRegisterWithoutPostalCodeSkipsLookup(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.PostalCode = ""

	acc, err := f.pipeline.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, acc.PostalCode)
	assert.Empty(t, f.resolver.calls)
}

func TestRegisterCollectsEveryViolation(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Register(context.Background(), registration.Input{
		Name: "A", Email: "not-an-email", Password: "abc12345", PostalCode: "123",
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"name", "email", "password", "postalCode"}, keys(verr.Fields))
	assert.Len(t, verr.Fields["password"], 2, "missing upper and missing symbol")

	assert.Empty(t, f.resolver.calls, "later stages must not run")
	assert.Zero(t, f.hasher.calls)
	assert.Zero(t, f.repo.Creates)
}

func TestRegisterEmailConflictIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := validInput()
	first.Email = "Admin@Example.com"
	_, err := f.pipeline.Register(ctx, first)
	require.NoError(t, err)

	second := validInput()
	second.Email = "admin@example.com"
	_, err = f.pipeline.Register(ctx, second)
	assert.ErrorIs(t, err, shared.ErrEmailInUse)
	assert.Equal(t, 1, f.hasher.calls, "conflict stops before hashing")
}

func TestRegisterPostalCodeNotFound(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = address.ErrNotFound

	_, err := f.pipeline.Register(context.Background(), validInput())
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "postalCode")
	assert.Zero(t, f.repo.Creates)
}

func TestRegisterUpstreamDownStillCreates(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = fmt.Errorf("%w: connection refused", shared.ErrUpstream)

	acc, err := f.pipeline.Register(context.Background(), validInput())
	require.NoError(t, err)
	require.NotNil(t, acc.PostalCode)
	assert.Equal(t, "01310930", *acc.PostalCode)
	assert.Nil(t, acc.Region)
	assert.Nil(t, acc.Locality)
}

func TestRegisterUniqueViolationRace(t *testing.T) {
	f := newFixture(t)
	// Another request inserted the same email between pre-check and insert.
	f.repo.CreateErr = shared.ErrEmailInUse

	_, err := f.pipeline.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, shared.ErrEmailInUse)
}

func TestRegisterPostgresUniqueViolation(t *testing.T) {
	f := newFixture(t)
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectQuery(`INSERT INTO accounts`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	repo := &pgErrRepo{Memory: f.repo, pg: account.NewRepository(mock)}
	pipeline := registration.NewPipeline(repo, nil, f.resolver, f.hasher, nil)

	_, err = pipeline.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, shared.ErrEmailInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.repo.CreateErr = errors.New("disk full")

	_, err := f.pipeline.Register(context.Background(), validInput())
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrValidation)
	assert.NotErrorIs(t, err, shared.ErrConflict)
}

// pgErrRepo answers reads from memory and sends Create through the PostgreSQL
// repository.
type pgErrRepo struct {
	*accounttest.Memory
	pg *account.PGRepository
}

func (r *pgErrRepo) Create(ctx context.Context, acc account.Account) (*account.Account, error) {
	return r.pg.Create(ctx, acc)
}

func keys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
