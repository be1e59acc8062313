package account_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/account/accounttest"
	"github.com/odyssey-erp/accounts/internal/credential"
	"github.com/odyssey-erp/accounts/internal/shared"
)

var fastParams = credential.Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

func newService(t *testing.T) (*account.Service, *accounttest.Memory) {
	t.Helper()
	repo := accounttest.NewMemory()
	return account.NewService(repo, nil, credential.NewHasher(fastParams), nil), repo
}

func seedPair(repo *accounttest.Memory) (adminID, memberID string) {
	adminID, memberID = uuid.NewString(), uuid.NewString()
	repo.Seed(
		account.Account{ID: adminID, Name: "Admin", Email: "admin@example.com", Role: shared.RoleAdmin},
		account.Account{ID: memberID, Name: "Ana Souza", Email: "ana@example.com", Role: shared.RoleMember},
	)
	return adminID, memberID
}

func TestDeleteRejectsSelf(t *testing.T) {
	svc, repo := newService(t)
	adminID, _ := seedPair(repo)

	err := svc.Delete(context.Background(), adminID, adminID)
	assert.ErrorIs(t, err, shared.ErrSelfDeletion)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, ok := repo.Get(adminID)
	assert.True(t, ok, "admin must survive a self-deletion attempt")
}

func TestDeleteSelfCheckedBeforeLookup(t *testing.T) {
	svc, _ := newService(t)
	err := svc.Delete(context.Background(), "not-a-uuid", "not-a-uuid")
	assert.ErrorIs(t, err, shared.ErrSelfDeletion)
}

func TestDeleteOtherAccount(t *testing.T) {
	svc, repo := newService(t)
	adminID, memberID := seedPair(repo)

	require.NoError(t, svc.Delete(context.Background(), adminID, memberID))
	_, ok := repo.Get(memberID)
	assert.False(t, ok)

	assert.ErrorIs(t, svc.Delete(context.Background(), adminID, memberID), shared.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), adminID, "bogus"), shared.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	svc, repo := newService(t)
	adminID, memberID := seedPair(repo)
	ctx := context.Background()

	updated, err := svc.Update(ctx, memberID, account.UpdateInput{Name: "  Ana Lima ", Email: " ANA.LIMA@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", updated.Name)
	assert.Equal(t, "ana.lima@example.com", updated.Email)
	assert.Equal(t, shared.RoleMember, updated.Role)

	_, err = svc.Update(ctx, memberID, account.UpdateInput{Name: "Ana Lima", Email: "Admin@Example.com"})
	assert.ErrorIs(t, err, shared.ErrEmailInUse)

	_, err = svc.Update(ctx, adminID, account.UpdateInput{Name: "Admin", Email: "admin@example.com"})
	assert.NoError(t, err, "keeping one's own email is not a conflict")

	_, err = svc.Update(ctx, uuid.NewString(), account.UpdateInput{Name: "Ghost User", Email: "ghost@example.com"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Update(ctx, memberID, account.UpdateInput{Name: "A", Email: "nope"})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "email")
}

func TestStatsAndList(t *testing.T) {
	svc, repo := newService(t)
	seedPair(repo)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, account.Stats{Total: 2, Admins: 1, Members: 1, Recent: 2}, stats)

	accounts, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestListEmptyIsNotNil(t *testing.T) {
	svc, _ := newService(t)
	accounts, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, accounts)
}

func TestEnsureAdmin(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	admin := account.BootstrapAdmin{Name: "Root Admin", Email: "Root@Example.com", Password: "Adm1n!pass"}

	created, err := svc.EnsureAdmin(ctx, admin)
	require.NoError(t, err)
	assert.True(t, created)

	stored, err := repo.FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, shared.RoleAdmin, stored.Role)
	assert.NotEqual(t, admin.Password, stored.PasswordHash)

	created, err = svc.EnsureAdmin(ctx, admin)
	require.NoError(t, err)
	assert.False(t, created, "second run is a no-op")
}

func TestEnsureAdminLogsCreationOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := account.NewService(accounttest.NewMemory(), nil, credential.NewHasher(fastParams), logger)
	admin := account.BootstrapAdmin{Name: "Root Admin", Email: "root@example.com", Password: "Adm1n!pass"}

	_, err := svc.EnsureAdmin(context.Background(), admin)
	require.NoError(t, err)
	_, err = svc.EnsureAdmin(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(buf.String(), "bootstrap admin created"))
}

func TestEnsureAdminRejectsWeakPassword(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.EnsureAdmin(context.Background(), account.BootstrapAdmin{Name: "Root Admin", Email: "root@example.com", Password: "admin"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
