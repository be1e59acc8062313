package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/account/accounttest"
	"github.com/odyssey-erp/accounts/internal/auth"
	"github.com/odyssey-erp/accounts/internal/credential"
	"github.com/odyssey-erp/accounts/internal/shared"
	_ "github.com/odyssey-erp/accounts/testing"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "Abcd123!"
)

var fastParams = credential.Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

type env struct {
	service *auth.Service
	repo    *accounttest.Memory
	redis   *miniredis.Miniredis
	hasher  *credential.Hasher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	issuer, err := auth.NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	hasher := credential.NewHasher(fastParams)
	repo := accounttest.NewMemory()
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)
	repo.Seed(
		account.Account{ID: "admin-1", Name: "Admin", Email: "admin@example.com", PasswordHash: hash, Role: shared.RoleAdmin},
		account.Account{ID: "member-1", Name: "Ana Souza", Email: "ana@example.com", PasswordHash: hash, Role: shared.RoleMember},
	)
	return &env{
		service: auth.NewService(repo, hasher, issuer, auth.NewRedisRevocations(client), nil),
		repo:    repo,
		redis:   mr,
		hasher:  hasher,
	}
}

func TestLoginIssuesToken(t *testing.T) {
	e := newEnv(t)
	token, acc, err := e.service.Login(context.Background(), "  Admin@Example.com ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", acc.ID)
	assert.Equal(t, shared.RoleAdmin, token.Claims.Role)

	claims, err := e.service.Verify(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.Subject)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	e := newEnv(t)
	_, _, wrongPassword := e.service.Login(context.Background(), "ana@example.com", "Wrong123!")
	_, _, unknownEmail := e.service.Login(context.Background(), "nobody@example.com", testPassword)

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.True(t, errors.Is(wrongPassword, shared.ErrInvalidCredentials))
	assert.Equal(t, wrongPassword, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	e := newEnv(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	e.repo.Seed(account.Account{ID: "legacy-1", Name: "Old Timer", Email: "old@example.com", PasswordHash: string(legacy), Role: shared.RoleMember})

	_, _, err = e.service.Login(context.Background(), "old@example.com", testPassword)
	require.NoError(t, err)

	stored, ok := e.repo.Get("legacy-1")
	require.True(t, ok)
	assert.False(t, e.hasher.NeedsUpgrade(stored.PasswordHash))
	match, err := e.hasher.Verify(testPassword, stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	token, _, err := e.service.Login(ctx, "ana@example.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, e.service.Logout(ctx, &token.Claims))
	assert.True(t, e.redis.Exists("session:revoked:"+token.Claims.ID))

	_, err = e.service.Verify(ctx, token.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	e.redis.FastForward(2 * time.Hour)
	assert.False(t, e.redis.Exists("session:revoked:"+token.Claims.ID), "revocation expires with the token")
}

func TestVerifyFailsClosedWhenRedisDown(t *testing.T) {
	e := newEnv(t)
	token, _, err := e.service.Login(context.Background(), "ana@example.com", testPassword)
	require.NoError(t, err)

	e.redis.Close()
	_, err = e.service.Verify(context.Background(), token.Token)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestVerifyRejectsDeletedAccount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	token, _, err := e.service.Login(ctx, "ana@example.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, e.repo.Delete(ctx, "member-1"))
	_, err = e.service.Verify(ctx, token.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyUsesStoredRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	token, _, err := e.service.Login(ctx, "admin@example.com", testPassword)
	require.NoError(t, err)

	demoted, ok := e.repo.Get("admin-1")
	require.True(t, ok)
	demoted.Role = shared.RoleMember
	e.repo.Seed(demoted)

	claims, err := e.service.Verify(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, shared.RoleMember, claims.Role)
}

func TestCurrent(t *testing.T) {
	e := newEnv(t)
	acc, err := e.service.Current(context.Background(), &shared.Claims{Subject: "member-1", Role: shared.RoleMember})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", acc.Email)

	_, err = e.service.Current(context.Background(), &shared.Claims{Subject: "deleted"})
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
	_, err = e.service.Current(context.Background(), nil)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}
