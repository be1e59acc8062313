// Package accounttest provides an in-memory account.Repository for tests.
package accounttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/accounts/internal/account"
	"github.com/odyssey-erp/accounts/internal/shared"
)

// Memory is a concurrency-safe account.Repository that enforces email uniqueness the
// way the database's unique index does.
type Memory struct {
	mu   sync.Mutex
	byID map[string]account.Account
	now  func() time.Time

	// CreateErr, when set, is returned by the next Create call.
	CreateErr error
	Creates   int
}

// NewMemory returns an empty repository.
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]account.Account), now: time.Now}
}

// Seed inserts accounts directly, bypassing uniqueness checks.
func (m *Memory) Seed(accounts ...account.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range accounts {
		if acc.CreatedAt.IsZero() {
			acc.CreatedAt = m.now()
			acc.UpdatedAt = acc.CreatedAt
		}
		m.byID[acc.ID] = acc
	}
}

// Get returns a copy of the stored account.
func (m *Memory) Get(id string) (account.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.byID[id]
	return acc, ok
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.byID {
		if acc.Email == email {
			return &acc, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *Memory) FindByID(_ context.Context, id string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &acc, nil
}

func (m *Memory) Create(_ context.Context, acc account.Account) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates++
	if err := m.CreateErr; err != nil {
		m.CreateErr = nil
		return nil, err
	}
	for _, existing := range m.byID {
		if existing.Email == acc.Email {
			return nil, shared.ErrEmailInUse
		}
	}
	acc.CreatedAt = m.now()
	acc.UpdatedAt = acc.CreatedAt
	m.byID[acc.ID] = acc
	return &acc, nil
}

func (m *Memory) List(_ context.Context) ([]account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]account.Account, 0, len(m.byID))
	for _, acc := range m.byID {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Update(_ context.Context, id string, input account.UpdateInput) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	for otherID, existing := range m.byID {
		if otherID != id && existing.Email == input.Email {
			return nil, shared.ErrEmailInUse
		}
	}
	acc.Name = input.Name
	acc.Email = input.Email
	acc.UpdatedAt = m.now()
	m.byID[id] = acc
	return &acc, nil
}

func (m *Memory) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	acc.PasswordHash = hash
	m.byID[id] = acc
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *Memory) Stats(_ context.Context, since time.Time) (account.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s account.Stats
	for _, acc := range m.byID {
		s.Total++
		if acc.Role == shared.RoleAdmin {
			s.Admins++
		} else {
			s.Members++
		}
		if !acc.CreatedAt.Before(since) {
			s.Recent++
		}
	}
	return s, nil
}

var _ account.Repository = (*Memory)(nil)
