package users

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store captures the persistence operations the service depends on.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	RegisterUser(ctx context.Context, u *User) (RegisterResult, error)
	// UpdateProfile writes name, email, phone and picture. The stored
	// password hash is left as it is.
	UpdateProfile(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	GetAllUsers(ctx context.Context) ([]User, error)
}

func registeredResult(u *User) RegisterResult {
	return RegisterResult{
		Status: http.StatusCreated,
		Body: map[string]string{
			"message": fmt.Sprintf("User %s registered", u.Name),
			"id":      u.ID,
		},
	}
}

func duplicateResult() RegisterResult {
	return RegisterResult{Status: http.StatusBadRequest, Body: NewErrorBody("User already exists")}
}

// MemoryStore keeps users in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]User{}, byEmail: map[string]string{}}
}

func emailKey(email string) string { return strings.TrimSpace(email) }

// GetUserByEmail implements Store.
func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[emailKey(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := m.byID[id]
	return &u, nil
}

// GetUserByID implements Store.
func (m *MemoryStore) GetUserByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// RegisterUser implements Store.
func (m *MemoryStore) RegisterUser(_ context.Context, u *User) (RegisterResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[emailKey(u.Email)]; taken {
		return duplicateResult(), nil
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	m.byID[u.ID] = *u
	m.byEmail[emailKey(u.Email)] = u.ID
	return registeredResult(u), nil
}

// UpdateProfile implements Store.
func (m *MemoryStore) UpdateProfile(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[u.ID]
	if !ok {
		return ErrNotFound
	}
	if owner, taken := m.byEmail[emailKey(u.Email)]; taken && owner != u.ID {
		return ErrAlreadyExists
	}
	delete(m.byEmail, emailKey(cur.Email))
	cur.Name = u.Name
	cur.Email = u.Email
	cur.Phone = u.Phone
	cur.ProfilePicture = u.ProfilePicture
	m.byID[u.ID] = cur
	m.byEmail[emailKey(cur.Email)] = cur.ID
	u.PasswordHash = cur.PasswordHash
	u.CreatedAt = cur.CreatedAt
	return nil
}

// UpdatePassword implements Store.
func (m *MemoryStore) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	cur.PasswordHash = hash
	m.byID[id] = cur
	return nil
}

// GetAllUsers implements Store. Users are ordered by creation time.
func (m *MemoryStore) GetAllUsers(_ context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
