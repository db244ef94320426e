package users

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := &User{ID: "1", Name: "A", Email: "a@x.io", PasswordHash: "h1", CreatedAt: time.Unix(10, 0)}
	second := &User{ID: "2", Name: "B", Email: "b@x.io", PasswordHash: "h2", CreatedAt: time.Unix(5, 0)}

	res, err := s.RegisterUser(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)
	assert.Equal(t, map[string]string{"message": "User A registered", "id": "1"}, res.Body)

	res, err = s.RegisterUser(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)

	res, err = s.RegisterUser(ctx, &User{ID: "3", Name: "C", Email: "a@x.io"})
	require.NoError(t, err)
	assert.Equal(t, duplicateResult(), res)

	all, err := s.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[0].ID)

	// Email changes re-index and conflicts are refused.
	assert.ErrorIs(t, s.UpdateProfile(ctx, &User{ID: "2", Email: "a@x.io"}), ErrAlreadyExists)
	profile := &User{ID: "2", Name: "B", Email: "new@x.io"}
	require.NoError(t, s.UpdateProfile(ctx, profile))
	assert.Equal(t, "h2", profile.PasswordHash, "hash is kept and reported back")
	_, err = s.GetUserByEmail(ctx, "b@x.io")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.GetUserByEmail(ctx, "new@x.io")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(5, 0), got.CreatedAt)

	assert.ErrorIs(t, s.UpdateProfile(ctx, &User{ID: "9", Email: "z@x.io"}), ErrNotFound)

	require.NoError(t, s.UpdatePassword(ctx, "2", "h3"))
	again, _ := s.GetUserByID(ctx, "2")
	assert.Equal(t, "h3", again.PasswordHash)
	assert.Equal(t, "new@x.io", again.Email)
	assert.ErrorIs(t, s.UpdatePassword(ctx, "9", "h"), ErrNotFound)

	// Returned users are copies.
	got.Name = "mutated"
	again, _ = s.GetUserByID(ctx, "2")
	assert.Equal(t, "B", again.Name)
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	a, err := h.Hash("secret1")
	require.NoError(t, err)
	b, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "hashes are salted")

	assert.NoError(t, h.Compare(a, "secret1"))
	assert.ErrorIs(t, h.Compare(a, "wrong"), ErrPasswordMismatch)
	assert.Error(t, h.Compare("not-a-hash", "secret1"))
	assert.ErrorIs(t, h.Compare(a, "secret1"+strings.Repeat("x", MaxPasswordBytes)), ErrPasswordMismatch)
}
