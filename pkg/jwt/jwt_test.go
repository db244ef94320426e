package jwt

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("super-secret", time.Hour)
	require.NoError(t, err)
	return m
}

func TestNewManager_RejectsBadInput(t *testing.T) {
	_, err := NewManager("", time.Hour)
	require.Error(t, err)

	_, err = NewManager("s", 0)
	require.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	m := newManager(t)
	id := Identity{ID: "u-1", Name: "A", Email: "a@x.com"}

	tok, err := m.Issue(id)
	require.NoError(t, err)

	claims, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, id, claims.User)
	assert.Equal(t, "u-1", claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestVerify_Expired(t *testing.T) {
	m := newManager(t)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tok, err := m.Issue(Identity{ID: "u-1"})
	require.NoError(t, err)

	_, err = m.Verify(tok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerify_TamperedSignature(t *testing.T) {
	m := newManager(t)
	tok, err := m.Issue(Identity{ID: "u-1"})
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = m.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	other, err := NewManager("other-secret", time.Hour)
	require.NoError(t, err)
	tok, err := other.Issue(Identity{ID: "u-1"})
	require.NoError(t, err)

	_, err = newManager(t).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		User: Identity{ID: "u-1"},
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, claims).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newManager(t).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, Claims{User: Identity{ID: "u-1"}}).
		SignedString([]byte("super-secret"))
	require.NoError(t, err)

	_, err = newManager(t).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	_, err := newManager(t).Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{name: "absent", header: "", ok: false},
		{name: "blank", header: "   ", ok: false},
		{name: "no delimiter", header: "Bearer abc", ok: false},
		{name: "empty segment", header: "Bearer-", ok: false},
		{name: "token", header: "Bearer-abc.def.ghi", want: "abc.def.ghi", ok: true},
		{name: "token with dashes", header: "Bearer-ab-c.d-ef.g-hi", want: "ab-c.d-ef.g-hi", ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TokenFromHeader(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	m := newManager(t)
	valid, err := m.Issue(Identity{ID: "u-1", Name: "A", Email: "a@x.com"})
	require.NoError(t, err)

	var seen *Claims
	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name    string
		header  string
		status  int
		wantMsg string
	}{
		{name: "missing header", status: http.StatusUnauthorized, wantMsg: "No token, access denied."},
		{name: "no token segment", header: "Bearer", status: http.StatusUnauthorized, wantMsg: "No token, access denied."},
		{name: "garbage token", header: "Bearer-garbage", status: http.StatusUnauthorized, wantMsg: "Token is not valid"},
		{name: "valid", header: "Bearer-" + valid, status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.wantMsg != "" {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantMsg, body["msg"])
				assert.Nil(t, seen)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, "u-1", seen.User.ID)
			assert.Equal(t, "a@x.com", seen.User.Email)
		})
	}
}
