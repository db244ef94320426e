package jwt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// DefaultTTL matches the 360000s lifetime of login tokens.
const DefaultTTL = 100 * time.Hour

// ErrInvalidToken is returned for malformed, tampered or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the user payload embedded in every token.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Claims represents the JWT payload.
type Claims struct {
	User Identity `json:"user"`
	gojwt.RegisteredClaims
}

type ctxKey string

const claimsCtxKey ctxKey = "jwt_claims"

// Manager issues and verifies HS256 tokens with an injected secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	parser *gojwt.Parser
	now    func() time.Time
}

// NewManager builds a Manager. The secret must be non-empty and ttl positive.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("jwt ttl must be positive, got %s", ttl)
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		parser: gojwt.NewParser(
			gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
			gojwt.WithExpirationRequired(),
		),
		now: time.Now,
	}, nil
}

// TTL reports the lifetime given to issued tokens.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for the given identity.
func (m *Manager) Issue(id Identity) (string, error) {
	now := m.now()
	claims := Claims{
		User: id,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a raw JWT string.
func (m *Manager) Verify(raw string) (*Claims, error) {
	token, err := m.parser.ParseWithClaims(raw, &Claims{}, func(t *gojwt.Token) (any, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.User.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ---- HTTP Middleware ----

// RequireAuth rejects requests without a valid token in the Authorization
// header. The token is the segment after the first "-", e.g. "Bearer-<jwt>".
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := TokenFromHeader(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w, "No token, access denied.")
			return
		}
		claims, err := m.Verify(raw)
		if err != nil {
			unauthorized(w, "Token is not valid")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// TokenFromHeader extracts the token segment of an Authorization value.
// Tokens may themselves contain "-", so only the first one delimits.
func TokenFromHeader(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, "-", 2)
	if len(parts) < 2 {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, c)
}

// ClaimsFrom retrieves the verified claims from context (nil if absent).
func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsCtxKey).(*Claims)
	return c
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"msg": msg})
}
