// ABOUTME: Tests for JWT tokens, password hashing, login, and the HTTP middleware
// ABOUTME: Uses an in-memory user lookup so no database is needed

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tally/internal/store"
)

var testSecret = []byte("test-secret-key-for-jwt-signing")

type memUsers map[string]*store.User

func (m memUsers) GetUser(_ context.Context, id string) (*store.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (m memUsers) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	for _, u := range m {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func newUsers(t *testing.T) memUsers {
	t.Helper()
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	return memUsers{"u-1": {ID: "u-1", Username: "ann", PasswordHash: hash}}
}

var ann = &store.User{ID: "u-1", Username: "ann"}

func signClaims(t *testing.T, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return fixed }

	token, expires, err := v.Issue(ann, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Hour), expires)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID())
	assert.Equal(t, "ann", claims.Username)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.Equal(t, expires, claims.ExpiresAt.Time.UTC())
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	other, _, err := NewJWTVerifier([]byte("different-secret")).Issue(ann, time.Hour)
	require.NoError(t, err)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage token", "not-a-jwt-token"},
		{"malformed JWT", "header.payload.signature"},
		{"wrong secret", other},
		{"wrong issuer", signClaims(t, jwt.SigningMethodHS256, SessionClaims{
			Username:         "ann",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", Subject: "u-1", ExpiresAt: exp},
		})},
		{"no expiry", signClaims(t, jwt.SigningMethodHS256, SessionClaims{
			Username:         "ann",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "u-1"},
		})},
		{"other algorithm", signClaims(t, jwt.SigningMethodHS512, SessionClaims{
			Username:         "ann",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "u-1", ExpiresAt: exp},
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token, _, err := v.Issue(ann, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_MissingClaims(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	noSubject := signClaims(t, jwt.SigningMethodHS256, SessionClaims{
		Username:         "ann",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, ExpiresAt: exp},
	})
	_, err := v.Verify(noSubject)
	assert.ErrorIs(t, err, ErrMissingClaim)
	assert.ErrorContains(t, err, "sub")

	noName := signClaims(t, jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "u-1", ExpiresAt: exp},
	})
	_, err = v.Verify(noName)
	assert.ErrorIs(t, err, ErrMissingClaim)
	assert.ErrorContains(t, err, "name")
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)

	hash, err := HashPassword("long enough")
	require.NoError(t, err)
	assert.NotEqual(t, "long enough", hash)
	assert.True(t, CheckPassword(hash, "long enough"))
	assert.False(t, CheckPassword(hash, "long enougH"))
	assert.False(t, CheckPassword("not-a-hash", "long enough"))
}

func TestAuthenticate(t *testing.T) {
	users := newUsers(t)
	ctx := context.Background()

	u, err := Authenticate(ctx, users, " ann ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)

	_, err = Authenticate(ctx, users, "ann", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = Authenticate(ctx, users, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))
	assert.Equal(t, AnonymousActor, Actor(ctx))

	ctx = WithAuth(ctx, &AuthContext{UserID: "u-1", Username: "ann"})
	require.NotNil(t, FromContext(ctx))
	assert.Equal(t, "ann", Actor(ctx))
}

func TestHTTPAuthMiddleware(t *testing.T) {
	users := newUsers(t)
	v := NewJWTVerifier(testSecret)
	good, _, err := v.Issue(ann, time.Hour)
	require.NoError(t, err)
	expired, _, err := v.Issue(ann, -time.Minute)
	require.NoError(t, err)
	ghost, _, err := v.Issue(&store.User{ID: "u-404", Username: "ghost"}, time.Hour)
	require.NoError(t, err)
	renamed, _, err := v.Issue(&store.User{ID: "u-1", Username: "ann-before-rename"}, time.Hour)
	require.NoError(t, err)

	var seen *AuthContext
	h := HTTPAuthMiddleware(users, v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"valid", "Bearer " + good, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, `{"error":"missing authorization header"}`},
		{"basic scheme", "Basic abc", http.StatusUnauthorized, `{"error":"invalid authorization header format"}`},
		{"empty token", "Bearer ", http.StatusUnauthorized, `{"error":"empty token"}`},
		{"bad token", "Bearer nope", http.StatusUnauthorized, `{"error":"invalid token"}`},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, `{"error":"token expired"}`},
		{"unknown user", "Bearer " + ghost, http.StatusUnauthorized, `{"error":"user not found"}`},
		{"stale username", "Bearer " + renamed, http.StatusUnauthorized, `{"error":"invalid token"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/companies", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, rec.Body.String())
				assert.Nil(t, seen)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, "ann", seen.Username)
		})
	}
}
