package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type testResolver struct {
	tokenToDevice map[string]string
	err           error
}

func (r *testResolver) ResolveDevice(_ context.Context, token string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	device, ok := r.tokenToDevice[token]
	if !ok {
		return "", ErrUnauthorized
	}
	return device, nil
}

func TestAuthMiddleware(t *testing.T) {
	resolver := &testResolver{tokenToDevice: map[string]string{"token": "D1"}}

	var seen string
	handler := AuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = DeviceFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "D1", seen)
}

func TestAuthMiddleware_Invalid(t *testing.T) {
	resolver := &testResolver{err: errors.New("invalid")}

	handler := AuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, header := range []string{"", "Bearer ", "Basic abc", "Bearer token"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestHeaderMiddleware(t *testing.T) {
	handler := HeaderMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID, ok := DeviceFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(deviceID))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DeviceHeader, "D7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "D7", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestJWTResolver(t *testing.T) {
	resolver := NewJWTResolver("secret", "")
	ctx := context.Background()

	valid := signToken(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
		"preferred_username": "D1",
		"exp":                time.Now().Add(time.Hour).Unix(),
	})
	deviceID, err := resolver.ResolveDevice(ctx, valid)
	require.NoError(t, err)
	require.Equal(t, "D1", deviceID)

	tests := []struct {
		name  string
		token string
	}{
		{name: "wrong secret", token: signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"preferred_username": "D1"})},
		{name: "expired", token: signToken(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
			"preferred_username": "D1",
			"exp":                time.Now().Add(-time.Hour).Unix(),
		})},
		{name: "missing claim", token: signToken(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "D1"})},
		{name: "garbage", token: "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.ResolveDevice(ctx, tt.token)
			require.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestJWTResolver_CustomClaim(t *testing.T) {
	resolver := NewJWTResolver("secret", "hw_id")
	token := signToken(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"hw_id": "scanner-4"})

	deviceID, err := resolver.ResolveDevice(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "scanner-4", deviceID)
}
