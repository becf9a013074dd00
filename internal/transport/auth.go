package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

// DeviceHeader carries the device id when authentication is disabled.
const DeviceHeader = "X-Device-Id"

type deviceKey struct{}

// DeviceResolver resolves a device ID from a bearer token.
type DeviceResolver interface {
	ResolveDevice(ctx context.Context, token string) (string, error)
}

// DeviceFromContext returns the device ID from context, if present.
func DeviceFromContext(ctx context.Context) (string, bool) {
	deviceID, ok := ctx.Value(deviceKey{}).(string)
	return deviceID, ok && deviceID != ""
}

// WithDevice returns a copy of ctx carrying deviceID.
func WithDevice(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceKey{}, deviceID)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver DeviceResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeDetail(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			deviceID, err := resolver.ResolveDevice(r.Context(), token)
			if err != nil || deviceID == "" {
				writeDetail(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), deviceID)))
		})
	}
}

// HeaderMiddleware takes the device ID from the X-Device-Id header, for
// deployments running without authentication.
func HeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := strings.TrimSpace(r.Header.Get(DeviceHeader))
		if deviceID == "" {
			writeDetail(w, http.StatusUnauthorized, "missing "+DeviceHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), deviceID)))
	})
}
