package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ganot/feapi/internal/transport"
)

type ctxKey int

const (
	deviceKey ctxKey = iota
	sessionKey
)

const deviceHeader = "X-Device-Id"

var errUnauthorized = errors.New("unauthorized")

// handshakeMethods run before a device has presented a token.
var handshakeMethods = map[string]bool{
	"initialize": true,
	"ping":       true,
}

// getDeviceID returns the device the connection acts for, or "" when tools
// must name it through device_id.
func getDeviceID(ctx context.Context) string {
	v, _ := ctx.Value(deviceKey).(string)
	return v
}

func getSessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionKey).(string)
	return v
}

func withDevice(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceKey, deviceID)
}

// DeviceResolver maps a bearer token to the device that holds it.
type DeviceResolver interface {
	ResolveDevice(ctx context.Context, token string) (string, error)
}

func requestHeaders(req sdkmcp.Request) http.Header {
	if req == nil {
		return nil
	}
	if extra := req.GetExtra(); extra != nil {
		return extra.Header
	}
	return nil
}

// authMiddleware binds every call to the device named by its bearer token.
// The token is parsed the same way as on the device REST API.
func authMiddleware(resolver DeviceResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if handshakeMethods[method] || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			headers := requestHeaders(req)
			if headers == nil {
				return nil, fmt.Errorf("%w: no HTTP headers on %s", errUnauthorized, method)
			}
			token := transport.BearerToken(headers.Get("Authorization"))
			if token == "" {
				return nil, fmt.Errorf("%w: missing bearer token", errUnauthorized)
			}

			deviceID, err := resolver.ResolveDevice(ctx, token)
			switch {
			case err != nil:
				return nil, fmt.Errorf("%w: %w", errUnauthorized, err)
			case deviceID == "":
				return nil, fmt.Errorf("%w: token names no device", errUnauthorized)
			}
			return next(withDevice(ctx, deviceID), method, req)
		}
	}
}

// headerMiddleware trusts X-Device-Id when auth is disabled. Without the
// header, tools fall back to their device_id argument.
func headerMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if deviceID := strings.TrimSpace(requestHeaders(req).Get(deviceHeader)); deviceID != "" {
				ctx = withDevice(ctx, deviceID)
			}
			return next(ctx, method, req)
		}
	}
}

// sessionMiddleware tags the call with its MCP session so device resets and
// traffic logs can be traced back to one operator connection.
func sessionMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			sessionID := safeSessionID(req)
			if sessionID == "" {
				sessionID = requestHeaders(req).Get("Mcp-Session-Id")
			}
			if sessionID != "" {
				ctx = context.WithValue(ctx, sessionKey, sessionID)
			}
			return next(ctx, method, req)
		}
	}
}
