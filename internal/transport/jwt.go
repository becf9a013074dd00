package transport

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTResolver reads the device ID from a claim of an HMAC-signed token.
type JWTResolver struct {
	secret []byte
	claim  string
}

// NewJWTResolver creates a JWTResolver. An empty claim defaults to preferred_username.
func NewJWTResolver(secret, claim string) *JWTResolver {
	if claim == "" {
		claim = "preferred_username"
	}
	return &JWTResolver{secret: []byte(secret), claim: claim}
}

// ResolveDevice validates the token signature and expiry and returns the device claim.
func (r *JWTResolver) ResolveDevice(_ context.Context, token string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	deviceID, ok := claims[r.claim].(string)
	if !ok || deviceID == "" {
		return "", fmt.Errorf("%w: claim %s missing", ErrUnauthorized, r.claim)
	}
	return deviceID, nil
}
