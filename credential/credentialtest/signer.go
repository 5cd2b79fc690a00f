// Package credentialtest mints access tokens for tests.
package credentialtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// Secret is the signing secret shared by tests
const Secret = "test-jwt-secret"

type options struct {
	method jwt.SigningMethod
	claims jwt.MapClaims
}

// Option customizes a signed token
type Option func(*options)

// WithGroups sets the top-level groups claim
func WithGroups(groups ...string) Option {
	return func(o *options) { o.claims["groups"] = append([]string{}, groups...) }
}

// WithRoles sets the top-level roles claim
func WithRoles(roles ...string) Option {
	return func(o *options) { o.claims["roles"] = append([]string{}, roles...) }
}

// WithExpiry sets the exp claim
func WithExpiry(exp time.Time) Option {
	return func(o *options) { o.claims["exp"] = jwt.NewNumericDate(exp) }
}

// WithIssuedAt sets the iat claim
func WithIssuedAt(iat time.Time) Option {
	return func(o *options) { o.claims["iat"] = jwt.NewNumericDate(iat) }
}

// WithClaim sets an arbitrary claim
func WithClaim(key string, value any) Option {
	return func(o *options) { o.claims[key] = value }
}

// WithMethod overrides the HS256 signing method
func WithMethod(method jwt.SigningMethod) Option {
	return func(o *options) { o.method = method }
}

// Sign returns a token carrying user, signed with secret
func Sign(t testing.TB, secret string, user map[string]any, opts ...Option) string {
	t.Helper()

	o := &options{
		method: jwt.SigningMethodHS256,
		claims: jwt.MapClaims{},
	}
	if user != nil {
		o.claims["user"] = user
	}
	for _, opt := range opts {
		opt(o)
	}

	tokenString, err := jwt.NewWithClaims(o.method, o.claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenString
}
