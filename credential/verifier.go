package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/realtime-jwtauth/internal/shared"
)

var (
	errMissingUser   = errors.New("user claim not found")
	errMissingUserID = errors.New("user id claim not found")
	errUserNotObject = errors.New("user claim is not an object")
)

// DefaultAlgorithms are the HMAC algorithms accepted when none are configured
var DefaultAlgorithms = []string{"HS256", "HS384", "HS512"}

// Config holds configuration for Verifier
type Config struct {
	Secret     string
	Algorithms []string
	Leeway     time.Duration

	// Now overrides the clock used for expiry checks
	Now func() time.Time
}

// Verifier validates HMAC-signed access tokens against a shared secret.
// It is safe for concurrent use.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a new Verifier. An empty secret is a configuration error.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, shared.ErrMissingSecret
	}
	if len(cfg.Algorithms) == 0 {
		cfg.Algorithms = DefaultAlgorithms
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(cfg.Algorithms),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithJSONNumber(),
	}
	if cfg.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.Now))
	}

	return &Verifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
	}, nil
}

// Verify validates the token signature and expiry and returns its claims
func (v *Verifier) Verify(tokenString string) (*ClaimSet, error) {
	if tokenString == "" {
		return nil, shared.ErrMissingCredential
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, shared.NewDomainError(shared.ErrorTypeExpired, "token expired", err)
		}
		return nil, shared.NewDomainError(shared.ErrorTypeInvalidSignature, "invalid token signature", err)
	}
	if !token.Valid {
		return nil, shared.ErrInvalidSignature
	}

	set, err := newClaimSet(claims)
	if err != nil {
		return nil, shared.NewDomainError(shared.ErrorTypeInvalidClaims, "invalid token claims", err)
	}
	return set, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}
