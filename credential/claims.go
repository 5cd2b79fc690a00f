package credential

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the payload carried by an access token
type Claims struct {
	jwt.RegisteredClaims
	User   any `json:"user,omitempty"`
	Groups any `json:"groups,omitempty"`
	Roles  any `json:"roles,omitempty"`
}

// ClaimSet is the verified, decoded payload of an access token.
// It is only produced by Verifier.Verify and never changes afterwards.
type ClaimSet struct {
	userID    string
	user      map[string]any
	groups    []string
	hasGroups bool
	issuedAt  time.Time
	expiresAt time.Time
}

// UserID returns the id of the user record
func (c *ClaimSet) UserID() string {
	return c.userID
}

// User returns a shallow copy of the user record
func (c *ClaimSet) User() map[string]any {
	user := make(map[string]any, len(c.user))
	for k, v := range c.user {
		user[k] = v
	}
	return user
}

// Groups returns the authorized groups in token order and whether the token
// carried a groups collection at all
func (c *ClaimSet) Groups() ([]string, bool) {
	return slices.Clone(c.groups), c.hasGroups
}

// HasGroup checks if the token authorizes the given group
func (c *ClaimSet) HasGroup(group string) bool {
	return c.hasGroups && slices.Contains(c.groups, group)
}

// IssuedAt returns the iat claim, or the zero time when absent
func (c *ClaimSet) IssuedAt() time.Time {
	return c.issuedAt
}

// ExpiresAt returns the exp claim, or the zero time when the token never expires
func (c *ClaimSet) ExpiresAt() time.Time {
	return c.expiresAt
}

// newClaimSet converts decoded Claims into a ClaimSet
func newClaimSet(claims *Claims) (*ClaimSet, error) {
	if claims.User == nil {
		return nil, errMissingUser
	}
	user, ok := claims.User.(map[string]any)
	if !ok {
		return nil, errUserNotObject
	}

	userID, ok := stringValue(user["id"])
	if !ok || userID == "" {
		return nil, errMissingUserID
	}

	set := &ClaimSet{
		userID: userID,
		user:   user,
	}

	// Top-level collections win over ones nested in the user record
	for _, raw := range []any{claims.Groups, claims.Roles, user["groups"], user["roles"]} {
		if groups, ok := groupList(raw); ok {
			set.groups = groups
			set.hasGroups = true
			break
		}
	}

	if claims.IssuedAt != nil {
		set.issuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		set.expiresAt = claims.ExpiresAt.Time
	}

	return set, nil
}

// groupList reads a JSON array of group identifiers.
// Entries that are not strings can never match a selection and are dropped.
func groupList(raw any) ([]string, bool) {
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}

	groups := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			groups = append(groups, s)
		}
	}
	return groups, true
}

func stringValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	default:
		return "", false
	}
}
