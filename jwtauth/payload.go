package jwtauth

import (
	"encoding/json"
	"slices"

	"github.com/upb/realtime-jwtauth/credential"
)

// selectedGroupsKey is the payload key added on top of the user record
const selectedGroupsKey = "selectedGroups"

// UserPayload is handed to the host when a connection is authorized.
// On the wire it is the token's user record with selectedGroups added.
type UserPayload struct {
	UserID string

	// User holds every field of the token's user record, id included
	User map[string]any

	// SelectedGroups is nil when the caller did not narrow the session
	SelectedGroups []string
}

// newUserPayload builds the payload from the verified user record and the
// accepted selection. The selection always replaces a user field of the same name.
func newUserPayload(claims *credential.ClaimSet, selected []string) *UserPayload {
	user := claims.User()
	delete(user, selectedGroupsKey)

	payload := &UserPayload{
		UserID: claims.UserID(),
		User:   user,
	}
	if len(selected) > 0 {
		payload.SelectedGroups = slices.Clone(selected)
	}
	return payload
}

// Fields returns the merged record as sent to the host
func (p *UserPayload) Fields() map[string]any {
	fields := make(map[string]any, len(p.User)+1)
	for k, v := range p.User {
		fields[k] = v
	}
	if p.SelectedGroups != nil {
		fields[selectedGroupsKey] = slices.Clone(p.SelectedGroups)
	} else {
		fields[selectedGroupsKey] = nil
	}
	return fields
}

// MarshalJSON implements json.Marshaler
func (p *UserPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields())
}
