package jwtauth

import (
	"encoding/json"
	"fmt"
)

// Params are the raw parameters of an anonymous call as decoded from the wire
type Params map[string]any

// Request is an authorization request
type Request struct {
	AccessToken    string
	SelectedGroups []string
	GameVersion    string
}

// DecodeRequest reads a Request from call parameters.
// A selectedGroups value that is not an array of strings is treated as absent,
// so one non-string entry drops every entry of the selection.
func DecodeRequest(params Params) Request {
	var req Request

	if token, ok := params["accessToken"].(string); ok {
		req.AccessToken = token
	}
	req.SelectedGroups = decodeGroups(params["selectedGroups"])
	req.GameVersion = decodeOpaque(params["gameVersion"])

	return req
}

func decodeGroups(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		groups := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			groups = append(groups, s)
		}
		return groups
	default:
		return nil
	}
}

func decodeOpaque(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprint(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
