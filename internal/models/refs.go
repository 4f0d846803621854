package models

import (
	"encoding/json"
	"fmt"
)

// Embedded reference payloads. Connector records carry related
// entities as nested objects (an issue's author, a commit's parents);
// these are the closed shapes those payloads decode into.

// UserRef is a person reference embedded in an issue, commit or pull
// request record. Only Login is guaranteed to be present.
type UserRef struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}

// MilestoneRef is an id-only milestone reference on an issue record.
type MilestoneRef struct {
	ID string `json:"id"`
}

// LabelRef is an id-only label reference on an issue record.
type LabelRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ParentRef is a commit-parent reference carried on a commit record.
type ParentRef struct {
	SHA string `json:"sha"`
}

// DecodeRef decodes an embedded payload into out. Payloads arrive
// either as nested maps (staged records) or as JSON strings (raw
// connector output); both are accepted. A nil payload decodes to
// nothing and reports false.
func DecodeRef(payload any, out any) (bool, error) {
	if payload == nil {
		return false, nil
	}

	var raw []byte
	switch v := payload.(type) {
	case string:
		if v == "" {
			return false, nil
		}
		raw = []byte(v)
	case []byte:
		if len(v) == 0 {
			return false, nil
		}
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return false, fmt.Errorf("encode embedded payload: %w", err)
		}
		raw = encoded
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode embedded payload: %w", err)
	}
	return true, nil
}

// DecodeRefList decodes a payload holding a list of references into
// out (a pointer to a slice). Accepts the same payload forms as
// DecodeRef.
func DecodeRefList(payload any, out any) (bool, error) {
	return DecodeRef(payload, out)
}
