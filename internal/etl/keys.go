package etl

import (
	"errors"
	"fmt"
)

// ErrMissingKeyField reports a record that lacks a field its entity
// key is derived from. This is a data-quality error: keys are never
// silently defaulted.
var ErrMissingKeyField = errors.New("record missing key field")

// keySeparator joins the parts of a composite key. Fixed separator and
// field order keep derived keys stable across runs.
const keySeparator = "-"

// KeyField returns the property that uniquely identifies nodes of the
// given label.
func KeyField(label string) string {
	switch label {
	case "Repository":
		return "full_name"
	case "Person":
		return "login"
	case "Team":
		return "slug"
	case "OrganizationalRole":
		return "name"
	default:
		return "id"
	}
}

// DeriveKey returns the unique key for one entity instance. Simple
// labels read a single field; composite labels concatenate fields in
// fixed order. props is not modified.
func DeriveKey(label string, props map[string]any) (string, error) {
	switch label {
	case "Commit":
		return compositeKey(label, props, "sha", "repository")
	case "Branch":
		return compositeKey(label, props, "name", "repository")
	case "TeamMember":
		return compositeKey(label, props, "login", "team_slug")
	case "TeamMembership":
		key, err := compositeKey(label, props, "login", "team_slug")
		if err != nil {
			return "", err
		}
		return "membership" + keySeparator + key, nil
	default:
		return requireField(label, props, KeyField(label))
	}
}

func compositeKey(label string, props map[string]any, fields ...string) (string, error) {
	key := ""
	for i, field := range fields {
		part, err := requireField(label, props, field)
		if err != nil {
			return "", err
		}
		if i > 0 {
			key += keySeparator
		}
		key += part
	}
	return key, nil
}

func requireField(label string, props map[string]any, field string) (string, error) {
	value, ok := props[field]
	if !ok || value == nil {
		return "", fmt.Errorf("%w: %s needs %q", ErrMissingKeyField, label, field)
	}
	switch v := value.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("%w: %s has empty %q", ErrMissingKeyField, label, field)
		}
		return v, nil
	case int:
		return fmt.Sprintf("%d", v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	case float64:
		// JSON round-trips integers as float64.
		return fmt.Sprintf("%d", int64(v)), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}
