package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyField(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Repository", "full_name"},
		{"Person", "login"},
		{"Team", "slug"},
		{"OrganizationalRole", "name"},
		{"Issue", "id"},
		{"Commit", "id"},
		{"SoftwareArtifact", "id"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KeyField(tt.label), tt.label)
	}
}

func TestDeriveKeyComposite(t *testing.T) {
	tests := []struct {
		name  string
		label string
		props map[string]any
		want  string
	}{
		{
			"commit is sha plus repository",
			"Commit",
			map[string]any{"sha": "abc123", "repository": "acme/api"},
			"abc123-acme/api",
		},
		{
			"branch is name plus repository",
			"Branch",
			map[string]any{"name": "main", "repository": "acme/api"},
			"main-acme/api",
		},
		{
			"team member is login plus team",
			"TeamMember",
			map[string]any{"login": "alice", "team_slug": "platform"},
			"alice-platform",
		},
		{
			"membership carries prefix",
			"TeamMembership",
			map[string]any{"login": "alice", "team_slug": "platform"},
			"membership-alice-platform",
		},
		{
			"simple label reads its key field",
			"Issue",
			map[string]any{"id": "7-acme/api", "title": "bug"},
			"7-acme/api",
		},
		{
			"numeric ids are formatted",
			"Label",
			map[string]any{"id": float64(42)},
			"42",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveKey(tt.label, tt.props)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	props := map[string]any{"sha": "abc123", "repository": "acme/api", "message": "fix"}
	first, err := DeriveKey("Commit", props)
	require.NoError(t, err)
	second, err := DeriveKey("Commit", props)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDeriveKeyMissingField(t *testing.T) {
	tests := []struct {
		name  string
		label string
		props map[string]any
	}{
		{"commit without repository", "Commit", map[string]any{"sha": "abc123"}},
		{"nil key value", "Issue", map[string]any{"id": nil}},
		{"empty string key", "Person", map[string]any{"login": ""}},
		{"absent key", "Team", map[string]any{"name": "Platform"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveKey(tt.label, tt.props)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingKeyField)
		})
	}
}
