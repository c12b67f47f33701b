package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultProfile_IsValid(t *testing.T) {
	require.NoError(t, DefaultProfile().Validate())
}

func TestLoadProfile_EmptyPathUsesDefault(t *testing.T) {
	profile, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), profile)
}

func TestLoadProfile_Overlay(t *testing.T) {
	path := writeProfile(t, `
default_category: Internship
paths:
  company: properties.Company.rich_text.0.plain_text
columns:
  referral: Referral
status_aliases:
  Phone Screen: Interview
`)

	profile, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "Internship", profile.DefaultCategory)
	assert.Equal(t, "properties.Company.rich_text.0.plain_text", profile.Paths.Company)
	assert.Equal(t, "properties.Position.title.0.plain_text", profile.Paths.Position)
	assert.Equal(t, "Referral", profile.Columns.Referral)
	assert.Equal(t, "Type", profile.Columns.Category)
	assert.Equal(t, "Interview", profile.StatusAliases["Phone Screen"])
	assert.Equal(t, "Interview", profile.StatusAliases["1st Interview"])

	n := New(profile)
	phone := "Phone Screen"
	assert.Equal(t, "Interview", n.Status(&phone))
}

func TestLoadProfile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "malformed yaml",
			content: "paths: [unterminated",
			errMsg:  "failed to parse profile",
		},
		{
			name: "alias to unknown status",
			content: `
statuses: [Applied, Interview]
status_aliases:
  Onsite: Final Round
`,
			errMsg: `unknown status "Final Round"`,
		},
		{
			name:    "statuses without the fallback",
			content: "statuses: [Applied, Offer, Rejected]\n",
			errMsg:  `statuses must include "Interview"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProfile(writeProfile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read profile")
}

func TestColumnHeaders_Names(t *testing.T) {
	assert.Equal(t,
		[]string{"Date", "Type", "Company", "Position", "Status", "Location", "Referral?", "Website"},
		DefaultProfile().Columns.Names())

	assert.Equal(t, []string{"Company", "Position"},
		ColumnHeaders{Company: "Company", Position: "Position"}.Names())
}
