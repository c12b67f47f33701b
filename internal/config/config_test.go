package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/secrets"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "GOOGLE_SHEETS_CLIENT_ID", "GOOGLE_SHEETS_CLIENT_SECRET",
	"GOOGLE_SHEETS_REFRESH_TOKEN", "GOOGLE_SHEETS_SPREADSHEET_ID", "SPREADSHEET_ID",
	"RANGE_NAME", "RANGE", "NOTION_TOKEN", "NOTION_DATABASE_ID",
}

// resetConfig clears viper and every environment variable the loaders read.
func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

type fakeSecrets struct {
	err   error
	token string
}

func (f fakeSecrets) NotionToken() (string, error) {
	return f.token, f.err
}

func TestLoadSheetsConfig_FromEnv(t *testing.T) {
	resetConfig(t)
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "/keys/sa.json")
	t.Setenv("SPREADSHEET_ID", "sheet-123")
	t.Setenv("RANGE_NAME", "'Job Hunt'!B2:I")
	t.Setenv("RANGE", "'Job Hunt'!A1")

	cfg, err := LoadSheetsConfig()
	require.NoError(t, err)

	assert.Equal(t, "/keys/sa.json", cfg.ServiceAccountPath)
	assert.Equal(t, "sheet-123", cfg.SpreadsheetID)
	assert.Equal(t, "Job Hunt", cfg.SheetName)
	assert.Equal(t, "'Job Hunt'!A1", cfg.AppendRange)
	assert.Equal(t, 2, cfg.HeaderRows)
}

func TestLoadSheetsConfig_ViperWins(t *testing.T) {
	resetConfig(t)
	t.Setenv("SPREADSHEET_ID", "from-env")
	viper.Set("sheets.spreadsheet_id", "from-viper")
	viper.Set("sheets.service_account_path", "/keys/sa.json")
	viper.Set("sheets.sheet_name", "Tracker")
	viper.Set("sheets.first_column", "a")
	viper.Set("sheets.last_column", "h")
	viper.Set("sheets.header_rows", 1)
	viper.Set("sheets.retry_delay", "250ms")

	cfg, err := LoadSheetsConfig()
	require.NoError(t, err)

	assert.Equal(t, "from-viper", cfg.SpreadsheetID)
	assert.Equal(t, "Tracker", cfg.SheetName)
	assert.Equal(t, "A", cfg.FirstColumn)
	assert.Equal(t, "H", cfg.LastColumn)
	assert.Equal(t, 1, cfg.HeaderRows)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
}

func TestLoadSheetsConfig_Invalid(t *testing.T) {
	resetConfig(t)
	t.Setenv("SPREADSHEET_ID", "sheet-123")

	_, err := LoadSheetsConfig()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
	assert.ErrorContains(t, err, "no authentication method")
}

func TestLoadNotionConfig(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		resetConfig(t)
		t.Setenv("NOTION_TOKEN", "secret_env")
		t.Setenv("NOTION_DATABASE_ID", "db-1")

		cfg, err := LoadNotionConfig(fakeSecrets{token: "secret_keychain"})
		require.NoError(t, err)
		assert.Equal(t, "secret_env", cfg.Token)
		assert.Equal(t, "db-1", cfg.DatabaseID)
		assert.Equal(t, "Date", cfg.SortProperty)
	})

	t.Run("keychain fallback", func(t *testing.T) {
		resetConfig(t)
		viper.Set("notion.database_id", "db-2")
		viper.Set("notion.page_size", 50)

		cfg, err := LoadNotionConfig(fakeSecrets{token: "secret_keychain"})
		require.NoError(t, err)
		assert.Equal(t, "secret_keychain", cfg.Token)
		assert.Equal(t, 50, cfg.PageSize)
	})

	t.Run("missing token", func(t *testing.T) {
		resetConfig(t)
		viper.Set("notion.database_id", "db-2")

		_, err := LoadNotionConfig(fakeSecrets{err: secrets.ErrNotFound})
		assert.ErrorIs(t, err, common.ErrMissingConfig)

		var userErr *common.UserError
		require.True(t, errors.As(err, &userErr))
		assert.Contains(t, userErr.UserMessage, "jobsync auth notion")
	})

	t.Run("missing database", func(t *testing.T) {
		resetConfig(t)
		t.Setenv("NOTION_TOKEN", "secret_env")

		_, err := LoadNotionConfig(nil)
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})
}

func TestLoadRunConfig(t *testing.T) {
	resetConfig(t)
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := LoadRunConfig()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Mode)
	assert.True(t, cfg.Snapshots)
	assert.Equal(t, filepath.Join(home, ".local/share/jobsync/jobsync.db"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join(home, ".local/state/jobsync", "sync-abc.lock"), cfg.LockPath("abc"))

	viper.Set("sync.mode", "tail")
	viper.Set("sync.snapshots", false)
	cfg, err = LoadRunConfig()
	require.NoError(t, err)
	assert.Equal(t, "tail", cfg.Mode)
	assert.False(t, cfg.Snapshots)

	viper.Set("sync.mode", "sideways")
	_, err = LoadRunConfig()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestRunConfig_LoadProfile(t *testing.T) {
	cfg := DefaultRunConfig()
	profile, err := cfg.LoadProfile()
	require.NoError(t, err)
	assert.Equal(t, "Job", profile.DefaultCategory)

	cfg.ProfilePath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.LoadProfile()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JOBSYNC_TEST_A=base\nJOBSYNC_TEST_B=base\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("JOBSYNC_TEST_B=local\n"), 0600))
	t.Setenv("JOBSYNC_TEST_A", "")
	t.Setenv("JOBSYNC_TEST_B", "")
	require.NoError(t, os.Unsetenv("JOBSYNC_TEST_A"))
	require.NoError(t, os.Unsetenv("JOBSYNC_TEST_B"))

	require.NoError(t, LoadEnvFiles(dir, EnvFiles...))
	assert.Equal(t, "base", os.Getenv("JOBSYNC_TEST_A"))
	assert.Equal(t, "local", os.Getenv("JOBSYNC_TEST_B"))

	assert.NoError(t, LoadEnvFiles(t.TempDir(), EnvFiles...), "missing files are ignored")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("JOBSYNC_TEST_DIR", "/data")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/jobs.db", filepath.Join(home, "jobs.db")},
		{"$JOBSYNC_TEST_DIR/jobs.db", "/data/jobs.db"},
		{"/abs/jobs.db", "/abs/jobs.db"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}
