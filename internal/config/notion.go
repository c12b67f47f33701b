package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/notion"
	"github.com/Veraticus/jobsync/internal/secrets"
	"github.com/spf13/viper"
)

// LoadNotionConfig loads Notion configuration with the same precedence as
// LoadSheetsConfig. When no token is configured the OS keychain is consulted.
func LoadNotionConfig(store secrets.Store) (*notion.Config, error) {
	config := notion.DefaultConfig()

	config.Token = firstNonEmpty(viper.GetString("notion.token"), envAny("NOTION_TOKEN"))
	config.DatabaseID = firstNonEmpty(viper.GetString("notion.database_id"), envAny("NOTION_DATABASE_ID"))

	if v := viper.GetString("notion.base_url"); v != "" {
		config.BaseURL = v
	}
	if v := viper.GetString("notion.api_version"); v != "" {
		config.APIVersion = v
	}
	if v := viper.GetString("notion.sort_property"); v != "" {
		config.SortProperty = v
	}
	if viper.IsSet("notion.page_size") {
		config.PageSize = viper.GetInt("notion.page_size")
	}
	if viper.IsSet("notion.requests_per_second") {
		config.RequestsPerSecond = viper.GetFloat64("notion.requests_per_second")
	}
	if viper.IsSet("notion.timeout") {
		config.Timeout = viper.GetDuration("notion.timeout")
	}

	if config.Token == "" && store != nil {
		token, err := store.NotionToken()
		switch {
		case err == nil:
			config.Token = token
		case errors.Is(err, secrets.ErrNotFound):
		default:
			slog.Warn("Failed to read Notion token from keychain", "error", err)
		}
	}

	if config.Token == "" {
		return nil, common.NewUserError(
			"Notion token missing. Set NOTION_TOKEN, add notion.token to the config file, or run 'jobsync auth notion'",
			common.ErrMissingConfig)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: notion: %w", common.ErrInvalidConfig, err)
	}

	return &config, nil
}
