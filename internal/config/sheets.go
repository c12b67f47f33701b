package config

import (
	"fmt"
	"strings"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig loads Google Sheets configuration from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or JOBSYNC_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*, SPREADSHEET_ID, RANGE_NAME, RANGE)
// 3. Default values
func LoadSheetsConfig() (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	config.ServiceAccountPath = ExpandPath(firstNonEmpty(
		viper.GetString("sheets.service_account_path"),
		envAny("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")))
	config.ClientID = firstNonEmpty(viper.GetString("sheets.client_id"), envAny("GOOGLE_SHEETS_CLIENT_ID"))
	config.ClientSecret = firstNonEmpty(viper.GetString("sheets.client_secret"), envAny("GOOGLE_SHEETS_CLIENT_SECRET"))
	config.RefreshToken = firstNonEmpty(viper.GetString("sheets.refresh_token"), envAny("GOOGLE_SHEETS_REFRESH_TOKEN"))
	config.SpreadsheetID = firstNonEmpty(
		viper.GetString("sheets.spreadsheet_id"),
		envAny("GOOGLE_SHEETS_SPREADSHEET_ID", "SPREADSHEET_ID"))

	// RANGE_NAME is an A1 read range such as "Applications!B2:I"; only its tab is used.
	if v := firstNonEmpty(viper.GetString("sheets.sheet_name"), sheetFromRange(envAny("RANGE_NAME"))); v != "" {
		config.SheetName = v
	}
	config.AppendRange = firstNonEmpty(viper.GetString("sheets.append_range"), envAny("RANGE"))

	if v := viper.GetString("sheets.first_column"); v != "" {
		config.FirstColumn = strings.ToUpper(v)
	}
	if v := viper.GetString("sheets.last_column"); v != "" {
		config.LastColumn = strings.ToUpper(v)
	}
	if viper.IsSet("sheets.header_rows") {
		config.HeaderRows = viper.GetInt("sheets.header_rows")
	}
	if viper.IsSet("sheets.retry_attempts") {
		config.RetryAttempts = viper.GetInt("sheets.retry_attempts")
	}
	if viper.IsSet("sheets.retry_delay") {
		config.RetryDelay = viper.GetDuration("sheets.retry_delay")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: sheets: %w", common.ErrInvalidConfig, err)
	}

	return &config, nil
}

func sheetFromRange(a1 string) string {
	name, _, found := strings.Cut(a1, "!")
	if !found {
		return ""
	}
	name = strings.TrimSpace(name)
	if len(name) >= 2 && strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name
}
