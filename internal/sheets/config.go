// Package sheets provides the Google Sheets side of the sync: reading the
// tracker rows and writing individual rows back.
package sheets

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var columnPattern = regexp.MustCompile(`^[A-Z]{1,3}$`)

// Config holds the configuration for the Google Sheets client.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	// SheetName is the tab holding the tracker.
	SheetName string
	// FirstColumn and LastColumn bound the eight tracker columns.
	FirstColumn string
	LastColumn  string
	// AppendRange overrides the range used for appends.
	AppendRange string
	// HeaderRows is the number of rows above the first data row, header included.
	HeaderRows    int
	RetryAttempts int
	RetryDelay    time.Duration
	// RequiredColumns are header cells FetchRows refuses to read without.
	RequiredColumns []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SheetName:     "Applications",
		FirstColumn:   "B",
		LastColumn:    "I",
		HeaderRows:    2,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("no authentication method configured")
	}

	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("multiple authentication methods configured; use either OAuth2 or service account")
	}

	return c.validateLayout()
}

func (c *Config) validateLayout() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet ID is required")
	}

	if c.SheetName == "" {
		return fmt.Errorf("sheet name is required")
	}

	if !columnPattern.MatchString(c.FirstColumn) || !columnPattern.MatchString(c.LastColumn) {
		return fmt.Errorf("columns must be A1 column letters, got %q and %q", c.FirstColumn, c.LastColumn)
	}

	if c.HeaderRows < 1 {
		return fmt.Errorf("header rows must be at least 1")
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	return nil
}

// ReadRange is the A1 range holding the header row and every data row.
func (c *Config) ReadRange() string {
	return fmt.Sprintf("%s!%s%d:%s", quoteSheet(c.SheetName), c.FirstColumn, c.HeaderRows, c.LastColumn)
}

// RowRange is the A1 range of the data row at the 1-based position.
func (c *Config) RowRange(position int) string {
	row := c.SheetRow(position)
	return fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(c.SheetName), c.FirstColumn, row, c.LastColumn, row)
}

// SheetRow converts a 1-based data-row position into a sheet row number.
func (c *Config) SheetRow(position int) int {
	return position + c.HeaderRows
}

// TableRange is the range appends are anchored to.
func (c *Config) TableRange() string {
	if c.AppendRange != "" {
		return c.AppendRange
	}
	return c.ReadRange()
}

var plainSheetName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func quoteSheet(name string) string {
	if plainSheetName.MatchString(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
