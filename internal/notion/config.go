// Package notion reads job-application pages from a Notion database.
package notion

import (
	"fmt"
	"time"
)

// DefaultAPIVersion is the Notion-Version header sent with every request.
const DefaultAPIVersion = "2022-06-28"

// Config holds the configuration for the Notion client.
type Config struct {
	Token      string
	DatabaseID string
	BaseURL    string
	APIVersion string
	// SortProperty is the date property the query orders by, newest first.
	SortProperty      string
	PageSize          int
	RequestsPerSecond float64
	Timeout           time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	// MaxRetryDelay also bounds the wait after a 429.
	MaxRetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.notion.com",
		APIVersion:        DefaultAPIVersion,
		SortProperty:      "Date",
		PageSize:          100,
		RequestsPerSecond: 3,
		Timeout:           30 * time.Second,
		RetryAttempts:     3,
		RetryDelay:        time.Second,
		MaxRetryDelay:     30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("notion token is required")
	}
	if c.DatabaseID == "" {
		return fmt.Errorf("notion database ID is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("notion base URL is required")
	}
	if c.SortProperty == "" {
		return fmt.Errorf("sort property is required")
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("page size must be between 1 and 100, got %d", c.PageSize)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	return nil
}
