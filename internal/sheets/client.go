package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const valueInputOption = "USER_ENTERED"

// Row is one data row of the tracker, keyed by header cell.
type Row struct {
	Cells map[string]string `json:"cells"`
	// Position is the 1-based data-row position (first row after the header is 1).
	Position int `json:"position"`
}

// Client reads and writes tracker rows in a spreadsheet.
type Client struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewClient creates a Sheets client authenticated from config.
func NewClient(ctx context.Context, config Config, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// NewClientWithService creates a client around an existing service.
// Authentication settings in config are ignored.
func NewClientWithService(service *sheets.Service, config Config, logger *slog.Logger) (*Client, error) {
	if err := config.validateLayout(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := oauthConfig(config.ClientID, config.ClientSecret, "")
		tokenSource = client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// FetchRows reads the header row and every data row below it.
// Short rows are padded with empty cells.
func (c *Client) FetchRows(ctx context.Context) ([]Row, error) {
	var resp *sheets.ValueRange
	err := common.WithRetry(ctx, func() error {
		var getErr error
		resp, getErr = c.service.Spreadsheets.Values.Get(c.config.SpreadsheetID, c.config.ReadRange()).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		return classify(getErr)
	}, c.retryOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", common.ErrDestinationUnavailable, c.config.ReadRange(), err)
	}

	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("%w: no header row found in %s", common.ErrDestinationUnavailable, c.config.ReadRange())
	}

	header := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(cell))
	}

	if missing := missingColumns(header, c.config.RequiredColumns); len(missing) > 0 {
		return nil, fmt.Errorf("%w: header row of %s is missing column(s) %q",
			common.ErrDestinationUnavailable, c.config.ReadRange(), missing)
	}

	rows := make([]Row, 0, len(resp.Values)-1)
	for idx, values := range resp.Values[1:] {
		cells := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(values) {
				cells[name] = fmt.Sprint(values[i])
			} else {
				cells[name] = ""
			}
		}
		rows = append(rows, Row{Position: idx + 1, Cells: cells})
	}

	c.logger.Info("read destination rows", "range", c.config.ReadRange(), "rows", len(rows))
	return rows, nil
}

// UpdateRow overwrites the tracker cells of the data row at position.
func (c *Client) UpdateRow(ctx context.Context, position int, record model.Application) error {
	rangeStr := c.config.RowRange(position)
	body := &sheets.ValueRange{Values: [][]any{record.Values()}}

	resp, err := c.service.Spreadsheets.Values.Update(c.config.SpreadsheetID, rangeStr, body).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%w: update %s: %w", common.ErrDestinationWriteFailed, rangeStr, err)
	}

	c.logger.Info("updated row",
		"range", rangeStr,
		"cells", resp.UpdatedCells,
		"job", record.Key().String())
	return nil
}

// AppendRow inserts record as a new row after the table.
func (c *Client) AppendRow(ctx context.Context, record model.Application) error {
	rangeStr := c.config.TableRange()
	body := &sheets.ValueRange{Values: [][]any{record.Values()}}

	resp, err := c.service.Spreadsheets.Values.Append(c.config.SpreadsheetID, rangeStr, body).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		ResponseValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%w: append to %s: %w", common.ErrDestinationWriteFailed, rangeStr, err)
	}

	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	c.logger.Info("appended row",
		"range", updated,
		"job", record.Key().String())
	return nil
}

func missingColumns(header, required []string) []string {
	present := make(map[string]bool, len(header))
	for _, name := range header {
		present[name] = true
	}

	var missing []string
	for _, name := range required {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func (c *Client) retryOptions() common.RetryOptions {
	return common.RetryOptions{
		MaxAttempts:  c.config.RetryAttempts,
		InitialDelay: c.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// classify marks client errors as permanent so reads are not retried on them.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return &common.RetryableError{Err: err, Retryable: false}
		}
	}
	return err
}
