package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/model"
	"golang.org/x/time/rate"
)

// Page is one database row as returned by the API.
type Page struct {
	ID  string          `json:"id"`
	Raw json.RawMessage `json:"raw"`
}

// Notion API request and response types.
type querySort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

type queryRequest struct {
	StartCursor string      `json:"start_cursor,omitempty"`
	Sorts       []querySort `json:"sorts"`
	PageSize    int         `json:"page_size"`
}

type queryResponse struct {
	NextCursor *string           `json:"next_cursor"`
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client queries a Notion database.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	extractor  *Extractor
	lastPages  []Page
	config     Config
}

// NewClient creates a Notion client. Pages are mapped to records with extractor.
func NewClient(config Config, extractor *Extractor, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		config:     config,
		extractor:  extractor,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// QueryDatabase returns every page of the database, newest first.
func (c *Client) QueryDatabase(ctx context.Context) ([]Page, error) {
	var pages []Page
	cursor := ""

	for {
		resp, err := c.queryPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: query database %s: %w", common.ErrSourceUnavailable, c.config.DatabaseID, err)
		}

		for _, raw := range resp.Results {
			var meta struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(raw, &meta); err != nil {
				return nil, fmt.Errorf("%w: decode page: %w", common.ErrSourceUnavailable, err)
			}
			pages = append(pages, Page{ID: meta.ID, Raw: raw})
		}

		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		cursor = *resp.NextCursor
	}

	c.logger.Info("read source pages", "database", c.config.DatabaseID, "pages", len(pages))
	return pages, nil
}

// FetchSourceRecords queries the database and extracts one record per page.
func (c *Client) FetchSourceRecords(ctx context.Context) ([]model.SourceRecord, error) {
	pages, err := c.QueryDatabase(ctx)
	if err != nil {
		return nil, err
	}
	c.lastPages = pages

	records := make([]model.SourceRecord, 0, len(pages))
	for _, page := range pages {
		records = append(records, c.extractor.Extract(page))
	}
	return records, nil
}

// LastPages returns the raw pages of the most recent FetchSourceRecords call.
func (c *Client) LastPages() []Page {
	return c.lastPages
}

func (c *Client) queryPage(ctx context.Context, cursor string) (*queryResponse, error) {
	body, err := json.Marshal(queryRequest{
		StartCursor: cursor,
		PageSize:    c.config.PageSize,
		Sorts:       []querySort{{Property: c.config.SortProperty, Direction: "descending"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	url := fmt.Sprintf("%s/v1/databases/%s/query", strings.TrimRight(c.config.BaseURL, "/"), c.config.DatabaseID)

	var result queryResponse
	err = common.WithRetry(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err), Retryable: false}
		}
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
		req.Header.Set("Notion-Version", c.config.APIVersion)
		req.Header.Set("Content-Type", "application/json")

		slog.Debug("Requesting Notion page batch", "database", c.config.DatabaseID, "cursor", cursor)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch data: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return &common.RetryableError{Err: fmt.Errorf("failed to decode response: %w", err), Retryable: false}
		}
		return nil
	}, common.RetryOptions{
		MaxAttempts:  c.config.RetryAttempts,
		InitialDelay: c.config.RetryDelay,
		MaxDelay:     c.config.MaxRetryDelay,
		Multiplier:   2.0,
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// statusError turns a non-200 response into an error that WithRetry understands.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	msg := strings.TrimSpace(string(body))
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		msg = fmt.Sprintf("%s: %s", apiErr.Code, apiErr.Message)
	}
	err := fmt.Errorf("notion API error: %d - %s", resp.StatusCode, msg)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &common.RetryableError{Err: err, Retryable: false}
	default:
		return err
	}
}
