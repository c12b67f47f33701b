package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/jobsync/internal/model"
	"github.com/Veraticus/jobsync/internal/notion"
)

// Run statuses.
const (
	StatusPlanned = "planned"
	StatusApplied = "applied"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusDryRun  = "dry-run"
)

const (
	sideSource      = "source"
	sideDestination = "destination"
)

// Run describes one sync run.
type Run struct {
	CreatedAt     time.Time `json:"created_at"`
	ID            string    `json:"id"`
	Mode          string    `json:"mode"`
	SpreadsheetID string    `json:"spreadsheet_id"`
	DatabaseID    string    `json:"database_id"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	NoOps         int       `json:"noops"`
	Updates       int       `json:"updates"`
	Appends       int       `json:"appends"`
	Skipped       int       `json:"skipped"`
	Applied       int       `json:"applied"`
}

// Snapshot is everything a run read before planning.
type Snapshot struct {
	Run         Run                 `json:"run"`
	Pages       []notion.Page       `json:"pages"`
	Source      []model.Application `json:"source"`
	Destination []model.Application `json:"destination"`
}

// Outcome is the result of a run, recorded after planning or applying.
type Outcome struct {
	Status  string
	Error   string
	NoOps   int
	Updates int
	Appends int
	Skipped int
	Applied int
}

// SaveSnapshot stores a run and the records it read in one transaction.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSnapshot(snap); err != nil {
		return err
	}

	run := snap.Run
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = StatusPlanned
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, mode, spreadsheet_id, database_id, created_at, status,
			noops, updates, appends, skipped, applied, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Mode, run.SpreadsheetID, run.DatabaseID, run.CreatedAt.UTC(), run.Status,
		run.NoOps, run.Updates, run.Appends, run.Skipped, run.Applied, run.Error)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	pageStmt, err := tx.PrepareContext(ctx, `INSERT INTO notion_pages (run_id, seq, page_id, raw) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer func() { _ = pageStmt.Close() }()

	for i, page := range snap.Pages {
		if _, err := pageStmt.ExecContext(ctx, run.ID, i, page.ID, string(page.Raw)); err != nil {
			return fmt.Errorf("failed to save page %s: %w", page.ID, err)
		}
	}

	if err := saveRecords(ctx, tx, run.ID, sideSource, snap.Source); err != nil {
		return err
	}
	if err := saveRecords(ctx, tx, run.ID, sideDestination, snap.Destination); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func saveRecords(ctx context.Context, tx *sql.Tx, runID, side string, records []model.Application) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (run_id, side, seq, date, category, company, position,
			status, location, referral, website)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		_, err := stmt.ExecContext(ctx, runID, side, i,
			r.Date, r.Category, r.Company, r.Position, r.Status, r.Location, r.Referral, r.Website)
		if err != nil {
			return fmt.Errorf("failed to save %s record %d: %w", side, i, err)
		}
	}
	return nil
}

// RecordOutcome updates the status and counters of a stored run.
func (s *SQLiteStorage) RecordOutcome(ctx context.Context, runID string, outcome Outcome) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "runID"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, noops = ?, updates = ?, appends = ?, skipped = ?, applied = ?, error = ?
		WHERE id = ?`,
		outcome.Status, outcome.NoOps, outcome.Updates, outcome.Appends,
		outcome.Skipped, outcome.Applied, outcome.Error, runID)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check outcome update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, mode, spreadsheet_id, database_id, created_at, status,
	noops, updates, appends, skipped, applied, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Mode, &r.SpreadsheetID, &r.DatabaseID, &r.CreatedAt, &r.Status,
		&r.NoOps, &r.Updates, &r.Appends, &r.Skipped, &r.Applied, &r.Error)
	return r, err
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run. The ID "latest" selects the newest run.
func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (*Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	var row *sql.Row
	if runID == "latest" {
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	}

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &run, nil
}

// LoadSnapshot returns a stored run with its pages and records.
func (s *SQLiteStorage) LoadSnapshot(ctx context.Context, runID string) (*Snapshot, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Run:         *run,
		Pages:       []notion.Page{},
		Source:      []model.Application{},
		Destination: []model.Application{},
	}

	pages, err := s.db.QueryContext(ctx, `SELECT page_id, raw FROM notion_pages WHERE run_id = ? ORDER BY seq`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	defer func() { _ = pages.Close() }()

	for pages.Next() {
		var page notion.Page
		var raw string
		if err := pages.Scan(&page.ID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		page.Raw = []byte(raw)
		snap.Pages = append(snap.Pages, page)
	}
	if err := pages.Err(); err != nil {
		return nil, err
	}

	if snap.Source, err = s.loadRecords(ctx, run.ID, sideSource); err != nil {
		return nil, err
	}
	if snap.Destination, err = s.loadRecords(ctx, run.ID, sideDestination); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteStorage) loadRecords(ctx context.Context, runID, side string) ([]model.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, category, company, position, status, location, referral, website
		FROM records WHERE run_id = ? AND side = ? ORDER BY seq`, runID, side)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s records: %w", side, err)
	}
	defer func() { _ = rows.Close() }()

	records := []model.Application{}
	for rows.Next() {
		var r model.Application
		if err := rows.Scan(&r.Date, &r.Category, &r.Company, &r.Position,
			&r.Status, &r.Location, &r.Referral, &r.Website); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", side, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteRunsBefore removes runs older than cutoff along with their records.
func (s *SQLiteStorage) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}
