// Package syncer runs one reconciliation of the source database against the
// tracker sheet.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/model"
	"github.com/Veraticus/jobsync/internal/normalize"
	"github.com/Veraticus/jobsync/internal/notion"
	"github.com/Veraticus/jobsync/internal/reconcile"
	"github.com/Veraticus/jobsync/internal/sheets"
	"github.com/Veraticus/jobsync/internal/storage"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Source provides the authoritative records, newest first.
type Source interface {
	FetchSourceRecords(ctx context.Context) ([]model.SourceRecord, error)
}

// pageSource is implemented by sources that keep the raw pages of their last fetch.
type pageSource interface {
	LastPages() []notion.Page
}

// DestinationStore is the tracker sheet.
type DestinationStore interface {
	FetchRows(ctx context.Context) ([]sheets.Row, error)
	reconcile.Destination
}

// SnapshotStore persists what each run read.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *storage.Snapshot) error
	RecordOutcome(ctx context.Context, runID string, outcome storage.Outcome) error
}

// ProgressFactory builds a progress callback once the number of writes is known.
type ProgressFactory func(total int) reconcile.ProgressFunc

// Options control a single run.
type Options struct {
	Progress ProgressFactory
	Mode     reconcile.Mode
	// LockPath, when set, names a lock file held for the whole run.
	LockPath      string
	SpreadsheetID string
	DatabaseID    string
	DryRun        bool
}

// Syncer wires a source, a destination and a normalizer together.
type Syncer struct {
	source     Source
	dest       DestinationStore
	normalizer *normalize.Normalizer
	snapshots  SnapshotStore
	logger     *slog.Logger
	newRunID   func() string
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithSnapshots stores a snapshot of every run in store.
func WithSnapshots(store SnapshotStore) Option {
	return func(s *Syncer) { s.snapshots = store }
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(fn func() string) Option {
	return func(s *Syncer) { s.newRunID = fn }
}

// New creates a Syncer.
func New(source Source, dest DestinationStore, normalizer *normalize.Normalizer, logger *slog.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		source:     source,
		dest:       dest,
		normalizer: normalizer,
		logger:     logger,
		newRunID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run fetches both stores, plans the reconciliation and, unless DryRun is
// set, applies it. The returned report is never nil; on failure it describes
// how far the run got.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:  s.newRunID(),
		Mode:   opts.Mode,
		DryRun: opts.DryRun,
	}
	logger := s.logger.With("run", report.RunID, "mode", opts.Mode)

	err := s.run(ctx, opts, report, logger)
	report.Duration = time.Since(start)
	if err != nil {
		report.Error = err.Error()
		logger.Error("Sync failed", "error", err)
	} else {
		logger.Info("Sync finished",
			"noops", report.NoOps,
			"updates", report.Updates,
			"appends", report.Appends,
			"skipped", report.Skipped,
			"applied", report.Applied)
	}
	s.recordOutcome(ctx, report, err, logger)
	return report, err
}

func (s *Syncer) run(ctx context.Context, opts Options, report *Report, logger *slog.Logger) error {
	if opts.LockPath != "" {
		unlock, err := acquireLock(opts.LockPath)
		if err != nil {
			return err
		}
		defer unlock()
	}

	records, err := s.source.FetchSourceRecords(ctx)
	if err != nil {
		return wrapIfMissing(err, common.ErrSourceUnavailable)
	}

	rows, err := s.dest.FetchRows(ctx)
	if err != nil {
		return wrapIfMissing(err, common.ErrDestinationUnavailable)
	}

	// Every row carries the full header, so the first one is enough.
	if len(rows) > 0 {
		if missing := s.normalizer.MissingColumns(rows[0].Cells); len(missing) > 0 {
			return fmt.Errorf("%w: sheet header is missing column(s) %q", common.ErrDestinationUnavailable, missing)
		}
	}

	source, skipped := s.normalizer.NormalizeAll(records, logger)
	destination := make([]model.Application, len(rows))
	for i, row := range rows {
		destination[i] = s.normalizer.FromRow(row.Cells)
	}

	report.SourceRecords = len(records)
	report.DestinationRows = len(rows)
	report.Skipped = skipped

	s.saveSnapshot(ctx, opts, report, source, destination, logger)

	plan, err := reconcile.Reconcile(source, destination, opts.Mode)
	if err != nil {
		return err
	}
	report.Plan = plan
	report.NoOps = plan.Stats.NoOps
	report.Updates = plan.Stats.Updates
	report.Appends = plan.Stats.Appends

	if opts.DryRun || plan.Empty() {
		return nil
	}

	var progress reconcile.ProgressFunc
	if opts.Progress != nil {
		progress = opts.Progress(len(plan.Mutations))
	}

	result, err := reconcile.Apply(ctx, plan, s.dest, progress)
	report.Applied = len(result.Applied)
	report.Failed = result.Failed
	report.Remaining = result.Remaining
	return err
}

func (s *Syncer) saveSnapshot(ctx context.Context, opts Options, report *Report, source, destination []model.Application, logger *slog.Logger) {
	if s.snapshots == nil {
		return
	}

	snap := &storage.Snapshot{
		Run: storage.Run{
			ID:            report.RunID,
			Mode:          string(opts.Mode),
			SpreadsheetID: opts.SpreadsheetID,
			DatabaseID:    opts.DatabaseID,
			Skipped:       report.Skipped,
		},
		Source:      source,
		Destination: destination,
	}
	if ps, ok := s.source.(pageSource); ok {
		snap.Pages = ps.LastPages()
	}

	// Snapshots are diagnostics; a failure here never stops the run.
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		logger.Warn("Failed to save snapshot", "error", err)
		return
	}
	report.Snapshot = true
}

func (s *Syncer) recordOutcome(ctx context.Context, report *Report, runErr error, logger *slog.Logger) {
	if s.snapshots == nil || !report.Snapshot {
		return
	}

	outcome := storage.Outcome{
		Status:  storage.StatusApplied,
		NoOps:   report.NoOps,
		Updates: report.Updates,
		Appends: report.Appends,
		Skipped: report.Skipped,
		Applied: report.Applied,
		Error:   report.Error,
	}
	switch {
	case report.Applied > 0 && runErr != nil:
		outcome.Status = storage.StatusPartial
	case runErr != nil:
		outcome.Status = storage.StatusFailed
	case report.DryRun:
		outcome.Status = storage.StatusDryRun
	}

	// The run context may already be canceled.
	ctx = context.WithoutCancel(ctx)
	if err := s.snapshots.RecordOutcome(ctx, report.RunID, outcome); err != nil {
		logger.Warn("Failed to record run outcome", "error", err)
	}
}

func acquireLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", common.ErrRunInProgress, path)
	}

	return func() { _ = lock.Unlock() }, nil
}

func wrapIfMissing(err, sentinel error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Replay recomputes the plan a stored run would have produced in mode.
func Replay(snap *storage.Snapshot, mode reconcile.Mode) (*reconcile.Plan, error) {
	if snap == nil {
		return nil, fmt.Errorf("no snapshot to replay")
	}
	return reconcile.Reconcile(snap.Source, snap.Destination, mode)
}
