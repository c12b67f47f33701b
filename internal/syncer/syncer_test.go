package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/model"
	"github.com/Veraticus/jobsync/internal/normalize"
	"github.com/Veraticus/jobsync/internal/notion"
	"github.com/Veraticus/jobsync/internal/reconcile"
	"github.com/Veraticus/jobsync/internal/sheets"
	"github.com/Veraticus/jobsync/internal/storage"
	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"Date", "Type", "Company", "Position", "Status", "Location", "Referral?", "Website"}

type fakeSource struct {
	err     error
	records []model.SourceRecord
	pages   []notion.Page
}

func (f *fakeSource) FetchSourceRecords(context.Context) ([]model.SourceRecord, error) {
	return f.records, f.err
}

func (f *fakeSource) LastPages() []notion.Page {
	return f.pages
}

func record(date, company, position, status string) model.SourceRecord {
	return model.SourceRecord{
		PageID:   company + "/" + position,
		Date:     model.StringPtr(date),
		Company:  model.StringPtr(company),
		Position: model.StringPtr(position),
		Status:   model.StringPtr(status),
		Referral: model.BoolPtr(false),
	}
}

// row builds the sheet cells a normalized record would produce.
func row(date, company, position, status string) []string {
	return []string{date, "Job", company, position, status, "", model.ReferralFalse, ""}
}

func newTestSyncer(t *testing.T, source Source, dest DestinationStore, opts ...Option) *Syncer {
	t.Helper()
	ids := 0
	opts = append([]Option{WithRunIDs(func() string {
		ids++
		return "run-" + string(rune('0'+ids))
	})}, opts...)
	return New(source, dest, normalize.New(normalize.DefaultProfile()),
		slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func newSnapshotStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestRun_UpdatesAndAppends(t *testing.T) {
	// Source is newest first; the sheet is oldest first.
	source := &fakeSource{records: []model.SourceRecord{
		record("2024-03-03", "Gamma", "ML", "Applied"),
		record("2024-03-02", "Beta", "Backend", "Offer"),
		record("2024-03-01", "Acme", "Engineer", "Applied"),
	}}
	dest := sheets.NewMockStore(columns,
		row("03-01", "Acme", "Engineer", "Applied"),
		row("03-02", "Beta", "Backend", "Applied"),
		row("03-03", "Gamma", "ML", "Applied"),
	)

	report, err := newTestSyncer(t, source, dest).Run(context.Background(), Options{Mode: reconcile.ModeFull})
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 2, report.NoOps)
	assert.Equal(t, 1, report.Updates)
	assert.Equal(t, 0, report.Appends)
	assert.Equal(t, 1, report.Applied)
	assert.False(t, report.UpToDate())

	require.Len(t, dest.UpdateCalls, 1)
	assert.Equal(t, 2, dest.UpdateCalls[0].Position)
	assert.Equal(t, "Offer", dest.Rows()[1][4])
}

func TestRun_IsIdempotent(t *testing.T) {
	source := &fakeSource{records: []model.SourceRecord{
		record("2024-03-02", "Beta", "Backend", "2nd Interview"),
		record("2024-03-01", "Acme", "Engineer", "Offer"),
	}}
	dest := sheets.NewMockStore(columns, row("03-01", "Acme", "Engineer", "Applied"))
	s := newTestSyncer(t, source, dest)

	_, err := s.Run(context.Background(), Options{Mode: reconcile.ModeTail})
	require.NoError(t, err)
	require.Len(t, dest.AppendCalls, 1)
	assert.Equal(t, "Interview", dest.AppendCalls[0].Status)

	report, err := s.Run(context.Background(), Options{Mode: reconcile.ModeTail})
	require.NoError(t, err)
	assert.True(t, report.UpToDate())
	assert.Len(t, dest.AppendCalls, 1)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	source := &fakeSource{records: []model.SourceRecord{record("2024-03-01", "Acme", "Engineer", "Offer")}}
	dest := sheets.NewMockStore(columns, row("03-01", "Acme", "Engineer", "Applied"))

	report, err := newTestSyncer(t, source, dest).Run(context.Background(), Options{Mode: reconcile.ModeFull, DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Updates)
	assert.Zero(t, report.Applied)
	assert.Empty(t, dest.UpdateCalls)
}

func TestRun_SkipsInvalidRecords(t *testing.T) {
	invalid := record("2024-03-02", "Beta", "", "Applied")
	source := &fakeSource{records: []model.SourceRecord{invalid, record("2024-03-01", "Acme", "Engineer", "Applied")}}
	dest := sheets.NewMockStore(columns, row("03-01", "Acme", "Engineer", "Applied"))

	report, err := newTestSyncer(t, source, dest).Run(context.Background(), Options{Mode: reconcile.ModeFull})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.SourceRecords)
	assert.True(t, report.UpToDate())
}

func TestRun_AlignmentExhausted(t *testing.T) {
	source := &fakeSource{records: []model.SourceRecord{
		record("2024-03-02", "New", "Role", "Applied"),
		record("2024-03-01", "Acme", "Engineer", "Applied"),
	}}
	dest := sheets.NewMockStore(columns, row("03-01", "Acme", "Engineer", "Applied"))

	report, err := newTestSyncer(t, source, dest).Run(context.Background(), Options{Mode: reconcile.ModeFull})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAlignmentExhausted)

	var exhausted *reconcile.AlignmentExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, model.IdentityKey{Company: "New", Position: "Role"}, exhausted.Key)

	assert.NotEmpty(t, report.Error)
	assert.Nil(t, report.Plan)
	assert.Empty(t, dest.UpdateCalls)
	assert.Empty(t, dest.AppendCalls)
}

func TestRun_AdapterFailures(t *testing.T) {
	t.Run("source", func(t *testing.T) {
		source := &fakeSource{err: errors.New("connection refused")}
		dest := sheets.NewMockStore(columns)

		_, err := newTestSyncer(t, source, dest).Run(context.Background(), Options{Mode: reconcile.ModeFull})
		assert.ErrorIs(t, err, common.ErrSourceUnavailable)
		assert.Zero(t, dest.FetchCount)
	})

	t.Run("destination read", func(t *testing.T) {
		source := &fakeSource{}
		dest := sheets.NewMockStore(columns)
		dest.FetchErr = errors.New("403")

		_, err := newTestSyncer(t, source, dest).Run(context.Background(), Options{Mode: reconcile.ModeFull})
		assert.ErrorIs(t, err, common.ErrDestinationUnavailable)
	})

	t.Run("write", func(t *testing.T) {
		source := &fakeSource{records: []model.SourceRecord{
			record("2024-03-02", "Beta", "Backend", "Offer"),
			record("2024-03-01", "Acme", "Engineer", "Offer"),
		}}
		dest := sheets.NewMockStore(columns,
			row("03-01", "Acme", "Engineer", "Applied"),
			row("03-02", "Beta", "Backend", "Applied"))
		dest.UpdateFunc = func(position int, _ model.Application) error {
			if position == 2 {
				return errors.New("quota exceeded")
			}
			return nil
		}

		report, err := newTestSyncer(t, source, dest).Run(context.Background(), Options{Mode: reconcile.ModeFull})
		assert.ErrorIs(t, err, common.ErrDestinationWriteFailed)
		assert.Equal(t, 1, report.Applied)
		require.NotNil(t, report.Failed)
		assert.Equal(t, 2, report.Failed.Position)
		assert.True(t, report.Partial())
	})
}

func TestRun_Lock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "locks", "sync.lock")

	other := flock.New(lockPath)

	// The lock directory does not exist yet; the first run creates it.
	source := &fakeSource{}
	dest := sheets.NewMockStore(columns)
	s := newTestSyncer(t, source, dest)

	_, err := s.Run(context.Background(), Options{Mode: reconcile.ModeFull, LockPath: lockPath})
	require.NoError(t, err)

	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked, "lock is released after the run")
	defer func() { _ = other.Unlock() }()

	_, err = s.Run(context.Background(), Options{Mode: reconcile.ModeFull, LockPath: lockPath})
	assert.ErrorIs(t, err, common.ErrRunInProgress)
	assert.Equal(t, 1, dest.FetchCount)
}

func TestRun_Snapshots(t *testing.T) {
	store := newSnapshotStore(t)
	source := &fakeSource{
		records: []model.SourceRecord{record("2024-03-01", "Acme", "Engineer", "Offer")},
		pages:   []notion.Page{{ID: "Acme/Engineer", Raw: json.RawMessage(`{"id":"Acme/Engineer"}`)}},
	}
	dest := sheets.NewMockStore(columns, row("03-01", "Acme", "Engineer", "Applied"))

	report, err := newTestSyncer(t, source, dest, WithSnapshots(store)).Run(context.Background(), Options{
		Mode:          reconcile.ModeFull,
		SpreadsheetID: "sheet-1",
		DatabaseID:    "db-1",
	})
	require.NoError(t, err)
	assert.True(t, report.Snapshot)

	snap, err := store.LoadSnapshot(context.Background(), report.RunID)
	require.NoError(t, err)

	assert.Equal(t, storage.StatusApplied, snap.Run.Status)
	assert.Equal(t, "sheet-1", snap.Run.SpreadsheetID)
	assert.Equal(t, 1, snap.Run.Updates)
	assert.Equal(t, 1, snap.Run.Applied)
	require.Len(t, snap.Pages, 1)
	require.Len(t, snap.Source, 1)
	assert.Equal(t, "Offer", snap.Source[0].Status)
	require.Len(t, snap.Destination, 1)
	assert.Equal(t, "Applied", snap.Destination[0].Status)

	// Replaying the snapshot reproduces the plan that was applied.
	plan, err := Replay(snap, reconcile.ModeFull)
	require.NoError(t, err)
	assert.Equal(t, report.Plan, plan)
}

func TestRun_FailedRunIsRecorded(t *testing.T) {
	store := newSnapshotStore(t)
	source := &fakeSource{records: []model.SourceRecord{
		record("2024-03-02", "New", "Role", "Applied"),
		record("2024-03-01", "Acme", "Engineer", "Applied"),
	}}
	dest := sheets.NewMockStore(columns, row("03-01", "Acme", "Engineer", "Applied"))

	report, err := newTestSyncer(t, source, dest, WithSnapshots(store)).Run(context.Background(), Options{Mode: reconcile.ModeFull})
	require.Error(t, err)

	run, err := store.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "alignment exhausted")
}

func TestReplay_NilSnapshot(t *testing.T) {
	_, err := Replay(nil, reconcile.ModeFull)
	assert.Error(t, err)
}

func TestRun_ProgressFactory(t *testing.T) {
	source := &fakeSource{records: []model.SourceRecord{
		record("2024-03-02", "Beta", "Backend", "Offer"),
		record("2024-03-01", "Acme", "Engineer", "Offer"),
	}}
	dest := sheets.NewMockStore(columns,
		row("03-01", "Acme", "Engineer", "Applied"),
		row("03-02", "Beta", "Backend", "Applied"))

	var total int
	var done []int
	_, err := newTestSyncer(t, source, dest).Run(context.Background(), Options{
		Mode: reconcile.ModeFull,
		Progress: func(n int) reconcile.ProgressFunc {
			total = n
			return func(d int, _ reconcile.Mutation) { done = append(done, d) }
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, total)
	assert.Equal(t, []int{1, 2}, done)
}

func TestRun_RenamedHeaderColumn(t *testing.T) {
	source := &fakeSource{records: []model.SourceRecord{
		record("2024-03-01", "Acme", "Engineer", "Applied"),
	}}
	renamed := []string{"Date", "Type", "Company", "Position", "Status", "Location", "Referral", "Website"}
	dest := sheets.NewMockStore(renamed, row("03-01", "Acme", "Engineer", "Applied"))

	report, err := newTestSyncer(t, source, dest).Run(context.Background(), Options{Mode: reconcile.ModeFull})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDestinationUnavailable)
	assert.ErrorContains(t, err, `"Referral?"`)

	assert.Nil(t, report.Plan)
	assert.Empty(t, dest.UpdateCalls)
	assert.Empty(t, dest.AppendCalls)
}
