package syncer

import (
	"time"

	"github.com/Veraticus/jobsync/internal/reconcile"
)

// Report summarizes one run for the user.
type Report struct {
	Plan            *reconcile.Plan      `json:"plan,omitempty"`
	Failed          *reconcile.Mutation  `json:"failed,omitempty"`
	RunID           string               `json:"run_id"`
	Mode            reconcile.Mode       `json:"mode"`
	Error           string               `json:"error,omitempty"`
	Remaining       []reconcile.Mutation `json:"remaining,omitempty"`
	Duration        time.Duration        `json:"duration_ns"`
	SourceRecords   int                  `json:"source_records"`
	DestinationRows int                  `json:"destination_rows"`
	NoOps           int                  `json:"noops"`
	Updates         int                  `json:"updates"`
	Appends         int                  `json:"appends"`
	Skipped         int                  `json:"skipped"`
	Applied         int                  `json:"applied"`
	DryRun          bool                 `json:"dry_run"`
	Snapshot        bool                 `json:"snapshot"`
}

// UpToDate reports whether the run found nothing to change.
func (r *Report) UpToDate() bool {
	return r.Error == "" && r.Plan != nil && r.Plan.Empty()
}

// Partial reports whether some but not all planned writes landed.
func (r *Report) Partial() bool {
	return r.Failed != nil || len(r.Remaining) > 0
}
