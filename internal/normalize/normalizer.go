package normalize

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/model"
)

// dateLen is the length of the MM-DD suffix of a YYYY-MM-DD date.
const dateLen = 5

// Normalizer converts source records and sheet rows into model.Application.
type Normalizer struct {
	statuses map[string]string
	profile  Profile
}

// New creates a normalizer for the given profile.
func New(profile Profile) *Normalizer {
	statuses := make(map[string]string, len(profile.Statuses)+len(profile.StatusAliases))
	for _, s := range profile.Statuses {
		statuses[s] = s
	}
	for from, to := range profile.StatusAliases {
		statuses[from] = to
	}

	return &Normalizer{
		profile:  profile,
		statuses: statuses,
	}
}

// Profile returns the profile the normalizer was built from.
func (n *Normalizer) Profile() Profile {
	return n.profile
}

// Normalize converts a source record into destination vocabulary.
// It fails with common.ErrInvalidRecord when the record has no position.
func (n *Normalizer) Normalize(rec model.SourceRecord) (model.Application, error) {
	position := model.Deref(rec.Position)
	if position == "" {
		return model.Application{}, fmt.Errorf("%w: page %s has no position", common.ErrInvalidRecord, rec.PageID)
	}

	category := model.Deref(rec.Category)
	if category == "" {
		category = n.profile.DefaultCategory
	}

	return model.Application{
		Date:     Date(rec.Date),
		Category: category,
		Company:  model.Deref(rec.Company),
		Position: position,
		Status:   n.Status(rec.Status),
		Location: model.Deref(rec.Location),
		Referral: Referral(rec.Referral),
		Website:  model.Deref(rec.Website),
	}, nil
}

// NormalizeAll normalizes every record, dropping invalid ones.
// It returns the kept records in input order and the number dropped.
func (n *Normalizer) NormalizeAll(records []model.SourceRecord, logger *slog.Logger) ([]model.Application, int) {
	apps := make([]model.Application, 0, len(records))
	skipped := 0

	for _, rec := range records {
		app, err := n.Normalize(rec)
		if err != nil {
			skipped++
			logger.Warn("skipping source record", "page_id", rec.PageID, "error", err)
			continue
		}
		if app.Date == "" {
			logger.Debug("source record has no usable date", "page_id", rec.PageID, "key", app.Key().String())
		}
		apps = append(apps, app)
	}

	return apps, skipped
}

// Status maps a source status onto the canonical set.
func (n *Normalizer) Status(status *string) string {
	if status == nil {
		return FallbackStatus
	}
	if canonical, ok := n.statuses[*status]; ok {
		return canonical
	}
	return FallbackStatus
}

// MissingColumns returns the profile's column headers that a header-keyed
// sheet row does not carry.
func (n *Normalizer) MissingColumns(cells map[string]string) []string {
	var missing []string
	for _, name := range n.profile.Columns.Names() {
		if _, ok := cells[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// FromRow builds an application from a header-keyed sheet row.
// Missing cells read as empty strings.
func (n *Normalizer) FromRow(cells map[string]string) model.Application {
	c := n.profile.Columns
	return model.Application{
		Date:     cells[c.Date],
		Category: cells[c.Category],
		Company:  cells[c.Company],
		Position: cells[c.Position],
		Status:   cells[c.Status],
		Location: cells[c.Location],
		Referral: cells[c.Referral],
		Website:  cells[c.Website],
	}
}

// Date drops the year segment of a YYYY-MM-DD string.
// Strings shorter than five characters yield the empty (absent) date.
func Date(date *string) string {
	if date == nil || len(*date) < dateLen {
		return ""
	}
	d := *date
	return d[len(d)-dateLen:]
}

// Referral renders the source checkbox as the sheet's boolean literal.
func Referral(referral *bool) string {
	if referral != nil && *referral {
		return model.ReferralTrue
	}
	return model.ReferralFalse
}
