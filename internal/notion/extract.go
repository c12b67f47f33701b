package notion

import (
	"github.com/Veraticus/jobsync/internal/model"
	"github.com/Veraticus/jobsync/internal/normalize"
	"github.com/tidwall/gjson"
)

// Extractor reads record fields out of a page with dotted JSON paths.
// A path that does not resolve leaves the field nil.
type Extractor struct {
	paths normalize.PropertyPaths
}

// NewExtractor creates an extractor for the given property paths.
func NewExtractor(paths normalize.PropertyPaths) *Extractor {
	return &Extractor{paths: paths}
}

// Extract maps a page onto a source record.
func (e *Extractor) Extract(page Page) model.SourceRecord {
	return model.SourceRecord{
		PageID:   page.ID,
		Date:     stringAt(page.Raw, e.paths.Date),
		Category: stringAt(page.Raw, e.paths.Category),
		Company:  stringAt(page.Raw, e.paths.Company),
		Position: stringAt(page.Raw, e.paths.Position),
		Status:   stringAt(page.Raw, e.paths.Status),
		Location: stringAt(page.Raw, e.paths.Location),
		Referral: boolAt(page.Raw, e.paths.Referral),
		Website:  stringAt(page.Raw, e.paths.Website),
	}
}

func lookup(raw []byte, path string) (gjson.Result, bool) {
	if path == "" {
		return gjson.Result{}, false
	}
	res := gjson.GetBytes(raw, path)
	if !res.Exists() || res.Type == gjson.Null {
		return res, false
	}
	return res, true
}

func stringAt(raw []byte, path string) *string {
	res, ok := lookup(raw, path)
	if !ok || res.IsObject() || res.IsArray() {
		return nil
	}
	return model.StringPtr(res.String())
}

func boolAt(raw []byte, path string) *bool {
	res, ok := lookup(raw, path)
	if !ok || !res.IsBool() {
		return nil
	}
	return model.BoolPtr(res.Bool())
}
