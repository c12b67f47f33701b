// Package normalize maps source-side vocabulary onto the spreadsheet's vocabulary.
package normalize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FallbackStatus is used for any status the profile does not recognize.
const FallbackStatus = "Interview"

// Profile holds everything that differs between tracker layouts: where each
// property lives in a source page, what the sheet calls each column, and the
// status vocabulary.
type Profile struct {
	DefaultCategory string            `yaml:"default_category"`
	Paths           PropertyPaths     `yaml:"paths"`
	Columns         ColumnHeaders     `yaml:"columns"`
	Statuses        []string          `yaml:"statuses"`
	StatusAliases   map[string]string `yaml:"status_aliases"`
}

// PropertyPaths are dotted JSON paths into a source page object.
type PropertyPaths struct {
	Date     string `yaml:"date"`
	Category string `yaml:"category"`
	Company  string `yaml:"company"`
	Position string `yaml:"position"`
	Status   string `yaml:"status"`
	Location string `yaml:"location"`
	Referral string `yaml:"referral"`
	Website  string `yaml:"website"`
}

// ColumnHeaders are the header cells of the destination sheet.
type ColumnHeaders struct {
	Date     string `yaml:"date"`
	Category string `yaml:"category"`
	Company  string `yaml:"company"`
	Position string `yaml:"position"`
	Status   string `yaml:"status"`
	Location string `yaml:"location"`
	Referral string `yaml:"referral"`
	Website  string `yaml:"website"`
}

// Names returns the configured header cells in sheet order, skipping blanks.
func (h ColumnHeaders) Names() []string {
	var names []string
	for _, name := range []string{h.Date, h.Category, h.Company, h.Position, h.Status, h.Location, h.Referral, h.Website} {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// DefaultProfile returns the layout of the stock job tracker.
func DefaultProfile() Profile {
	return Profile{
		DefaultCategory: "Job",
		Paths: PropertyPaths{
			Date:     "properties.Date.date.start",
			Company:  "properties.Name.rollup.array.0.title.0.plain_text",
			Position: "properties.Position.title.0.plain_text",
			Status:   "properties.Status.status.name",
			Location: "properties.Location.select.name",
			Referral: "properties.Referral.checkbox",
			Website:  "properties.Website.rich_text.0.plain_text",
		},
		Columns: ColumnHeaders{
			Date:     "Date",
			Category: "Type",
			Company:  "Company",
			Position: "Position",
			Status:   "Status",
			Location: "Location",
			Referral: "Referral?",
			Website:  "Website",
		},
		Statuses: []string{
			"Not Applied",
			"Applied",
			"Interview",
			"Offer",
			"Accepted",
			"Rejected",
			"Withdrawn",
			"Ghosted",
		},
		StatusAliases: map[string]string{
			"1st Interview": "Interview",
			"2nd Interview": "Interview",
			"3rd Interview": "Interview",
		},
	}
}

// LoadProfile reads a YAML profile and overlays it on the default profile.
// Keys missing from the file keep their default values.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	var overlay Profile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	profile.merge(overlay)
	if err := profile.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return profile, nil
}

func (p *Profile) merge(o Profile) {
	if o.DefaultCategory != "" {
		p.DefaultCategory = o.DefaultCategory
	}
	mergeString(&p.Paths.Date, o.Paths.Date)
	mergeString(&p.Paths.Category, o.Paths.Category)
	mergeString(&p.Paths.Company, o.Paths.Company)
	mergeString(&p.Paths.Position, o.Paths.Position)
	mergeString(&p.Paths.Status, o.Paths.Status)
	mergeString(&p.Paths.Location, o.Paths.Location)
	mergeString(&p.Paths.Referral, o.Paths.Referral)
	mergeString(&p.Paths.Website, o.Paths.Website)

	mergeString(&p.Columns.Date, o.Columns.Date)
	mergeString(&p.Columns.Category, o.Columns.Category)
	mergeString(&p.Columns.Company, o.Columns.Company)
	mergeString(&p.Columns.Position, o.Columns.Position)
	mergeString(&p.Columns.Status, o.Columns.Status)
	mergeString(&p.Columns.Location, o.Columns.Location)
	mergeString(&p.Columns.Referral, o.Columns.Referral)
	mergeString(&p.Columns.Website, o.Columns.Website)

	if len(o.Statuses) > 0 {
		p.Statuses = o.Statuses
	}
	for from, to := range o.StatusAliases {
		p.StatusAliases[from] = to
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks that the profile can identify records on both sides.
func (p Profile) Validate() error {
	if p.Paths.Company == "" || p.Paths.Position == "" {
		return fmt.Errorf("company and position paths are required")
	}
	if p.Columns.Company == "" || p.Columns.Position == "" {
		return fmt.Errorf("company and position columns are required")
	}
	if len(p.Statuses) == 0 {
		return fmt.Errorf("at least one status is required")
	}

	known := make(map[string]bool, len(p.Statuses))
	for _, s := range p.Statuses {
		known[s] = true
	}
	if !known[FallbackStatus] {
		return fmt.Errorf("statuses must include %q, used for unrecognized statuses", FallbackStatus)
	}
	for from, to := range p.StatusAliases {
		if !known[to] {
			return fmt.Errorf("status alias %q points to unknown status %q", from, to)
		}
	}
	return nil
}
