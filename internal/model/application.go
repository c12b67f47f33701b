// Package model defines the core domain models used throughout the application.
package model

import "fmt"

// Referral values as the spreadsheet stores them.
const (
	ReferralTrue  = "TRUE"
	ReferralFalse = "FALSE"
)

// IdentityKey identifies a job application across both stores.
// Comparison is exact: case, spacing and order all matter.
type IdentityKey struct {
	Company  string
	Position string
}

func (k IdentityKey) String() string {
	return fmt.Sprintf("%q / %q", k.Company, k.Position)
}

// Application is a normalized job-application record in destination vocabulary.
type Application struct {
	Date     string `json:"date"` // MM-DD, empty when absent
	Category string `json:"category"`
	Company  string `json:"company"`
	Position string `json:"position"`
	Status   string `json:"status"`
	Location string `json:"location"`
	Referral string `json:"referral"`
	Website  string `json:"website"`
}

// Key returns the identity key of the application.
func (a Application) Key() IdentityKey {
	return IdentityKey{Company: a.Company, Position: a.Position}
}

// SameJob reports whether both records describe the same job application.
func (a Application) SameJob(other Application) bool {
	return a.Key() == other.Key()
}

// Fresh reports whether other is an up-to-date copy of a.
// Date and Category are written on update but never make a row stale.
func (a Application) Fresh(other Application) bool {
	return a.SameJob(other) &&
		a.Status == other.Status &&
		a.Location == other.Location &&
		a.Referral == other.Referral &&
		a.Website == other.Website
}

// Values returns the fixed-width cell tuple written to a destination row.
func (a Application) Values() []any {
	return []any{
		a.Date,
		a.Category,
		a.Company,
		a.Position,
		a.Status,
		a.Location,
		a.Referral,
		a.Website,
	}
}
