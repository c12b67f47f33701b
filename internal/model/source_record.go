package model

// SourceRecord is an application as extracted from the source database.
// A nil field means the property was missing or could not be extracted.
type SourceRecord struct {
	Date     *string `json:"date,omitempty"`
	Category *string `json:"category,omitempty"`
	Company  *string `json:"company,omitempty"`
	Position *string `json:"position,omitempty"`
	Status   *string `json:"status,omitempty"`
	Location *string `json:"location,omitempty"`
	Website  *string `json:"website,omitempty"`
	Referral *bool   `json:"referral,omitempty"`
	PageID   string  `json:"page_id"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// Deref returns the pointed-to string or the empty string.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
