package types

import "strings"

// Address is the delivery destination captured at order creation. Stored as
// jsonb; the engine never interprets it beyond presence validation.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// Complete reports whether the minimum deliverable fields are present.
func (a Address) Complete() bool {
	return strings.TrimSpace(a.Line1) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.PostalCode) != ""
}
