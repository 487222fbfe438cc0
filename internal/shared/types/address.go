package types

import "strings"

// Address is a postal address as carried on organization profiles.
type Address struct {
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	City       string `json:"city"`
	County     string `json:"county"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
}

// Lines renders the address as display lines, skipping empty parts.
func (a Address) Lines() []string {
	var lines []string
	for _, l := range []string{a.Address1, a.Address2} {
		if s := strings.TrimSpace(l); s != "" {
			lines = append(lines, s)
		}
	}

	locality := strings.TrimSpace(a.City)
	if st := strings.TrimSpace(a.State); st != "" {
		if locality != "" {
			locality += ", "
		}
		locality += st
	}
	if pc := strings.TrimSpace(a.PostalCode); pc != "" {
		if locality != "" {
			locality += " "
		}
		locality += pc
	}
	if locality != "" {
		lines = append(lines, locality)
	}
	return lines
}
