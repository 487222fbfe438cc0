package domain

import (
	"sort"
	"strings"
	"time"
)

// Sort keys accepted by a listing
const (
	SortPatient   = "patient"
	SortHospital  = "hospital"
	SortDischarge = "discharge"
	SortTCM       = "tcm"
	SortOutreach  = "outreach"
	SortPriority  = "priority"
	SortRisk      = "risk"
	SortStatus    = "status"
	SortAttempts  = "attempts"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 1000
)

// Query is a filtered, sorted and paged listing request
type Query struct {
	Filter   Filter
	Sort     string
	Desc     bool
	Page     int
	PageSize int
}

// Page is one page of a listing
type Page struct {
	Data       []Detail `json:"data"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalCount int      `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
}

// Matches reports whether d passes every filter. The due date range applies
// to the two-day contact deadline.
func (f Filter) Matches(d Detail) bool {
	if f.Status != nil && d.Status != *f.Status {
		return false
	}
	if f.Priority != nil && d.Priority != *f.Priority {
		return false
	}
	if f.RiskTier != nil && d.RiskTier != *f.RiskTier {
		return false
	}
	if f.AssignedToUserKey != "" && (d.AssignedToUserKey == nil || *d.AssignedToUserKey != f.AssignedToUserKey) {
		return false
	}
	if f.HospitalKey != nil && d.Hospital.HospitalKey != *f.HospitalKey {
		return false
	}
	if f.DueDateFrom != nil && (d.TCMSchedule1 == nil || d.TCMSchedule1.Before(*f.DueDateFrom)) {
		return false
	}
	if f.DueDateTo != nil && (d.TCMSchedule1 == nil || d.TCMSchedule1.After(*f.DueDateTo)) {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		if !strings.Contains(strings.ToLower(d.Patient.Name), search) &&
			!(d.Patient.MRN != nil && strings.Contains(strings.ToLower(*d.Patient.MRN), search)) &&
			!strings.Contains(strings.ToLower(d.Encounter.VisitNumber), search) {
			return false
		}
	}
	return true
}

// Run filters, sorts and pages items. Without a sort key the input order is kept.
func (q Query) Run(items []Detail) Page {
	filtered := make([]Detail, 0, len(items))
	for _, d := range items {
		if q.Filter.Matches(d) {
			filtered = append(filtered, d)
		}
	}

	if less := lessFunc(q.Sort); less != nil {
		sort.SliceStable(filtered, func(i, j int) bool {
			if q.Desc {
				return less(filtered[j], filtered[i])
			}
			return less(filtered[i], filtered[j])
		})
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	total := len(filtered)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return Page{
		Data:       filtered[start:end],
		Page:       page,
		PageSize:   size,
		TotalCount: total,
		TotalPages: (total + size - 1) / size,
	}
}

func lessFunc(key string) func(a, b Detail) bool {
	switch strings.ToLower(key) {
	case SortPatient:
		return func(a, b Detail) bool { return a.Patient.Name < b.Patient.Name }
	case SortHospital:
		return func(a, b Detail) bool { return a.HospitalLabel() < b.HospitalLabel() }
	case SortDischarge:
		return func(a, b Detail) bool { return unix(a.Encounter.DischargeDateTime) < unix(b.Encounter.DischargeDateTime) }
	case SortTCM:
		return func(a, b Detail) bool { return unix(a.TCMSchedule1) < unix(b.TCMSchedule1) }
	case SortOutreach:
		return func(a, b Detail) bool { return unix(a.NextOutreachDate) < unix(b.NextOutreachDate) }
	case SortPriority:
		return func(a, b Detail) bool { return a.Priority.Rank() < b.Priority.Rank() }
	case SortRisk:
		return func(a, b Detail) bool { return a.RiskTier.Rank() < b.RiskTier.Rank() }
	case SortStatus:
		return func(a, b Detail) bool { return a.Status < b.Status }
	case SortAttempts:
		return func(a, b Detail) bool { return a.OutreachAttempts < b.OutreachAttempts }
	}
	return nil
}

// missing dates sort as the epoch
func unix(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}
