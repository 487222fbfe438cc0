package api

import (
	"context"
	"time"

	"github.com/ealmetes/HealthExtent/internal/caretransition/domain"
	"github.com/ealmetes/HealthExtent/internal/tcm"
)

// UnknownUser is shown for an assignee the directory cannot name
const UnknownUser = "Unknown User"

// NameResolver maps directory user ids to display names
type NameResolver interface {
	ResolveNames(ctx context.Context, tenantKey int, userKeys []string) (map[string]string, error)
}

// AssignedTo names the assignee of a transition
type AssignedTo struct {
	UserKey string `json:"userKey"`
	Name    string `json:"name"`
}

// View is a transition with its derived due-date views
type View struct {
	domain.Detail
	VisitNumber    string      `json:"visitNumber"`
	AssignedTo     *AssignedTo `json:"assignedTo,omitempty"`
	ContactDue     *tcm.Badge  `json:"contactDue,omitempty"`
	FollowUpDue    *tcm.Badge  `json:"followUpDue,omitempty"`
	TCMStatus      string      `json:"tcmStatus,omitempty"`
	OutreachStatus string      `json:"outreachStatus,omitempty"`
}

// NewView derives badges and statuses as of now. Closed transitions carry
// no due badges.
func NewView(d domain.Detail, names map[string]string, now time.Time) View {
	v := View{
		Detail:      d,
		VisitNumber: d.Encounter.VisitNumber,
		TCMStatus:   tcm.TCMStatus(d.TCMSchedule1, d.OutreachDate, d.Encounter.DischargeDateTime, now),
	}

	if !d.IsClosed() {
		v.ContactDue = tcm.Classify(d.TCMSchedule1, now)
		v.FollowUpDue = tcm.Classify(d.TCMSchedule2, now)
		v.OutreachStatus = tcm.OutreachStatus(d.NextOutreachDate, now)
	}

	if d.AssignedToUserKey != nil && *d.AssignedToUserKey != "" {
		name, ok := names[*d.AssignedToUserKey]
		if !ok || name == "" {
			name = UnknownUser
		}
		v.AssignedTo = &AssignedTo{UserKey: *d.AssignedToUserKey, Name: name}
	}

	return v
}

// AssigneeKeys collects the distinct assignees of details
func AssigneeKeys(details []domain.Detail) []string {
	seen := make(map[string]bool)
	keys := []string{}
	for _, d := range details {
		if d.AssignedToUserKey == nil || *d.AssignedToUserKey == "" || seen[*d.AssignedToUserKey] {
			continue
		}
		seen[*d.AssignedToUserKey] = true
		keys = append(keys, *d.AssignedToUserKey)
	}
	return keys
}

// Metrics is the TCM aggregate plus the derived rates
type Metrics struct {
	tcm.Metrics
	ComplianceRate int `json:"complianceRate"`
	FollowUpRate   int `json:"followUpRate"`
}

// ComputeMetrics aggregates transitions joined with their own encounters
func ComputeMetrics(details []domain.Detail, now time.Time) Metrics {
	transitions := make([]tcm.Transition, 0, len(details))
	encounters := make([]tcm.Encounter, 0, len(details))
	for _, d := range details {
		transitions = append(transitions, d.TCM())
		encounters = append(encounters, tcm.Encounter{
			EncounterKey:      d.EncounterKey,
			PatientKey:        d.PatientKey,
			AdmitDateTime:     d.Encounter.AdmitDateTime,
			DischargeDateTime: d.Encounter.DischargeDateTime,
		})
	}

	m := tcm.Aggregate(transitions, encounters, now)
	return Metrics{
		Metrics:        m,
		ComplianceRate: tcm.ComplianceRate(m),
		FollowUpRate:   tcm.FollowUpRate(m),
	}
}
