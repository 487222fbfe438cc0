// Package dashboard computes the executive overview of a tenant: encounter
// volume, care transition workload and TCM compliance.
package dashboard

import (
	"math"
	"time"

	"github.com/ealmetes/HealthExtent/internal/caretransition/domain"
	"github.com/ealmetes/HealthExtent/internal/encounter"
	"github.com/ealmetes/HealthExtent/internal/tcm"
)

const (
	// TrendMonths is the number of calendar months in the trend, current month last
	TrendMonths = 6
	// ActiveListSize caps the active care transition list
	ActiveListSize = 10
)

// Executive holds the headline numbers
type Executive struct {
	ActiveEncounters      int     `json:"activeEncounters"`
	AdmittedThisMonth     int     `json:"admittedThisMonth"`
	DischargedThisMonth   int     `json:"dischargedThisMonth"`
	AvgLengthOfStay       float64 `json:"avgLengthOfStay"`
	ActiveCareTransitions int     `json:"activeCareTransitions"`
	PendingFollowUps      int     `json:"pendingFollowUps"`
	ReadmissionRate       int     `json:"readmissionRate"`
}

// MonthTrend counts admissions and discharges in one calendar month
type MonthTrend struct {
	Month      string `json:"month"`
	Admissions int    `json:"admissions"`
	Discharges int    `json:"discharges"`
}

// Summary counts care transitions by status and risk tier
type Summary struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"inProgress"`
	Closed     int `json:"closed"`
	HighRisk   int `json:"highRisk"`
	MediumRisk int `json:"mediumRisk"`
	LowRisk    int `json:"lowRisk"`
	Overdue    int `json:"overdue"`
}

// TCM is the compliance aggregate with its rates
type TCM struct {
	tcm.Metrics
	ComplianceRate int `json:"complianceRate"`
	FollowUpRate   int `json:"followUpRate"`
}

// ActiveItem is one row of the active care transition list
type ActiveItem struct {
	CareTransitionKey string     `json:"careTransitionKey"`
	PatientKey        int64      `json:"patientKey"`
	PatientName       string     `json:"patientName"`
	Status            string     `json:"status"`
	RiskTier          string     `json:"riskTier"`
	NextOutreachDate  *time.Time `json:"nextOutreachDate,omitempty"`
	AssignedTo        string     `json:"assignedTo,omitempty"`
}

// Dashboard is the full overview
type Dashboard struct {
	TenantKey             int          `json:"tenantKey"`
	GeneratedAt           time.Time    `json:"generatedAt"`
	Executive             Executive    `json:"executive"`
	Trends                []MonthTrend `json:"trends"`
	CareTransitions       Summary      `json:"careTransitions"`
	TCM                   TCM          `json:"tcm"`
	ActiveCareTransitions []ActiveItem `json:"activeCareTransitions"`
}

// Input is everything the overview is computed from
type Input struct {
	TenantKey       int
	Encounters      []encounter.Encounter
	Transitions     []domain.Detail
	Names           map[string]string
	ReadmissionMode tcm.ReadmissionMode
	Now             time.Time
}

// Compute builds the dashboard. It is pure; months are calendar months in
// Now's location.
func Compute(in Input) Dashboard {
	transitions := make([]tcm.Transition, 0, len(in.Transitions))
	for _, d := range in.Transitions {
		transitions = append(transitions, d.TCM())
	}
	encounters := encounter.ToTCM(in.Encounters)

	m := tcm.Aggregate(transitions, encounters, in.Now)

	return Dashboard{
		TenantKey:       in.TenantKey,
		GeneratedAt:     in.Now,
		Executive:       executive(in, encounters),
		Trends:          Trends(in.Encounters, in.Now),
		CareTransitions: Summarize(in.Transitions, in.Now),
		TCM: TCM{
			Metrics:        m,
			ComplianceRate: tcm.ComplianceRate(m),
			FollowUpRate:   tcm.FollowUpRate(m),
		},
		ActiveCareTransitions: active(in.Transitions, in.Names),
	}
}

func executive(in Input, encounters []tcm.Encounter) Executive {
	start, end := monthBounds(in.Now, 0)

	var e Executive
	var stays, stayDays int
	for _, enc := range in.Encounters {
		if enc.IsActive() {
			e.ActiveEncounters++
		}
		if within(enc.AdmitDateTime, start, end) {
			e.AdmittedThisMonth++
		}
		if within(enc.DischargeDateTime, start, end) {
			e.DischargedThisMonth++
		}
		if enc.AdmitDateTime != nil && enc.DischargeDateTime != nil {
			stays++
			stayDays += LengthOfStay(*enc.AdmitDateTime, *enc.DischargeDateTime)
		}
	}
	if stays > 0 {
		e.AvgLengthOfStay = math.Round(float64(stayDays)/float64(stays)*10) / 10
	}

	for _, d := range in.Transitions {
		if d.Status == domain.StatusOpen || d.Status == domain.StatusInProgress {
			e.ActiveCareTransitions++
		}
		if d.NextOutreachDate != nil && d.NextOutreachDate.After(in.Now) {
			e.PendingFollowUps++
		}
	}

	e.ReadmissionRate = tcm.ReadmissionRate(encounters, in.Now, in.ReadmissionMode)
	return e
}

// LengthOfStay counts started days between admission and discharge
func LengthOfStay(admit, discharge time.Time) int {
	return int(math.Ceil(discharge.Sub(admit).Hours() / 24))
}

// Trends counts admissions and discharges for the last TrendMonths months
func Trends(encounters []encounter.Encounter, now time.Time) []MonthTrend {
	trends := make([]MonthTrend, 0, TrendMonths)
	for i := TrendMonths - 1; i >= 0; i-- {
		start, end := monthBounds(now, -i)
		t := MonthTrend{Month: start.Format("Jan 2006")}
		for _, enc := range encounters {
			if within(enc.AdmitDateTime, start, end) {
				t.Admissions++
			}
			if within(enc.DischargeDateTime, start, end) {
				t.Discharges++
			}
		}
		trends = append(trends, t)
	}
	return trends
}

// Summarize counts transitions by status and risk. Overdue compares the
// next outreach instant with now.
func Summarize(details []domain.Detail, now time.Time) Summary {
	s := Summary{Total: len(details)}
	for _, d := range details {
		switch d.Status {
		case domain.StatusOpen:
			s.Open++
		case domain.StatusInProgress:
			s.InProgress++
		case domain.StatusClosed:
			s.Closed++
		}
		switch d.RiskTier {
		case domain.LevelHigh:
			s.HighRisk++
		case domain.LevelMedium:
			s.MediumRisk++
		case domain.LevelLow:
			s.LowRisk++
		}
		if d.NextOutreachDate != nil && d.NextOutreachDate.Before(now) && !d.IsClosed() {
			s.Overdue++
		}
	}
	return s
}

func active(details []domain.Detail, names map[string]string) []ActiveItem {
	items := []ActiveItem{}
	for _, d := range details {
		if d.IsClosed() {
			continue
		}
		item := ActiveItem{
			CareTransitionKey: d.CareTransitionKey.String(),
			PatientKey:        d.PatientKey,
			PatientName:       d.Patient.Name,
			Status:            string(d.Status),
			RiskTier:          string(d.RiskTier),
			NextOutreachDate:  d.NextOutreachDate,
		}
		if d.AssignedToUserKey != nil && *d.AssignedToUserKey != "" {
			item.AssignedTo = names[*d.AssignedToUserKey]
			if item.AssignedTo == "" {
				item.AssignedTo = "Unknown User"
			}
		}
		items = append(items, item)
		if len(items) == ActiveListSize {
			break
		}
	}
	return items
}

// monthBounds returns [start, end) of the month offset months from now's month
func monthBounds(now time.Time, offset int) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

func within(t *time.Time, start, end time.Time) bool {
	return t != nil && !t.Before(start) && t.Before(end)
}
