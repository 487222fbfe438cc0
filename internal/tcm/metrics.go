package tcm

import (
	"math"
	"strings"
	"time"
)

// Status mirrors the care transition lifecycle.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "InProgress"
	StatusClosed     Status = "Closed"
)

// canonical folds case and inner spaces so "In Progress" counts as InProgress.
func (s Status) canonical() Status {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(s))), " ", "") {
	case "open":
		return StatusOpen
	case "inprogress":
		return StatusInProgress
	case "closed":
		return StatusClosed
	}
	return s
}

// Transition is the slice of a care transition the aggregator reads.
type Transition struct {
	EncounterKey         int64
	Status               Status
	NextOutreachDate     *time.Time
	OutreachDate         *time.Time
	FollowUpApptDateTime *time.Time
	OutreachAttempts     int
}

// Encounter is the slice of an encounter the aggregator reads.
type Encounter struct {
	EncounterKey      int64
	PatientKey        int64
	AdmitDateTime     *time.Time
	DischargeDateTime *time.Time
	VisitStatus       string
}

// Metrics summarizes a tenant's care transitions.
type Metrics struct {
	TotalOpen             int     `json:"totalOpen"`
	TotalInProgress       int     `json:"totalInProgress"`
	TotalClosed           int     `json:"totalClosed"`
	Overdue               int     `json:"overdue"`
	DueToday              int     `json:"dueToday"`
	TCMContactWithin2Days int     `json:"tcmContactWithin2Days"`
	FollowUpWithin14Days  int     `json:"followUpWithin14Days"`
	AvgOutreachAttempts   float64 `json:"avgOutreachAttempts"`
}

// Aggregate computes Metrics. Discharge dates are joined through EncounterKey;
// transitions whose encounter is missing or undischarged never count toward
// the contact or follow-up windows.
func Aggregate(transitions []Transition, encounters []Encounter, now time.Time) Metrics {
	discharges := make(map[int64]time.Time, len(encounters))
	for _, e := range encounters {
		if e.DischargeDateTime != nil {
			discharges[e.EncounterKey] = *e.DischargeDateTime
		}
	}

	var m Metrics
	attempts := 0
	for _, t := range transitions {
		status := t.Status.canonical()
		switch status {
		case StatusOpen:
			m.TotalOpen++
		case StatusInProgress:
			m.TotalInProgress++
		case StatusClosed:
			m.TotalClosed++
		}

		if t.NextOutreachDate != nil {
			days := DaysBetween(now, *t.NextOutreachDate)
			if days < 0 && status != StatusClosed {
				m.Overdue++
			}
			if days == 0 {
				m.DueToday++
			}
		}

		if discharge, ok := discharges[t.EncounterKey]; ok {
			if t.OutreachDate != nil && elapsedDays(discharge, *t.OutreachDate) <= ContactWindowDays {
				m.TCMContactWithin2Days++
			}
			if t.FollowUpApptDateTime != nil && elapsedDays(discharge, *t.FollowUpApptDateTime) <= FollowUpWindowDays {
				m.FollowUpWithin14Days++
			}
		}

		attempts += t.OutreachAttempts
	}

	if len(transitions) > 0 {
		m.AvgOutreachAttempts = float64(attempts) / float64(len(transitions))
	}
	return m
}

// ComplianceRate is the percentage of active transitions contacted within two days.
func ComplianceRate(m Metrics) int {
	return percent(m.TCMContactWithin2Days, m.TotalOpen+m.TotalInProgress)
}

// FollowUpRate is the percentage of active transitions seen within fourteen days.
func FollowUpRate(m Metrics) int {
	return percent(m.FollowUpWithin14Days, m.TotalOpen+m.TotalInProgress)
}

// ReadmissionMode selects how readmissions are counted.
type ReadmissionMode string

const (
	// ReadmissionLinked counts discharges followed by an admission of the
	// same patient within 30 days.
	ReadmissionLinked ReadmissionMode = "linked"
	// ReadmissionWindow counts encounters flagged READMITTED or R that were
	// admitted in the last 30 days.
	ReadmissionWindow ReadmissionMode = "window"
)

// ReadmissionWindowDays is the lookback for readmission counting.
const ReadmissionWindowDays = 30

// ReadmissionRate returns round(readmitted / max(discharged in last 30 days, 1) * 100).
func ReadmissionRate(encounters []Encounter, now time.Time, mode ReadmissionMode) int {
	windowStart := now.AddDate(0, 0, -ReadmissionWindowDays)
	inWindow := func(t *time.Time) bool {
		return t != nil && !t.Before(windowStart) && !t.After(now)
	}

	discharged := 0
	for _, e := range encounters {
		if inWindow(e.DischargeDateTime) {
			discharged++
		}
	}

	readmitted := 0
	if mode == ReadmissionWindow {
		for _, e := range encounters {
			status := strings.ToUpper(strings.TrimSpace(e.VisitStatus))
			if (status == "READMITTED" || status == "R") && inWindow(e.AdmitDateTime) {
				readmitted++
			}
		}
	} else {
		admissions := make(map[int64][]Encounter)
		for _, e := range encounters {
			if e.AdmitDateTime != nil {
				admissions[e.PatientKey] = append(admissions[e.PatientKey], e)
			}
		}
		for _, e := range encounters {
			if !inWindow(e.DischargeDateTime) {
				continue
			}
			limit := e.DischargeDateTime.AddDate(0, 0, ReadmissionWindowDays)
			for _, next := range admissions[e.PatientKey] {
				if next.EncounterKey == e.EncounterKey {
					continue
				}
				admit := *next.AdmitDateTime
				if admit.After(*e.DischargeDateTime) && !admit.After(limit) && !admit.After(now) {
					readmitted++
					break
				}
			}
		}
	}

	return percent(readmitted, discharged)
}

// percent is round(n / max(d, 1) * 100) clamped to [0, 100].
func percent(n, d int) int {
	if d < 1 {
		d = 1
	}
	p := int(math.Round(float64(n) / float64(d) * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
