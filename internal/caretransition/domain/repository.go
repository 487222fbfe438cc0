package domain

import (
	"context"
	"time"

	"github.com/ealmetes/HealthExtent/internal/shared/types"
)

// Repository defines the interface for care transition persistence.
// Every call is scoped by tenant key.
type Repository interface {
	Create(ctx context.Context, ct *CareTransition) error
	Update(ctx context.Context, ct *CareTransition) error
	LogOutreach(ctx context.Context, ct *CareTransition, entry *OutreachLog) error

	FindByKey(ctx context.Context, tenantKey int, key types.ID) (*Detail, error)
	FindByEncounter(ctx context.Context, tenantKey int, encounterKey int64) (*Detail, error)
	List(ctx context.Context, tenantKey int, filter Filter) ([]Detail, error)
	ListOutreach(ctx context.Context, tenantKey int, key types.ID) ([]OutreachLog, error)
}

// PatientRef is the patient a transition follows
type PatientRef struct {
	PatientKey int64      `json:"patientKey"`
	Name       string     `json:"name"`
	MRN        *string    `json:"mrn,omitempty"`
	DOB        *time.Time `json:"dob,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
}

// HospitalRef is the discharging hospital
type HospitalRef struct {
	HospitalKey  int    `json:"hospitalKey"`
	HospitalCode string `json:"hospitalCode"`
	HospitalName string `json:"hospitalName"`
}

// EncounterRef is the visit the transition was opened for
type EncounterRef struct {
	EncounterKey      int64      `json:"encounterKey"`
	VisitNumber       string     `json:"visitNumber"`
	AdmitDateTime     *time.Time `json:"admitDateTime,omitempty"`
	DischargeDateTime *time.Time `json:"dischargeDateTime,omitempty"`
	Location          *string    `json:"location,omitempty"`
	VisitStatus       *string    `json:"visitStatus,omitempty"`
}

// Detail is a transition joined with its patient, hospital and encounter
type Detail struct {
	CareTransition
	Patient   PatientRef   `json:"patient"`
	Hospital  HospitalRef  `json:"hospital"`
	Encounter EncounterRef `json:"encounter"`
}

// HospitalLabel is the hospital name, falling back to the encounter location
func (d Detail) HospitalLabel() string {
	if d.Hospital.HospitalName != "" {
		return d.Hospital.HospitalName
	}
	if d.Encounter.Location != nil {
		return *d.Encounter.Location
	}
	return ""
}

// Filter narrows a transition listing. Zero values match everything.
type Filter struct {
	Status            *Status    `json:"status,omitempty"`
	Priority          *Level     `json:"priority,omitempty"`
	RiskTier          *Level     `json:"riskTier,omitempty"`
	AssignedToUserKey string     `json:"assignedToUserKey,omitempty"`
	HospitalKey       *int       `json:"hospitalKey,omitempty"`
	Search            string     `json:"search,omitempty"`
	DueDateFrom       *time.Time `json:"dueDateFrom,omitempty"`
	DueDateTo         *time.Time `json:"dueDateTo,omitempty"`
}
