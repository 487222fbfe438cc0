// Package encounter exposes tenant-scoped hospital visits and hands recorded
// discharges to the care transition workflow.
package encounter

import (
	"time"

	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/types"
	"github.com/ealmetes/HealthExtent/internal/tcm"
)

// Encounter is a row of he.Encounter
type Encounter struct {
	EncounterKey       int64      `json:"encounterKey"`
	TenantKey          int        `json:"tenantKey"`
	HospitalKey        int        `json:"hospitalKey"`
	PatientKey         int64      `json:"patientKey"`
	VisitNumber        string     `json:"visitNumber"`
	AdmitDateTime      *time.Time `json:"admitDateTime,omitempty"`
	DischargeDateTime  *time.Time `json:"dischargeDateTime,omitempty"`
	PatientClass       *string    `json:"patientClass,omitempty"`
	Location           *string    `json:"location,omitempty"`
	AttendingDoctor    *string    `json:"attendingDoctor,omitempty"`
	PrimaryDoctor      *string    `json:"primaryDoctor,omitempty"`
	AdmittingDoctor    *string    `json:"admittingDoctor,omitempty"`
	AdmitSource        *string    `json:"admitSource,omitempty"`
	VisitStatus        *string    `json:"visitStatus,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
	AdmitMessageID     *string    `json:"admitMessageId,omitempty"`
	DischargeMessageID *string    `json:"dischargeMessageId,omitempty"`
	LastUpdatedUTC     time.Time  `json:"lastUpdatedUtc"`
}

// IsActive reports whether the patient has not been discharged yet
func (e Encounter) IsActive() bool {
	return e.DischargeDateTime == nil
}

// TCM projects the encounter onto the fields the compliance rules read
func (e Encounter) TCM() tcm.Encounter {
	out := tcm.Encounter{
		EncounterKey:      e.EncounterKey,
		PatientKey:        e.PatientKey,
		AdmitDateTime:     e.AdmitDateTime,
		DischargeDateTime: e.DischargeDateTime,
	}
	if e.VisitStatus != nil {
		out.VisitStatus = *e.VisitStatus
	}
	return out
}

// ToTCM projects a slice of encounters
func ToTCM(encounters []Encounter) []tcm.Encounter {
	out := make([]tcm.Encounter, 0, len(encounters))
	for _, e := range encounters {
		out = append(out, e.TCM())
	}
	return out
}

// UpsertRequest carries the he.UpsertEncounter_Tenant parameters.
// AdmitTS and DischargeTS are HL7 timestamps.
type UpsertRequest struct {
	TenantKey          int     `json:"tenantKey"`
	HospitalCode       string  `json:"hospitalCode"`
	VisitNumber        string  `json:"visitNumber"`
	PatientKey         int64   `json:"patientKey"`
	AdmitTS            *string `json:"admit_ts,omitempty"`
	DischargeTS        *string `json:"discharge_ts,omitempty"`
	PatientClass       *string `json:"patientClass,omitempty"`
	Location           *string `json:"location,omitempty"`
	AttendingDoctor    *string `json:"attendingDoctor,omitempty"`
	PrimaryDoctor      *string `json:"primaryDoctor,omitempty"`
	AdmittingDoctor    *string `json:"admittingDoctor,omitempty"`
	AdmitSource        *string `json:"admitSource,omitempty"`
	VisitStatus        *string `json:"visitStatus,omitempty"`
	Notes              *string `json:"notes,omitempty"`
	AdmitMessageID     *string `json:"admitMessageId,omitempty"`
	DischargeMessageID *string `json:"dischargeMessageId,omitempty"`
}

// Validate checks field limits before the stored procedure is called
func (req UpsertRequest) Validate() error {
	var v apperrors.Validator
	v.Positive("TenantKey", int64(req.TenantKey))
	v.Required("HospitalCode", req.HospitalCode)
	v.MaxLength("HospitalCode", req.HospitalCode, 64)
	v.Required("VisitNumber", req.VisitNumber)
	v.MaxLength("VisitNumber", req.VisitNumber, 64)
	v.Positive("PatientKey", req.PatientKey)
	if _, err := types.ParseOptionalHL7Timestamp(req.AdmitTS); err != nil {
		v.Add("Admit_TS", err.Error())
	}
	if _, err := types.ParseOptionalHL7Timestamp(req.DischargeTS); err != nil {
		v.Add("Discharge_TS", err.Error())
	}
	return v.Err()
}

// UpsertResponse is returned by POST /upsert
type UpsertResponse struct {
	EncounterKey *int64 `json:"encounterKey,omitempty"`
	Success      bool   `json:"success"`
	Message      string `json:"message"`
}
