// Package patient exposes tenant-scoped patient demographics.
package patient

import (
	"time"

	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/types"
)

// Patient is a row of he.Patient
type Patient struct {
	PatientKey           int64      `json:"patientKey"`
	TenantKey            int        `json:"tenantKey"`
	PatientIDExternal    string     `json:"patientIdExternal"`
	AssigningAuthority   *string    `json:"assigningAuthority,omitempty"`
	MRN                  *string    `json:"mrn,omitempty"`
	FamilyName           *string    `json:"familyName,omitempty"`
	GivenName            *string    `json:"givenName,omitempty"`
	DOB                  *time.Time `json:"dob,omitempty"`
	Sex                  *string    `json:"sex,omitempty"`
	Phone                *string    `json:"phone,omitempty"`
	AddressLine1         *string    `json:"addressLine1,omitempty"`
	City                 *string    `json:"city,omitempty"`
	State                *string    `json:"state,omitempty"`
	PostalCode           *string    `json:"postalCode,omitempty"`
	Country              *string    `json:"country,omitempty"`
	FirstSeenHospitalKey *int       `json:"firstSeenHospitalKey,omitempty"`
	LastUpdatedUTC       time.Time  `json:"lastUpdatedUtc"`
}

// DisplayName is "Given Family", falling back to the external id.
func (p Patient) DisplayName() string {
	name := ""
	if p.GivenName != nil {
		name = *p.GivenName
	}
	if p.FamilyName != nil && *p.FamilyName != "" {
		if name != "" {
			name += " "
		}
		name += *p.FamilyName
	}
	if name == "" {
		return p.PatientIDExternal
	}
	return name
}

// UpsertRequest carries the he.UpsertPatient_Tenant parameters.
// DOBTS is an HL7 timestamp.
type UpsertRequest struct {
	TenantKey             int     `json:"tenantKey"`
	PatientIDExternal     string  `json:"patientIdExternal"`
	AssigningAuthority    *string `json:"assigningAuthority,omitempty"`
	MRN                   *string `json:"mrn,omitempty"`
	FamilyName            *string `json:"familyName,omitempty"`
	GivenName             *string `json:"givenName,omitempty"`
	DOBTS                 *string `json:"dob_ts,omitempty"`
	Sex                   *string `json:"sex,omitempty"`
	Phone                 *string `json:"phone,omitempty"`
	AddressLine1          *string `json:"addressLine1,omitempty"`
	City                  *string `json:"city,omitempty"`
	State                 *string `json:"state,omitempty"`
	PostalCode            *string `json:"postalCode,omitempty"`
	Country               *string `json:"country,omitempty"`
	FirstSeenHospitalCode *string `json:"firstSeenHospitalCode,omitempty"`
}

// Validate checks field limits before the stored procedure is called
func (req UpsertRequest) Validate() error {
	var v apperrors.Validator
	v.Positive("TenantKey", int64(req.TenantKey))
	v.Required("PatientIdExternal", req.PatientIDExternal)
	v.MaxLength("PatientIdExternal", req.PatientIDExternal, 128)
	v.MaxLengthOpt("AssigningAuthority", req.AssigningAuthority, 128)
	v.MaxLengthOpt("MRN", req.MRN, 64)
	v.MaxLengthOpt("FamilyName", req.FamilyName, 128)
	v.MaxLengthOpt("GivenName", req.GivenName, 128)
	if req.Sex != nil {
		v.Check(len([]rune(*req.Sex)) <= 1, "Sex", "Sex must be a single character")
	}
	v.MaxLengthOpt("Phone", req.Phone, 32)
	v.MaxLengthOpt("PostalCode", req.PostalCode, 16)
	if _, err := types.ParseOptionalHL7Timestamp(req.DOBTS); err != nil {
		v.Add("DOB_TS", err.Error())
	}
	return v.Err()
}

// UpsertResponse is returned by POST /api/patients/upsert
type UpsertResponse struct {
	PatientKey int64  `json:"patientKey,omitempty"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
}
