// Package audit records and lists HL7 message processing outcomes.
package audit

import (
	"time"

	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/types"
)

// MessageAudit is a row of he.Hl7MessageAudit
type MessageAudit struct {
	TenantKey        int        `json:"tenantKey"`
	MessageControlID string     `json:"messageControlId"`
	MessageType      string     `json:"messageType"`
	EventTimestamp   *time.Time `json:"eventTimestamp,omitempty"`
	SourceKey        *int       `json:"sourceKey,omitempty"`
	HospitalKey      *int       `json:"hospitalKey,omitempty"`
	RawMessage       *string    `json:"rawMessage,omitempty"`
	ProcessedUTC     time.Time  `json:"processedUtc"`
	Status           string     `json:"status"`
	ErrorText        *string    `json:"errorText,omitempty"`
}

// WriteRequest carries the he.WriteAudit_Tenant parameters
type WriteRequest struct {
	TenantKey        int     `json:"tenantKey"`
	MessageControlID string  `json:"messageControlId"`
	MessageType      string  `json:"messageType"`
	EventTimestampTS *string `json:"eventTimestamp_ts,omitempty"`
	SourceCode       *string `json:"sourceCode,omitempty"`
	HospitalCode     *string `json:"hospitalCode,omitempty"`
	RawMessage       *string `json:"rawMessage,omitempty"`
	Status           string  `json:"status"`
	ErrorText        *string `json:"errorText,omitempty"`
}

// Validate checks field limits before the stored procedure is called
func (req WriteRequest) Validate() error {
	var v apperrors.Validator
	v.Positive("TenantKey", int64(req.TenantKey))
	v.Required("MessageControlId", req.MessageControlID)
	v.MaxLength("MessageControlId", req.MessageControlID, 256)
	v.Required("MessageType", req.MessageType)
	v.MaxLength("MessageType", req.MessageType, 16)
	v.Required("Status", req.Status)
	v.MaxLength("Status", req.Status, 32)
	v.MaxLengthOpt("SourceCode", req.SourceCode, 64)
	v.MaxLengthOpt("HospitalCode", req.HospitalCode, 64)
	if _, err := types.ParseOptionalHL7Timestamp(req.EventTimestampTS); err != nil {
		v.Add("EventTimestamp_TS", err.Error())
	}
	return v.Err()
}
