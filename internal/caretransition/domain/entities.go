package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/ealmetes/HealthExtent/internal/shared/types"
	"github.com/ealmetes/HealthExtent/internal/tcm"
)

// Status defines the lifecycle state of a care transition
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "InProgress"
	StatusClosed     Status = "Closed"
)

// ParseStatus accepts the stored spelling and "In Progress"
func ParseStatus(s string) (Status, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "") {
	case "open":
		return StatusOpen, nil
	case "inprogress":
		return StatusInProgress, nil
	case "closed":
		return StatusClosed, nil
	}
	return "", ErrInvalidStatus
}

// Level is used for both priority and risk tier
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// ParseLevel parses a priority or risk tier case-insensitively
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	}
	return "", ErrInvalidLevel
}

// Rank orders levels for sorting: High=3, Medium=2, Low=1
func (l Level) Rank() int {
	switch l {
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	case LevelLow:
		return 1
	}
	return 0
}

var (
	ErrClosed              = errors.New("care transition is closed")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidStatus       = errors.New("status must be Open, InProgress or Closed")
	ErrInvalidLevel        = errors.New("value must be Low, Medium or High")
	ErrCloseReasonRequired = errors.New("close reason is required")
	ErrAssigneeRequired    = errors.New("assignedToUserKey is required")
)

// Default outreach values when the caller leaves them empty
const (
	DefaultOutreachMethod = "Phone"
	DefaultContactOutcome = "Left VM"
)

// OutreachLog is one contact attempt with the patient
type OutreachLog struct {
	OutreachKey       types.ID   `json:"outreachKey"`
	CareTransitionKey types.ID   `json:"careTransitionKey"`
	TenantKey         int        `json:"tenantKey"`
	OutreachMethod    string     `json:"outreachMethod"`
	ContactOutcome    string     `json:"contactOutcome"`
	OutreachDate      time.Time  `json:"outreachDate"`
	NextOutreachDate  *time.Time `json:"nextOutreachDate,omitempty"`
	AuthorUserKey     string     `json:"authorUserKey,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	CreatedUTC        time.Time  `json:"createdUtc"`
}

// OutreachInput is what a caller supplies to log an outreach
type OutreachInput struct {
	Method           string
	Outcome          string
	OutreachDate     *time.Time
	NextOutreachDate *time.Time
	Notes            *string
}

// EventType names a care transition lifecycle event
type EventType string

const (
	EventCreated         EventType = "created"
	EventStatusChanged   EventType = "status_changed"
	EventOutreachLogged  EventType = "outreach_logged"
	EventAssigned        EventType = "assigned"
	EventPriorityChanged EventType = "priority_changed"
	EventRiskTierChanged EventType = "risk_tier_changed"
	EventUpdated         EventType = "updated"
	EventClosed          EventType = "closed"
)

// Event is a domain event for publishing
type Event struct {
	Type              EventType      `json:"type"`
	CareTransitionKey types.ID       `json:"careTransitionKey"`
	TenantKey         int            `json:"tenantKey"`
	ActorID           string         `json:"actorId,omitempty"`
	Data              map[string]any `json:"data,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}

// TCM projects the transition onto the fields the compliance rules read
func (ct *CareTransition) TCM() tcm.Transition {
	return tcm.Transition{
		EncounterKey:         ct.EncounterKey,
		Status:               tcm.Status(ct.Status),
		NextOutreachDate:     ct.NextOutreachDate,
		OutreachDate:         ct.OutreachDate,
		FollowUpApptDateTime: ct.FollowUpApptDateTime,
		OutreachAttempts:     ct.OutreachAttempts,
	}
}
