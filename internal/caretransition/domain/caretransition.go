// Package domain holds the care transition aggregate: the post-discharge
// follow-up of one encounter, its status lifecycle and its outreach log.
package domain

import (
	"strings"
	"time"

	"github.com/ealmetes/HealthExtent/internal/shared/types"
	"github.com/ealmetes/HealthExtent/internal/tcm"
)

// CareTransition is the aggregate root for transitional care management
type CareTransition struct {
	CareTransitionKey types.ID `json:"careTransitionKey"`
	TenantKey         int      `json:"tenantKey"`
	EncounterKey      int64    `json:"encounterKey"`
	PatientKey        int64    `json:"patientKey"`

	Status   Status `json:"status"`
	Priority Level  `json:"priority"`
	RiskTier Level  `json:"riskTier"`

	// Fixed at creation from the discharge date
	TCMSchedule1 *time.Time `json:"tcmSchedule1,omitempty"`
	TCMSchedule2 *time.Time `json:"tcmSchedule2,omitempty"`

	// Outreach
	NextOutreachDate *time.Time `json:"nextOutreachDate,omitempty"`
	OutreachAttempts int        `json:"outreachAttempts"`
	OutreachDate     *time.Time `json:"outreachDate,omitempty"`
	LastOutreachDate *time.Time `json:"lastOutreachDate,omitempty"`
	OutreachMethod   *string    `json:"outreachMethod,omitempty"`
	ContactOutcome   *string    `json:"contactOutcome,omitempty"`

	FollowUpApptDateTime *time.Time `json:"followUpApptDateTime,omitempty"`
	FollowUpProviderKey  *string    `json:"followUpProviderKey,omitempty"`

	// Ownership
	AssignedToUserKey  *string `json:"assignedToUserKey,omitempty"`
	CareManagerUserKey *string `json:"careManagerUserKey,omitempty"`
	AssignedTeam       *string `json:"assignedTeam,omitempty"`

	CloseReason     *string    `json:"closeReason,omitempty"`
	ClosedAtUTC     *time.Time `json:"closedAtUtc,omitempty"`
	ClosedByUserKey *string    `json:"closedByUserKey,omitempty"`
	Notes           *string    `json:"notes,omitempty"`

	CreatedUTC     time.Time `json:"createdUtc"`
	LastUpdatedUTC time.Time `json:"lastUpdatedUtc"`

	// Domain events (not persisted)
	domainEvents []Event
}

// NewCareTransition opens a transition for a discharged encounter with the
// derived two and fourteen day schedule.
func NewCareTransition(tenantKey int, encounterKey, patientKey int64, discharge *time.Time, now time.Time) *CareTransition {
	schedule := tcm.DeriveSchedule(discharge)
	ct := &CareTransition{
		CareTransitionKey: types.NewID(),
		TenantKey:         tenantKey,
		EncounterKey:      encounterKey,
		PatientKey:        patientKey,
		Status:            StatusOpen,
		Priority:          LevelMedium,
		RiskTier:          LevelMedium,
		TCMSchedule1:      schedule.ContactBy,
		TCMSchedule2:      schedule.FollowUpBy,
		NextOutreachDate:  schedule.ContactBy,
		CreatedUTC:        now,
		LastUpdatedUTC:    now,
	}

	ct.addEvent(EventCreated, "", now, map[string]any{
		"encounter_key": encounterKey,
		"patient_key":   patientKey,
		"priority":      ct.Priority,
	})

	return ct
}

// IsClosed reports whether the transition accepts no further changes
func (ct *CareTransition) IsClosed() bool {
	return ct.Status == StatusClosed
}

func (ct *CareTransition) guard() error {
	if ct.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Start moves an open transition into progress
func (ct *CareTransition) Start(actorID string, now time.Time) error {
	if err := ct.guard(); err != nil {
		return err
	}
	if ct.Status != StatusOpen {
		return ErrInvalidTransition
	}

	ct.setStatus(StatusInProgress, actorID, now)
	return nil
}

// LogOutreach records a contact attempt. The first attempt fixes
// OutreachDate; the transition moves to InProgress and the author becomes
// the assignee.
func (ct *CareTransition) LogOutreach(in OutreachInput, actorID string, now time.Time) (OutreachLog, error) {
	if err := ct.guard(); err != nil {
		return OutreachLog{}, err
	}

	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = DefaultOutreachMethod
	}
	outcome := strings.TrimSpace(in.Outcome)
	if outcome == "" {
		outcome = DefaultContactOutcome
	}
	at := now
	if in.OutreachDate != nil {
		at = *in.OutreachDate
	}

	entry := OutreachLog{
		OutreachKey:       types.NewID(),
		CareTransitionKey: ct.CareTransitionKey,
		TenantKey:         ct.TenantKey,
		OutreachMethod:    method,
		ContactOutcome:    outcome,
		OutreachDate:      at,
		NextOutreachDate:  in.NextOutreachDate,
		AuthorUserKey:     actorID,
		Notes:             in.Notes,
		CreatedUTC:        now,
	}

	ct.OutreachAttempts++
	if ct.OutreachDate == nil {
		first := at
		ct.OutreachDate = &first
	}
	ct.LastOutreachDate = &at
	ct.OutreachMethod = &method
	ct.ContactOutcome = &outcome
	ct.NextOutreachDate = in.NextOutreachDate
	if in.Notes != nil {
		ct.Notes = in.Notes
	}
	if actorID != "" {
		author := actorID
		ct.AssignedToUserKey = &author
	}
	ct.LastUpdatedUTC = now

	ct.addEvent(EventOutreachLogged, actorID, now, map[string]any{
		"outreach_key":      entry.OutreachKey,
		"method":            method,
		"outcome":           outcome,
		"outreach_attempts": ct.OutreachAttempts,
	})

	if ct.Status == StatusOpen {
		ct.setStatus(StatusInProgress, actorID, now)
	}

	return entry, nil
}

// Assign hands the transition to a user, optionally with a care manager and team
func (ct *CareTransition) Assign(assignee string, careManager, team *string, actorID string, now time.Time) error {
	if err := ct.guard(); err != nil {
		return err
	}
	if strings.TrimSpace(assignee) == "" {
		return ErrAssigneeRequired
	}

	previous := ct.AssignedToUserKey
	ct.AssignedToUserKey = &assignee
	if careManager != nil {
		ct.CareManagerUserKey = careManager
	}
	if team != nil {
		ct.AssignedTeam = team
	}
	ct.LastUpdatedUTC = now

	ct.addEvent(EventAssigned, actorID, now, map[string]any{
		"assigned_to":   assignee,
		"previous":      previous,
		"care_manager":  ct.CareManagerUserKey,
		"assigned_team": ct.AssignedTeam,
	})
	return nil
}

// SetPriority changes the working priority
func (ct *CareTransition) SetPriority(priority Level, actorID string, now time.Time) error {
	if err := ct.guard(); err != nil {
		return err
	}
	if priority.Rank() == 0 {
		return ErrInvalidLevel
	}

	old := ct.Priority
	ct.Priority = priority
	ct.LastUpdatedUTC = now
	ct.addEvent(EventPriorityChanged, actorID, now, map[string]any{"old": old, "new": priority})
	return nil
}

// SetRiskTier changes the clinical risk tier
func (ct *CareTransition) SetRiskTier(tier Level, actorID string, now time.Time) error {
	if err := ct.guard(); err != nil {
		return err
	}
	if tier.Rank() == 0 {
		return ErrInvalidLevel
	}

	old := ct.RiskTier
	ct.RiskTier = tier
	ct.LastUpdatedUTC = now
	ct.addEvent(EventRiskTierChanged, actorID, now, map[string]any{"old": old, "new": tier})
	return nil
}

// Changes holds the optional fields of a general update. Nil means unchanged.
type Changes struct {
	Notes                *string
	NextOutreachDate     *time.Time
	FollowUpApptDateTime *time.Time
	FollowUpProviderKey  *string
	CareManagerUserKey   *string
}

// Update applies general field changes
func (ct *CareTransition) Update(c Changes, actorID string, now time.Time) error {
	if err := ct.guard(); err != nil {
		return err
	}

	changed := []string{}
	if c.Notes != nil {
		ct.Notes = c.Notes
		changed = append(changed, "notes")
	}
	if c.NextOutreachDate != nil {
		ct.NextOutreachDate = c.NextOutreachDate
		changed = append(changed, "nextOutreachDate")
	}
	if c.FollowUpApptDateTime != nil {
		ct.FollowUpApptDateTime = c.FollowUpApptDateTime
		changed = append(changed, "followUpApptDateTime")
	}
	if c.FollowUpProviderKey != nil {
		ct.FollowUpProviderKey = c.FollowUpProviderKey
		changed = append(changed, "followUpProviderKey")
	}
	if c.CareManagerUserKey != nil {
		ct.CareManagerUserKey = c.CareManagerUserKey
		changed = append(changed, "careManagerUserKey")
	}
	if len(changed) == 0 {
		return nil
	}

	ct.LastUpdatedUTC = now
	ct.addEvent(EventUpdated, actorID, now, map[string]any{"fields": changed})
	return nil
}

// Close ends the transition. Nothing can change afterwards.
func (ct *CareTransition) Close(reason string, notes *string, closedBy string, now time.Time) error {
	if err := ct.guard(); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrCloseReasonRequired
	}

	old := ct.Status
	closedAt := now
	ct.Status = StatusClosed
	ct.CloseReason = &reason
	ct.ClosedAtUTC = &closedAt
	if closedBy != "" {
		ct.ClosedByUserKey = &closedBy
	}
	if notes != nil {
		ct.Notes = notes
	}
	ct.LastUpdatedUTC = now

	ct.addEvent(EventClosed, closedBy, now, map[string]any{
		"old_status":   old,
		"close_reason": reason,
	})
	return nil
}

// GetDomainEvents returns and clears domain events
func (ct *CareTransition) GetDomainEvents() []Event {
	events := ct.domainEvents
	ct.domainEvents = nil
	return events
}

func (ct *CareTransition) setStatus(status Status, actorID string, now time.Time) {
	old := ct.Status
	ct.Status = status
	ct.LastUpdatedUTC = now
	ct.addEvent(EventStatusChanged, actorID, now, map[string]any{
		"old_status": old,
		"new_status": status,
	})
}

func (ct *CareTransition) addEvent(eventType EventType, actorID string, now time.Time, data map[string]any) {
	ct.domainEvents = append(ct.domainEvents, Event{
		Type:              eventType,
		CareTransitionKey: ct.CareTransitionKey,
		TenantKey:         ct.TenantKey,
		ActorID:           actorID,
		Data:              data,
		Timestamp:         now,
	})
}
