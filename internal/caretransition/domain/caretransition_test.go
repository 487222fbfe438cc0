package domain

import (
	"errors"
	"testing"
	"time"
)

var (
	discharge = time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	now       = time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }

func newTransition() *CareTransition {
	d := discharge
	return NewCareTransition(1, 10, 20, &d, now)
}

// TestNewCareTransition tests opening a transition from a discharge
func TestNewCareTransition(t *testing.T) {
	ct := newTransition()

	if ct.CareTransitionKey.IsZero() {
		t.Error("Expected non-zero key")
	}
	if ct.Status != StatusOpen {
		t.Errorf("Expected status %s, got %s", StatusOpen, ct.Status)
	}
	if ct.Priority != LevelMedium || ct.RiskTier != LevelMedium {
		t.Errorf("Expected Medium/Medium, got %s/%s", ct.Priority, ct.RiskTier)
	}

	wantContact := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	wantFollowUp := time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)
	if ct.TCMSchedule1 == nil || !ct.TCMSchedule1.Equal(wantContact) {
		t.Errorf("Expected contact by %v, got %v", wantContact, ct.TCMSchedule1)
	}
	if ct.TCMSchedule2 == nil || !ct.TCMSchedule2.Equal(wantFollowUp) {
		t.Errorf("Expected follow-up by %v, got %v", wantFollowUp, ct.TCMSchedule2)
	}

	events := ct.GetDomainEvents()
	if len(events) != 1 || events[0].Type != EventCreated {
		t.Errorf("Expected one created event, got %+v", events)
	}
	if len(ct.GetDomainEvents()) != 0 {
		t.Error("Expected events to be cleared after retrieval")
	}
}

func TestNewCareTransitionWithoutDischarge(t *testing.T) {
	ct := NewCareTransition(1, 10, 20, nil, now)
	if ct.TCMSchedule1 != nil || ct.TCMSchedule2 != nil {
		t.Error("Expected no schedule without a discharge")
	}
}

// TestStatusTransitions tests the Open -> InProgress -> Closed lifecycle
func TestStatusTransitions(t *testing.T) {
	ct := newTransition()

	if err := ct.Start("u1", now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ct.Status != StatusInProgress {
		t.Errorf("Expected status %s, got %s", StatusInProgress, ct.Status)
	}
	if err := ct.Start("u1", now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	if err := ct.Close("", nil, "u1", now); !errors.Is(err, ErrCloseReasonRequired) {
		t.Errorf("Expected ErrCloseReasonRequired, got %v", err)
	}
	if err := ct.Close("Completed", strPtr("done"), "u1", now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ct.Status != StatusClosed || ct.CloseReason == nil || *ct.CloseReason != "Completed" {
		t.Errorf("Expected closed with reason, got %s %v", ct.Status, ct.CloseReason)
	}
	if ct.ClosedAtUTC == nil || !ct.ClosedAtUTC.Equal(now) {
		t.Errorf("Expected closedAt %v, got %v", now, ct.ClosedAtUTC)
	}
}

func TestOpenCanCloseDirectly(t *testing.T) {
	ct := newTransition()
	if err := ct.Close("Patient declined", nil, "u1", now); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

// TestClosedRejectsMutations tests that nothing leaves or changes a closed transition
func TestClosedRejectsMutations(t *testing.T) {
	ct := newTransition()
	if err := ct.Close("Completed", nil, "u1", now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	mutations := map[string]func() error{
		"Start":    func() error { return ct.Start("u1", now) },
		"Close":    func() error { return ct.Close("again", nil, "u1", now) },
		"Assign":   func() error { return ct.Assign("u2", nil, nil, "u1", now) },
		"Priority": func() error { return ct.SetPriority(LevelHigh, "u1", now) },
		"Risk":     func() error { return ct.SetRiskTier(LevelLow, "u1", now) },
		"Update":   func() error { return ct.Update(Changes{Notes: strPtr("x")}, "u1", now) },
		"Outreach": func() error {
			_, err := ct.LogOutreach(OutreachInput{}, "u1", now)
			return err
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			if err := mutate(); !errors.Is(err, ErrClosed) {
				t.Errorf("Expected ErrClosed, got %v", err)
			}
		})
	}
	if ct.Status != StatusClosed {
		t.Errorf("Expected status to stay Closed, got %s", ct.Status)
	}
}

// TestLogOutreach tests attempt counting and first/last outreach dates
func TestLogOutreach(t *testing.T) {
	ct := newTransition()
	ct.GetDomainEvents()

	next := now.AddDate(0, 0, 3)
	entry, err := ct.LogOutreach(OutreachInput{NextOutreachDate: &next}, "nurse-1", now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if entry.OutreachMethod != DefaultOutreachMethod || entry.ContactOutcome != DefaultContactOutcome {
		t.Errorf("Expected defaults, got %s/%s", entry.OutreachMethod, entry.ContactOutcome)
	}
	if ct.OutreachAttempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", ct.OutreachAttempts)
	}
	if ct.Status != StatusInProgress {
		t.Errorf("Expected status %s, got %s", StatusInProgress, ct.Status)
	}
	if ct.AssignedToUserKey == nil || *ct.AssignedToUserKey != "nurse-1" {
		t.Errorf("Expected author to be assigned, got %v", ct.AssignedToUserKey)
	}
	if ct.NextOutreachDate == nil || !ct.NextOutreachDate.Equal(next) {
		t.Errorf("Expected next outreach %v, got %v", next, ct.NextOutreachDate)
	}

	later := now.Add(48 * time.Hour)
	if _, err := ct.LogOutreach(OutreachInput{Method: "SMS", Outcome: "Reached", OutreachDate: &later}, "nurse-2", later); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ct.OutreachAttempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", ct.OutreachAttempts)
	}
	if !ct.OutreachDate.Equal(now) {
		t.Errorf("Expected first outreach date to stay %v, got %v", now, ct.OutreachDate)
	}
	if !ct.LastOutreachDate.Equal(later) {
		t.Errorf("Expected last outreach %v, got %v", later, ct.LastOutreachDate)
	}
	if ct.NextOutreachDate != nil {
		t.Errorf("Expected next outreach cleared, got %v", ct.NextOutreachDate)
	}

	var types []EventType
	for _, e := range ct.GetDomainEvents() {
		types = append(types, e.Type)
	}
	want := []EventType{EventOutreachLogged, EventStatusChanged, EventOutreachLogged}
	if len(types) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("Expected event %d to be %s, got %s", i, want[i], types[i])
		}
	}
}

func TestAssignAndLevels(t *testing.T) {
	ct := newTransition()

	if err := ct.Assign(" ", nil, nil, "admin", now); !errors.Is(err, ErrAssigneeRequired) {
		t.Errorf("Expected ErrAssigneeRequired, got %v", err)
	}
	if err := ct.Assign("u7", strPtr("mgr"), strPtr("North"), "admin", now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if *ct.AssignedToUserKey != "u7" || *ct.CareManagerUserKey != "mgr" || *ct.AssignedTeam != "North" {
		t.Error("Expected assignment fields to be set")
	}

	if err := ct.SetPriority(Level("Urgent"), "admin", now); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("Expected ErrInvalidLevel, got %v", err)
	}
	if err := ct.SetPriority(LevelHigh, "admin", now); err != nil || ct.Priority != LevelHigh {
		t.Errorf("Expected High priority, got %s (%v)", ct.Priority, err)
	}
	if err := ct.SetRiskTier(LevelLow, "admin", now); err != nil || ct.RiskTier != LevelLow {
		t.Errorf("Expected Low risk, got %s (%v)", ct.RiskTier, err)
	}
}

func TestUpdateNoChanges(t *testing.T) {
	ct := newTransition()
	ct.GetDomainEvents()

	if err := ct.Update(Changes{}, "u1", now.Add(time.Hour)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(ct.GetDomainEvents()) != 0 {
		t.Error("Expected no event for an empty update")
	}
	if !ct.LastUpdatedUTC.Equal(now) {
		t.Error("Expected LastUpdatedUTC unchanged")
	}
}

func TestParseLevelAndStatus(t *testing.T) {
	if l, err := ParseLevel("high"); err != nil || l != LevelHigh {
		t.Errorf("Expected High, got %s (%v)", l, err)
	}
	if _, err := ParseLevel("extreme"); err == nil {
		t.Error("Expected error for unknown level")
	}
	if s, err := ParseStatus("In Progress"); err != nil || s != StatusInProgress {
		t.Errorf("Expected InProgress, got %s (%v)", s, err)
	}
	if LevelHigh.Rank() != 3 || LevelMedium.Rank() != 2 || LevelLow.Rank() != 1 {
		t.Error("Unexpected level ranks")
	}
}
