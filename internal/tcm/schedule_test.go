package tcm

import (
	"testing"
	"time"
)

func TestDeriveSchedule(t *testing.T) {
	discharge := time.Date(2024, 2, 27, 14, 5, 0, 0, time.UTC)
	s := DeriveSchedule(&discharge)

	if s.ContactBy == nil || !s.ContactBy.Equal(time.Date(2024, 2, 29, 14, 5, 0, 0, time.UTC)) {
		t.Errorf("Expected contact by Feb 29, got %v", s.ContactBy)
	}
	if s.FollowUpBy == nil || !s.FollowUpBy.Equal(time.Date(2024, 3, 12, 14, 5, 0, 0, time.UTC)) {
		t.Errorf("Expected follow-up by Mar 12, got %v", s.FollowUpBy)
	}
}

func TestDeriveScheduleWithoutDischarge(t *testing.T) {
	s := DeriveSchedule(nil)
	if s.ContactBy != nil || s.FollowUpBy != nil {
		t.Errorf("Expected empty schedule, got %+v", s)
	}
}

func TestDeriveScheduleDoesNotAliasInput(t *testing.T) {
	discharge := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := DeriveSchedule(&discharge)
	discharge = discharge.AddDate(1, 0, 0)

	if s.ContactBy.Year() != 2024 {
		t.Errorf("Expected schedule to be independent of input, got %v", s.ContactBy)
	}
}
