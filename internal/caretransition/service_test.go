package caretransition

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ealmetes/HealthExtent/internal/caretransition/domain"
	"github.com/ealmetes/HealthExtent/internal/caretransition/infrastructure"
	"github.com/ealmetes/HealthExtent/internal/encounter"
	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/events"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) Close()        {}
func (b *recordingBus) Health() error { return nil }

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

var fixedNow = time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)

func newTestService() (*Service, *infrastructure.MemoryRepository, *recordingBus) {
	repo := infrastructure.NewMemoryRepository()
	bus := &recordingBus{}
	svc := NewService(repo, bus)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, bus
}

func dischargedEncounter(key int64, discharge time.Time) encounter.Encounter {
	return encounter.Encounter{EncounterKey: key, TenantKey: 1, PatientKey: 30, DischargeDateTime: &discharge}
}

// TestRecordDischargeOpensOnce tests that the schedule is fixed by the first discharge
func TestRecordDischargeOpensOnce(t *testing.T) {
	ctx := context.Background()
	svc, repo, bus := newTestService()

	first := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := svc.RecordDischarge(ctx, dischargedEncounter(10, first)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	later := first.AddDate(0, 0, 5)
	if err := svc.RecordDischarge(ctx, dischargedEncounter(10, later)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	d, err := repo.FindByEncounter(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Expected transition, got %v", err)
	}
	want := first.AddDate(0, 0, 2)
	if d.TCMSchedule1 == nil || !d.TCMSchedule1.Equal(want) {
		t.Errorf("Expected contact by %v, got %v", want, d.TCMSchedule1)
	}
	if d.Status != domain.StatusOpen || d.Priority != domain.LevelMedium {
		t.Errorf("Expected Open/Medium, got %s/%s", d.Status, d.Priority)
	}

	got := bus.types()
	if len(got) != 1 || got[0] != "caretransition.created" {
		t.Errorf("Expected one created event, got %v", got)
	}
}

func TestRecordDischargeIgnoresUndischarged(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	if err := svc.RecordDischarge(ctx, encounter.Encounter{EncounterKey: 11, TenantKey: 1}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := repo.FindByEncounter(ctx, 1, 11); !apperrors.IsNotFound(err) {
		t.Errorf("Expected no transition, got %v", err)
	}
}

// TestMutateClosedIsConflict tests that a closed transition rejects changes with 409
func TestMutateClosedIsConflict(t *testing.T) {
	ctx := context.Background()
	svc, repo, bus := newTestService()
	svc.RecordDischarge(ctx, dischargedEncounter(12, fixedNow))
	d, _ := repo.FindByEncounter(ctx, 1, 12)

	_, err := svc.Mutate(ctx, 1, d.CareTransitionKey, func(ct *domain.CareTransition, now time.Time) error {
		return ct.Close("Completed", nil, "u1", now)
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err = svc.Mutate(ctx, 1, d.CareTransitionKey, func(ct *domain.CareTransition, now time.Time) error {
		return ct.SetPriority(domain.LevelHigh, "u1", now)
	})
	var appErr *apperrors.AppError
	if !apperrors.As(err, &appErr) || appErr.HTTPStatus != http.StatusConflict {
		t.Errorf("Expected 409 conflict, got %v", err)
	}

	stored, _ := repo.FindByKey(ctx, 1, d.CareTransitionKey)
	if stored.Priority != domain.LevelMedium {
		t.Errorf("Expected priority unchanged, got %s", stored.Priority)
	}

	got := bus.types()
	if len(got) != 2 || got[1] != "caretransition.closed" {
		t.Errorf("Expected created then closed events, got %v", got)
	}
}

func TestLogOutreachPersistsEntry(t *testing.T) {
	ctx := context.Background()
	svc, repo, bus := newTestService()
	svc.RecordDischarge(ctx, dischargedEncounter(13, fixedNow.AddDate(0, 0, -1)))
	d, _ := repo.FindByEncounter(ctx, 1, 13)

	updated, entry, err := svc.LogOutreach(ctx, 1, d.CareTransitionKey, domain.OutreachInput{Method: "Email"}, "nurse")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if updated.Status != domain.StatusInProgress || updated.OutreachAttempts != 1 {
		t.Errorf("Expected InProgress with 1 attempt, got %s/%d", updated.Status, updated.OutreachAttempts)
	}
	if entry.OutreachMethod != "Email" || entry.ContactOutcome != domain.DefaultContactOutcome {
		t.Errorf("Unexpected entry %+v", entry)
	}

	logs, _ := repo.ListOutreach(ctx, 1, d.CareTransitionKey)
	if len(logs) != 1 {
		t.Errorf("Expected 1 outreach log, got %d", len(logs))
	}

	got := bus.types()
	want := []string{"caretransition.created", "caretransition.outreach_logged", "caretransition.status_changed"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %s, got %s", want[i], got[i])
		}
	}
}

func TestDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrClosed, http.StatusConflict},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrCloseReasonRequired, http.StatusBadRequest},
		{domain.ErrAssigneeRequired, http.StatusBadRequest},
		{domain.ErrInvalidLevel, http.StatusBadRequest},
	}

	for _, tt := range tests {
		var appErr *apperrors.AppError
		if !apperrors.As(DomainError(tt.err), &appErr) || appErr.HTTPStatus != tt.status {
			t.Errorf("Expected %d for %v", tt.status, tt.err)
		}
	}

	plain := errors.New("boom")
	if DomainError(plain) != plain {
		t.Error("Expected unrelated errors to pass through")
	}
}
