// Package caretransition runs the transitional care workflow: it opens a
// transition when an encounter is discharged and applies lifecycle changes,
// persisting them and publishing their events.
package caretransition

import (
	"context"
	"strconv"
	"time"

	"github.com/ealmetes/HealthExtent/internal/caretransition/domain"
	"github.com/ealmetes/HealthExtent/internal/encounter"
	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/events"
	"github.com/ealmetes/HealthExtent/internal/shared/metrics"
	"github.com/ealmetes/HealthExtent/internal/shared/types"
	"github.com/rs/zerolog"
)

// Service applies care transition commands
type Service struct {
	repo domain.Repository
	bus  events.EventBus
	now  func() time.Time
}

// NewService creates a care transition service. bus may be nil.
func NewService(repo domain.Repository, bus events.EventBus) *Service {
	return &Service{repo: repo, bus: bus, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the service clock
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Now is the service clock
func (s *Service) Now() time.Time {
	return s.now()
}

// Repository exposes the underlying store for reads
func (s *Service) Repository() domain.Repository {
	return s.repo
}

// RecordDischarge opens a transition for a discharged encounter. An existing
// transition is left alone so its schedule never moves.
func (s *Service) RecordDischarge(ctx context.Context, enc encounter.Encounter) error {
	if enc.DischargeDateTime == nil {
		return nil
	}

	_, err := s.repo.FindByEncounter(ctx, enc.TenantKey, enc.EncounterKey)
	if err == nil {
		return nil
	}
	if !apperrors.IsNotFound(err) {
		return err
	}

	ct := domain.NewCareTransition(enc.TenantKey, enc.EncounterKey, enc.PatientKey, enc.DischargeDateTime, s.now())
	if err := s.repo.Create(ctx, ct); err != nil {
		if apperrors.Is(err, apperrors.ErrConflict) {
			return nil
		}
		return err
	}

	metrics.RecordCareTransitionCreated(strconv.Itoa(enc.TenantKey), string(ct.Priority))
	zerolog.Ctx(ctx).Info().
		Str("care_transition_key", ct.CareTransitionKey.String()).
		Int64("encounter_key", enc.EncounterKey).
		Msg("Care transition opened")

	s.publishEvents(ctx, ct)
	return nil
}

// Mutate loads a transition, applies fn and saves the result
func (s *Service) Mutate(ctx context.Context, tenantKey int, key types.ID, fn func(ct *domain.CareTransition, now time.Time) error) (*domain.Detail, error) {
	d, err := s.repo.FindByKey(ctx, tenantKey, key)
	if err != nil {
		return nil, err
	}

	if err := fn(&d.CareTransition, s.now()); err != nil {
		return nil, DomainError(err)
	}

	if err := s.repo.Update(ctx, &d.CareTransition); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, &d.CareTransition)
	return d, nil
}

// LogOutreach records a contact attempt and the resulting transition state
func (s *Service) LogOutreach(ctx context.Context, tenantKey int, key types.ID, in domain.OutreachInput, actorID string) (*domain.Detail, *domain.OutreachLog, error) {
	d, err := s.repo.FindByKey(ctx, tenantKey, key)
	if err != nil {
		return nil, nil, err
	}

	entry, err := d.LogOutreach(in, actorID, s.now())
	if err != nil {
		return nil, nil, DomainError(err)
	}

	if err := s.repo.LogOutreach(ctx, &d.CareTransition, &entry); err != nil {
		return nil, nil, err
	}

	metrics.RecordOutreach(entry.OutreachMethod, entry.ContactOutcome)
	s.publishEvents(ctx, &d.CareTransition)
	return d, &entry, nil
}

// DomainError maps aggregate errors onto HTTP-aware application errors
func DomainError(err error) error {
	switch {
	case apperrors.Is(err, domain.ErrClosed), apperrors.Is(err, domain.ErrInvalidTransition):
		return apperrors.Conflict(err.Error())
	case apperrors.Is(err, domain.ErrCloseReasonRequired):
		return apperrors.Validation([]apperrors.FieldError{{Field: "closeReason", Message: err.Error()}})
	case apperrors.Is(err, domain.ErrAssigneeRequired):
		return apperrors.Validation([]apperrors.FieldError{{Field: "assignedToUserKey", Message: err.Error()}})
	case apperrors.Is(err, domain.ErrInvalidLevel), apperrors.Is(err, domain.ErrInvalidStatus):
		return apperrors.BadRequest(err.Error())
	}
	return err
}

func (s *Service) publishEvents(ctx context.Context, ct *domain.CareTransition) {
	for _, e := range ct.GetDomainEvents() {
		if e.Type == domain.EventStatusChanged {
			metrics.RecordCareTransitionStatusChange(toString(e.Data["old_status"]), toString(e.Data["new_status"]))
		}
		if e.Type == domain.EventClosed {
			metrics.RecordCareTransitionStatusChange(toString(e.Data["old_status"]), string(domain.StatusClosed))
		}

		if s.bus == nil {
			continue
		}

		actorType := "user"
		if e.ActorID == "" {
			actorType = "system"
		}
		event := events.NewEvent("caretransition."+string(e.Type), "caretransition", ct.TenantKey, map[string]any{
			"care_transition_key": ct.CareTransitionKey,
			"encounter_key":       ct.EncounterKey,
			"patient_key":         ct.PatientKey,
			"status":              ct.Status,
			"data":                e.Data,
		}).WithActor(e.ActorID, actorType)

		if err := s.bus.Publish(ctx, event); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("event_type", event.Type).Msg("Failed to publish event")
		}
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case domain.Status:
		return string(s)
	case string:
		return s
	}
	return ""
}
