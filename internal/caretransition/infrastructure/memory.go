package infrastructure

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/ealmetes/HealthExtent/internal/caretransition/domain"
	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/types"
)

// MemoryRepository is an in-process domain.Repository. Joined patient,
// hospital and encounter data comes from refs registered with AddEncounter.
type MemoryRepository struct {
	mu         sync.RWMutex
	items      map[types.ID]domain.Detail
	outreach   map[types.ID][]domain.OutreachLog
	encounters map[int64]domain.Detail
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items:      make(map[types.ID]domain.Detail),
		outreach:   make(map[types.ID][]domain.OutreachLog),
		encounters: make(map[int64]domain.Detail),
	}
}

// AddEncounter registers the joined data used for transitions of an encounter
func (r *MemoryRepository) AddEncounter(enc domain.EncounterRef, patient domain.PatientRef, hospital domain.HospitalRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encounters[enc.EncounterKey] = domain.Detail{Encounter: enc, Patient: patient, Hospital: hospital}
}

// Create stores a new transition; one per encounter
func (r *MemoryRepository) Create(ctx context.Context, ct *domain.CareTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.items {
		if d.TenantKey == ct.TenantKey && d.EncounterKey == ct.EncounterKey {
			return apperrors.Conflict("care transition already exists for this encounter")
		}
	}

	d := r.encounters[ct.EncounterKey]
	d.CareTransition = *ct
	d.GetDomainEvents() // the stored copy never publishes
	d.Encounter.EncounterKey = ct.EncounterKey
	d.Patient.PatientKey = ct.PatientKey
	r.items[ct.CareTransitionKey] = d
	return nil
}

// Update replaces the stored transition fields
func (r *MemoryRepository) Update(ctx context.Context, ct *domain.CareTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(ct)
}

func (r *MemoryRepository) update(ct *domain.CareTransition) error {
	d, ok := r.items[ct.CareTransitionKey]
	if !ok || d.TenantKey != ct.TenantKey {
		return apperrors.NotFound("care transition", ct.CareTransitionKey.String())
	}
	d.CareTransition = *ct
	d.GetDomainEvents()
	r.items[ct.CareTransitionKey] = d
	return nil
}

// LogOutreach stores the entry and the transition together
func (r *MemoryRepository) LogOutreach(ctx context.Context, ct *domain.CareTransition, entry *domain.OutreachLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.update(ct); err != nil {
		return err
	}
	r.outreach[ct.CareTransitionKey] = append(r.outreach[ct.CareTransitionKey], *entry)
	return nil
}

// FindByKey retrieves one transition of a tenant
func (r *MemoryRepository) FindByKey(ctx context.Context, tenantKey int, key types.ID) (*domain.Detail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.items[key]
	if !ok || d.TenantKey != tenantKey {
		return nil, apperrors.NotFound("care transition", key.String())
	}
	return &d, nil
}

// FindByEncounter retrieves the transition opened for an encounter
func (r *MemoryRepository) FindByEncounter(ctx context.Context, tenantKey int, encounterKey int64) (*domain.Detail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.items {
		if d.TenantKey == tenantKey && d.EncounterKey == encounterKey {
			return &d, nil
		}
	}
	return nil, apperrors.NotFound("care transition for encounter", strconv.FormatInt(encounterKey, 10))
}

// List returns matching transitions, most recently updated first
func (r *MemoryRepository) List(ctx context.Context, tenantKey int, filter domain.Filter) ([]domain.Detail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Detail{}
	for _, d := range r.items {
		if d.TenantKey == tenantKey && filter.Matches(d) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastUpdatedUTC.After(out[j].LastUpdatedUTC)
	})
	return out, nil
}

// ListOutreach returns a transition's outreach log, newest first
func (r *MemoryRepository) ListOutreach(ctx context.Context, tenantKey int, key types.ID) ([]domain.OutreachLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.OutreachLog{}
	for _, l := range r.outreach[key] {
		if l.TenantKey == tenantKey {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OutreachDate.After(out[j].OutreachDate)
	})
	return out, nil
}

var (
	_ domain.Repository = (*MemoryRepository)(nil)
	_ domain.Repository = (*SQLServerRepository)(nil)
)
