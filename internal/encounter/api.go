package encounter

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ealmetes/HealthExtent/internal/shared/metrics"
	"github.com/ealmetes/HealthExtent/internal/shared/respond"
	"github.com/ealmetes/HealthExtent/internal/shared/sqlserver"
	"github.com/ealmetes/HealthExtent/internal/shared/tenant"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// DischargeRecorder is notified when an upsert leaves an encounter discharged
type DischargeRecorder interface {
	RecordDischarge(ctx context.Context, enc Encounter) error
}

// Handler provides HTTP handlers for the encounter module
type Handler struct {
	repo       Repository
	discharges DischargeRecorder
}

// NewHandler creates a new encounter handler. discharges may be nil.
func NewHandler(repo Repository, discharges DischargeRecorder) *Handler {
	return &Handler{repo: repo, discharges: discharges}
}

// Routes registers the encounter routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/upsert", h.UpsertEncounter)
	r.Get("/patient/{patientKey}", h.ListByPatient)
	r.Get("/tenant/{tenantKey}", h.ListByTenant)
	r.Get("/{encounterKey}", h.GetEncounter)

	return r
}

// UpsertEncounter creates or updates an encounter through he.UpsertEncounter_Tenant
func (h *Handler) UpsertEncounter(w http.ResponseWriter, r *http.Request) {
	var req UpsertRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := tenant.Authorize(r, req.TenantKey); err != nil {
		respond.Error(w, r, err)
		return
	}

	logger := zerolog.Ctx(r.Context()).With().
		Int("tenant_key", req.TenantKey).
		Str("hospital_code", req.HospitalCode).
		Str("visit_number", req.VisitNumber).
		Logger()

	err := h.repo.Upsert(r.Context(), req)
	metrics.RecordEncounterUpsert(strconv.Itoa(req.TenantKey), err)
	if err != nil {
		logger.Error().Err(err).Msg("Error upserting encounter")
		respond.Failure(w, sqlserver.ErrorDetail(err))
		return
	}

	resp := UpsertResponse{Success: true, Message: "Encounter upserted successfully"}

	enc, err := h.repo.FindByVisit(r.Context(), req.TenantKey, req.HospitalCode, req.VisitNumber)
	if err != nil {
		logger.Warn().Err(err).Msg("Upserted encounter could not be read back")
		respond.JSON(w, http.StatusOK, resp)
		return
	}
	resp.EncounterKey = &enc.EncounterKey

	if req.DischargeTS != nil && enc.DischargeDateTime != nil && h.discharges != nil {
		if err := h.discharges.RecordDischarge(r.Context(), *enc); err != nil {
			// The encounter itself is stored; the transition can be created on the next discharge message.
			logger.Error().Err(err).Int64("encounter_key", enc.EncounterKey).Msg("Error recording discharge")
		}
	}

	respond.JSON(w, http.StatusOK, resp)
}

// GetEncounter returns an encounter of the resolved tenant
func (h *Handler) GetEncounter(w http.ResponseWriter, r *http.Request) {
	encounterKey, err := respond.PathInt64(chi.URLParam(r, "encounterKey"), "encounter key")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	tenantKey, err := tenant.Require(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := tenant.Authorize(r, tenantKey); err != nil {
		respond.Error(w, r, err)
		return
	}

	enc, err := h.repo.FindByKey(r.Context(), tenantKey, encounterKey)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, enc)
}

// ListByPatient returns a patient's encounters
func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	patientKey, err := respond.PathInt64(chi.URLParam(r, "patientKey"), "patient key")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	tenantKey, err := tenant.Require(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := tenant.Authorize(r, tenantKey); err != nil {
		respond.Error(w, r, err)
		return
	}

	encounters, err := h.repo.ListByPatient(r.Context(), tenantKey, patientKey)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, encounters)
}

// ListByTenant pages through a tenant's encounters
func (h *Handler) ListByTenant(w http.ResponseWriter, r *http.Request) {
	tenantKey, err := tenant.FromPath(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := tenant.Authorize(r, tenantKey); err != nil {
		respond.Error(w, r, err)
		return
	}

	skip, take := sqlserver.Paging(respond.QueryInt(r, "skip", 0), respond.QueryInt(r, "take", 100))
	encounters, err := h.repo.ListByTenant(r.Context(), tenantKey, skip, take)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, encounters)
}
