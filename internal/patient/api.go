package patient

import (
	"net/http"
	"strconv"

	"github.com/ealmetes/HealthExtent/internal/shared/metrics"
	"github.com/ealmetes/HealthExtent/internal/shared/respond"
	"github.com/ealmetes/HealthExtent/internal/shared/sqlserver"
	"github.com/ealmetes/HealthExtent/internal/shared/tenant"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for the patient module
type Handler struct {
	repo Repository
}

// NewHandler creates a new patient handler
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the patient routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/upsert", h.UpsertPatient)
	r.Get("/tenant/{tenantKey}", h.ListByTenant)
	r.Get("/{patientKey}", h.GetPatient)

	return r
}

// UpsertPatient creates or updates a patient through he.UpsertPatient_Tenant
func (h *Handler) UpsertPatient(w http.ResponseWriter, r *http.Request) {
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

	key, err := h.repo.Upsert(r.Context(), req)
	metrics.RecordPatientUpsert(strconv.Itoa(req.TenantKey), err)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Int("tenant_key", req.TenantKey).
			Str("patient_id_external", req.PatientIDExternal).
			Msg("Error upserting patient")
		respond.Failure(w, sqlserver.ErrorDetail(err))
		return
	}

	respond.JSON(w, http.StatusOK, UpsertResponse{
		PatientKey: key,
		Success:    true,
		Message:    "Patient upserted successfully",
	})
}

// GetPatient returns a patient of the resolved tenant
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
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

	p, err := h.repo.FindByKey(r.Context(), tenantKey, patientKey)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, p)
}

// ListByTenant pages through a tenant's patients
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
	patients, err := h.repo.ListByTenant(r.Context(), tenantKey, skip, take)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, patients)
}
