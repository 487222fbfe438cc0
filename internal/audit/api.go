package audit

import (
	"net/http"

	"github.com/ealmetes/HealthExtent/internal/shared/metrics"
	"github.com/ealmetes/HealthExtent/internal/shared/respond"
	"github.com/ealmetes/HealthExtent/internal/shared/sqlserver"
	"github.com/ealmetes/HealthExtent/internal/shared/tenant"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for the audit module
type Handler struct {
	repo Repository
}

// NewHandler creates a new audit handler
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the audit routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.WriteAudit)
	r.Get("/tenant/{tenantKey}", h.ListByTenant)

	return r
}

// WriteAudit records the processing outcome of one HL7 message
func (h *Handler) WriteAudit(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
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

	if err := h.repo.Write(r.Context(), req); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Int("tenant_key", req.TenantKey).
			Str("message_control_id", req.MessageControlID).
			Msg("Error writing audit")
		respond.Failure(w, sqlserver.ErrorDetail(err))
		return
	}
	metrics.RecordHL7Audit(req.MessageType, req.Status)

	respond.JSON(w, http.StatusOK, respond.Result{
		Success: true,
		Message: "Audit record written successfully",
	})
}

// ListByTenant pages through a tenant's audits
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
	audits, err := h.repo.ListByTenant(r.Context(), tenantKey, skip, take)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, audits)
}
