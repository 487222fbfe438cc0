package dashboard

import (
	"net/http"
	"time"

	ctapi "github.com/ealmetes/HealthExtent/internal/caretransition/api"
	"github.com/ealmetes/HealthExtent/internal/caretransition/domain"
	"github.com/ealmetes/HealthExtent/internal/encounter"
	"github.com/ealmetes/HealthExtent/internal/shared/respond"
	"github.com/ealmetes/HealthExtent/internal/shared/tenant"
	"github.com/ealmetes/HealthExtent/internal/tcm"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler serves the tenant dashboard
type Handler struct {
	encounters  encounter.Repository
	transitions domain.Repository
	names       ctapi.NameResolver
	mode        tcm.ReadmissionMode
	now         func() time.Time
}

// NewHandler creates a dashboard handler. names may be nil.
func NewHandler(encounters encounter.Repository, transitions domain.Repository, names ctapi.NameResolver, mode tcm.ReadmissionMode) *Handler {
	return &Handler{
		encounters:  encounters,
		transitions: transitions,
		names:       names,
		mode:        mode,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the handler clock
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// Routes registers the dashboard routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/tenant/{tenantKey}", h.GetDashboard)
	return r
}

// GetDashboard handles GET /tenant/{tenantKey}
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	tenantKey, err := tenant.FromPath(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := tenant.Authorize(r, tenantKey); err != nil {
		respond.Error(w, r, err)
		return
	}

	encounters, err := h.encounters.ListAll(r.Context(), tenantKey)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	details, err := h.transitions.List(r.Context(), tenantKey, domain.Filter{})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	names := map[string]string{}
	if keys := ctapi.AssigneeKeys(details); len(keys) > 0 && h.names != nil {
		resolved, err := h.names.ResolveNames(r.Context(), tenantKey, keys)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Int("tenant_key", tenantKey).Msg("Failed to resolve assignee names")
		} else {
			names = resolved
		}
	}

	respond.JSON(w, http.StatusOK, Compute(Input{
		TenantKey:       tenantKey,
		Encounters:      encounters,
		Transitions:     details,
		Names:           names,
		ReadmissionMode: h.mode,
		Now:             h.now(),
	}))
}
