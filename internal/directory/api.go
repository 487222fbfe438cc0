package directory

import (
	"net/http"

	"github.com/ealmetes/HealthExtent/internal/shared/auth"
	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/metrics"
	"github.com/ealmetes/HealthExtent/internal/shared/respond"
	"github.com/ealmetes/HealthExtent/internal/shared/tenant"
	"github.com/go-chi/chi/v5"
)

// Handler provides HTTP handlers for accounts and members
type Handler struct {
	svc *Service
}

// NewHandler creates a new directory handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// AccountRoutes registers the account routes
func (h *Handler) AccountRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateAccount)
	r.Post("/tenant-links", h.EnsureTenantLink)
	r.Get("/tenant/{tenantKey}", h.GetAccountByTenant)

	r.Route("/{ownerUserId}", func(r chi.Router) {
		r.Get("/", h.GetAccount)
		r.Put("/", h.UpdateAccount)
	})

	return r
}

// MemberRoutes registers the member routes
func (h *Handler) MemberRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/invitations", h.PendingInvitations)
	r.Get("/tenants", h.ActiveTenants)

	r.Route("/tenant/{tenantKey}", func(r chi.Router) {
		r.Get("/", h.ListMembers)
		r.Post("/", h.AddMember)
		r.Post("/invite", h.InviteMember)
		r.Post("/activate", h.ActivateMember)
		r.Put("/names", h.UpdateNames)
	})

	return r
}

// --- Account handlers ---

// CreateAccount handles POST /
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if !ownerOrAdmin(w, r, req.OwnerUserID) {
		return
	}

	account, err := h.svc.CreateAccount(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, account)
}

// GetAccount handles GET /{ownerUserId}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "ownerUserId")
	if !ownerOrAdmin(w, r, owner) {
		return
	}

	account, err := h.svc.GetAccount(r.Context(), owner)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, account)
}

// UpdateAccount handles PUT /{ownerUserId}
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "ownerUserId")
	if !ownerOrAdmin(w, r, owner) {
		return
	}

	var req UpdateAccountRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	account, err := h.svc.UpdateAccount(r.Context(), owner, req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, account)
}

// GetAccountByTenant handles GET /tenant/{tenantKey}
func (h *Handler) GetAccountByTenant(w http.ResponseWriter, r *http.Request) {
	tenantKey, ok := pathTenant(w, r)
	if !ok {
		return
	}

	account, err := h.svc.GetAccountByTenantKey(r.Context(), tenantKey)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, account)
}

// EnsureTenantLink handles POST /tenant-links
func (h *Handler) EnsureTenantLink(w http.ResponseWriter, r *http.Request) {
	var req EnsureTenantLinkRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if !ownerOrAdmin(w, r, req.UserID) {
		return
	}

	link, err := h.svc.EnsureTenantLink(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, link)
}

// --- Member handlers ---

// ListMembers handles GET /tenant/{tenantKey}
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	tenantKey, ok := pathTenant(w, r)
	if !ok {
		return
	}

	members, err := h.svc.ListMembers(r.Context(), tenantKey)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, members)
}

// InviteMember handles POST /tenant/{tenantKey}/invite
func (h *Handler) InviteMember(w http.ResponseWriter, r *http.Request) {
	tenantKey, ok := pathTenant(w, r)
	if !ok || !canManage(w, r) {
		return
	}

	var req InviteRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	member, err := h.svc.Invite(r.Context(), tenantKey, req, actorID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, member)
}

// AddMember handles POST /tenant/{tenantKey}
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	tenantKey, ok := pathTenant(w, r)
	if !ok || !canManage(w, r) {
		return
	}

	var req AddMemberRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	member, err := h.svc.AddExisting(r.Context(), tenantKey, req, actorID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, member)
}

// ActivateMember handles POST /tenant/{tenantKey}/activate. The invited
// user activates for themselves; managers may activate anyone.
func (h *Handler) ActivateMember(w http.ResponseWriter, r *http.Request) {
	tenantKey, err := tenant.FromPath(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req ActivateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if !ownerOrAdmin(w, r, req.UserID) {
		return
	}

	member, err := h.svc.Activate(r.Context(), tenantKey, req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, member)
}

// UpdateNames handles PUT /tenant/{tenantKey}/names
func (h *Handler) UpdateNames(w http.ResponseWriter, r *http.Request) {
	tenantKey, err := tenant.FromPath(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req UpdateNamesRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	member, err := h.svc.UpdateNames(r.Context(), tenantKey, req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if member == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respond.JSON(w, http.StatusOK, member)
}

// PendingInvitations handles GET /invitations?email=
func (h *Handler) PendingInvitations(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.PendingInvitations(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, members)
}

// ActiveTenants handles GET /tenants?userId=&email=
func (h *Handler) ActiveTenants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	if userID == "" {
		if user := auth.GetUser(r.Context()); user != nil {
			userID = user.ID
		}
	}

	members, err := h.svc.ActiveTenants(r.Context(), userID, q.Get("email"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, members)
}

// --- Helpers ---

func pathTenant(w http.ResponseWriter, r *http.Request) (int, bool) {
	tenantKey, err := tenant.FromPath(r)
	if err != nil {
		respond.Error(w, r, err)
		return 0, false
	}
	if err := tenant.Authorize(r, tenantKey); err != nil {
		respond.Error(w, r, err)
		return 0, false
	}
	return tenantKey, true
}

// canManage requires member.manage from an authenticated caller
func canManage(w http.ResponseWriter, r *http.Request) bool {
	user := auth.GetUser(r.Context())
	if user == nil {
		return true
	}
	allowed := user.HasPermission(auth.PermMemberManage)
	metrics.RecordAuthorizationDecision(string(auth.PermMemberManage), allowed)
	if !allowed {
		respond.Error(w, r, apperrors.Forbidden("insufficient permissions"))
	}
	return allowed
}

// ownerOrAdmin lets a caller act on their own records, or anyone's with member.manage
func ownerOrAdmin(w http.ResponseWriter, r *http.Request, userID string) bool {
	user := auth.GetUser(r.Context())
	if user == nil || (userID != "" && user.ID == userID) {
		return true
	}
	return canManage(w, r)
}

func actorID(r *http.Request) string {
	if user := auth.GetUser(r.Context()); user != nil {
		return user.ID
	}
	return ""
}
