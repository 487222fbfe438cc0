package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ealmetes/HealthExtent/internal/caretransition"
	"github.com/ealmetes/HealthExtent/internal/caretransition/domain"
	"github.com/ealmetes/HealthExtent/internal/shared/auth"
	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/metrics"
	"github.com/ealmetes/HealthExtent/internal/shared/respond"
	"github.com/ealmetes/HealthExtent/internal/shared/tenant"
	"github.com/ealmetes/HealthExtent/internal/shared/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for the care transition module
type Handler struct {
	svc   *caretransition.Service
	names NameResolver
}

// NewHandler creates a new care transition handler. names may be nil.
func NewHandler(svc *caretransition.Service, names NameResolver) *Handler {
	return &Handler{svc: svc, names: names}
}

// Routes registers the care transition routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListCareTransitions)
	r.Get("/metrics", h.GetMetrics)
	r.Get("/encounter/{encounterKey}", h.GetByEncounter)

	r.Route("/{careTransitionKey}", func(r chi.Router) {
		r.Get("/", h.GetCareTransition)
		r.Put("/", h.UpdateCareTransition)
		r.Get("/outreach", h.ListOutreach)

		r.Put("/priority", h.UpdatePriority)
		r.Put("/risk-tier", h.UpdateRiskTier)

		// Lifecycle
		r.Post("/start", h.StartCareTransition)
		r.Post("/outreach", h.LogOutreach)
		r.Post("/assign", h.AssignCareTransition)
		r.Post("/close", h.CloseCareTransition)
	})

	return r
}

// --- Request types ---

type UpdateRequest struct {
	Notes                *string    `json:"notes,omitempty"`
	NextOutreachDate     *time.Time `json:"nextOutreachDate,omitempty"`
	FollowUpApptDateTime *time.Time `json:"followUpApptDateTime,omitempty"`
	FollowUpProviderKey  *string    `json:"followUpProviderKey,omitempty"`
	CareManagerUserKey   *string    `json:"careManagerUserKey,omitempty"`
}

type PriorityRequest struct {
	Priority string `json:"priority"`
}

type RiskTierRequest struct {
	RiskTier string `json:"riskTier"`
}

// LogOutreachRequest carries one outreach attempt. NextOutreachDateTS is ISO-8601.
type LogOutreachRequest struct {
	OutreachMethod     string     `json:"outreachMethod"`
	OutreachDate       *time.Time `json:"outreachDate,omitempty"`
	ContactOutcome     string     `json:"contactOutcome"`
	NextOutreachDateTS *time.Time `json:"nextOutreachDate_ts,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
}

type AssignRequest struct {
	AssignedToUserKey  string  `json:"assignedToUserKey"`
	CareManagerUserKey *string `json:"careManagerUserKey,omitempty"`
	AssignedTeam       *string `json:"assignedTeam,omitempty"`
}

type CloseRequest struct {
	CloseReason     string  `json:"closeReason"`
	Notes           *string `json:"notes,omitempty"`
	ClosedByUserKey string  `json:"closedByUserKey,omitempty"`
}

// --- Reads ---

// ListCareTransitions filters, sorts and pages a tenant's transitions
func (h *Handler) ListCareTransitions(w http.ResponseWriter, r *http.Request) {
	tenantKey, ok := h.tenant(w, r)
	if !ok {
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	details, err := h.svc.Repository().List(r.Context(), tenantKey, q.Filter)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	page := q.Run(details)
	views := h.views(r, tenantKey, page.Data)

	respond.JSON(w, http.StatusOK, map[string]any{
		"data":       views,
		"page":       page.Page,
		"pageSize":   page.PageSize,
		"totalCount": page.TotalCount,
		"totalPages": page.TotalPages,
	})
}

// GetMetrics returns the tenant's TCM compliance metrics
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	tenantKey, ok := h.tenant(w, r)
	if !ok {
		return
	}

	details, err := h.svc.Repository().List(r.Context(), tenantKey, domain.Filter{})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, ComputeMetrics(details, h.svc.Now()))
}

// GetByEncounter returns the transition opened for an encounter
func (h *Handler) GetByEncounter(w http.ResponseWriter, r *http.Request) {
	tenantKey, ok := h.tenant(w, r)
	if !ok {
		return
	}

	encounterKey, err := respond.PathInt64(chi.URLParam(r, "encounterKey"), "encounter key")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	d, err := h.svc.Repository().FindByEncounter(r.Context(), tenantKey, encounterKey)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, h.views(r, tenantKey, []domain.Detail{*d})[0])
}

// GetCareTransition returns one transition
func (h *Handler) GetCareTransition(w http.ResponseWriter, r *http.Request) {
	tenantKey, key, ok := h.tenantAndKey(w, r)
	if !ok {
		return
	}

	d, err := h.svc.Repository().FindByKey(r.Context(), tenantKey, key)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, h.views(r, tenantKey, []domain.Detail{*d})[0])
}

// ListOutreach returns the outreach log of a transition
func (h *Handler) ListOutreach(w http.ResponseWriter, r *http.Request) {
	tenantKey, key, ok := h.tenantAndKey(w, r)
	if !ok {
		return
	}

	if _, err := h.svc.Repository().FindByKey(r.Context(), tenantKey, key); err != nil {
		respond.Error(w, r, err)
		return
	}

	logs, err := h.svc.Repository().ListOutreach(r.Context(), tenantKey, key)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, logs)
}

// --- Mutations ---

// UpdateCareTransition applies general field changes
func (h *Handler) UpdateCareTransition(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	h.mutate(w, r, auth.PermCareTransitionUpdate, &req, func(ct *domain.CareTransition, actor string, now time.Time) error {
		return ct.Update(domain.Changes{
			Notes:                req.Notes,
			NextOutreachDate:     req.NextOutreachDate,
			FollowUpApptDateTime: req.FollowUpApptDateTime,
			FollowUpProviderKey:  req.FollowUpProviderKey,
			CareManagerUserKey:   req.CareManagerUserKey,
		}, actor, now)
	})
}

// UpdatePriority changes the working priority
func (h *Handler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	var req PriorityRequest
	h.mutate(w, r, auth.PermCareTransitionUpdate, &req, func(ct *domain.CareTransition, actor string, now time.Time) error {
		level, err := domain.ParseLevel(req.Priority)
		if err != nil {
			return err
		}
		return ct.SetPriority(level, actor, now)
	})
}

// UpdateRiskTier changes the clinical risk tier
func (h *Handler) UpdateRiskTier(w http.ResponseWriter, r *http.Request) {
	var req RiskTierRequest
	h.mutate(w, r, auth.PermCareTransitionUpdate, &req, func(ct *domain.CareTransition, actor string, now time.Time) error {
		level, err := domain.ParseLevel(req.RiskTier)
		if err != nil {
			return err
		}
		return ct.SetRiskTier(level, actor, now)
	})
}

// StartCareTransition moves an open transition into progress
func (h *Handler) StartCareTransition(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, auth.PermCareTransitionUpdate, nil, func(ct *domain.CareTransition, actor string, now time.Time) error {
		return ct.Start(actor, now)
	})
}

// AssignCareTransition hands the transition to a user
func (h *Handler) AssignCareTransition(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	h.mutate(w, r, auth.PermCareTransitionAssign, &req, func(ct *domain.CareTransition, actor string, now time.Time) error {
		return ct.Assign(req.AssignedToUserKey, req.CareManagerUserKey, req.AssignedTeam, actor, now)
	})
}

// CloseCareTransition ends the transition
func (h *Handler) CloseCareTransition(w http.ResponseWriter, r *http.Request) {
	var req CloseRequest
	h.mutate(w, r, auth.PermCareTransitionClose, &req, func(ct *domain.CareTransition, actor string, now time.Time) error {
		closedBy := req.ClosedByUserKey
		if closedBy == "" {
			closedBy = actor
		}
		return ct.Close(req.CloseReason, req.Notes, closedBy, now)
	})
}

// LogOutreach records a contact attempt
func (h *Handler) LogOutreach(w http.ResponseWriter, r *http.Request) {
	tenantKey, key, ok := h.tenantAndKey(w, r)
	if !ok {
		return
	}
	if !permitted(w, r, auth.PermCareTransitionUpdate) {
		return
	}

	var req LogOutreachRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	d, entry, err := h.svc.LogOutreach(r.Context(), tenantKey, key, domain.OutreachInput{
		Method:           req.OutreachMethod,
		Outcome:          req.ContactOutcome,
		OutreachDate:     req.OutreachDate,
		NextOutreachDate: req.NextOutreachDateTS,
		Notes:            req.Notes,
	}, actorID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, map[string]any{
		"careTransition": h.views(r, tenantKey, []domain.Detail{*d})[0],
		"outreach":       entry,
	})
}

// mutate decodes req (when non-nil), applies fn to the stored transition and
// writes the updated view.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, perm auth.Permission, req any,
	fn func(ct *domain.CareTransition, actor string, now time.Time) error) {
	tenantKey, key, ok := h.tenantAndKey(w, r)
	if !ok {
		return
	}
	if !permitted(w, r, perm) {
		return
	}
	if req != nil {
		if err := respond.Decode(r, req); err != nil {
			respond.Error(w, r, err)
			return
		}
	}

	actor := actorID(r)
	d, err := h.svc.Mutate(r.Context(), tenantKey, key, func(ct *domain.CareTransition, now time.Time) error {
		return fn(ct, actor, now)
	})
	if err != nil {
		var appErr *apperrors.AppError
		if apperrors.As(err, &appErr) && appErr.HTTPStatus == http.StatusConflict {
			zerolog.Ctx(r.Context()).Info().Str("care_transition_key", key.String()).Msg(appErr.Message)
		}
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, h.views(r, tenantKey, []domain.Detail{*d})[0])
}

// --- Helpers ---

func (h *Handler) views(r *http.Request, tenantKey int, details []domain.Detail) []View {
	names := map[string]string{}
	if keys := AssigneeKeys(details); len(keys) > 0 && h.names != nil {
		resolved, err := h.names.ResolveNames(r.Context(), tenantKey, keys)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to resolve assignee names")
		} else {
			names = resolved
		}
	}

	now := h.svc.Now()
	views := make([]View, 0, len(details))
	for _, d := range details {
		views = append(views, NewView(d, names, now))
	}
	return views
}

func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (int, bool) {
	tenantKey, err := tenant.Require(r)
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

func (h *Handler) tenantAndKey(w http.ResponseWriter, r *http.Request) (int, types.ID, bool) {
	key, err := types.ParseID(chi.URLParam(r, "careTransitionKey"))
	if err != nil {
		respond.Error(w, r, apperrors.BadRequest("invalid care transition key"))
		return 0, "", false
	}
	tenantKey, ok := h.tenant(w, r)
	if !ok {
		return 0, "", false
	}
	return tenantKey, key, true
}

// permitted checks perm for an authenticated caller. Without a user in
// context authentication is disabled and everything is allowed.
func permitted(w http.ResponseWriter, r *http.Request, perm auth.Permission) bool {
	user := auth.GetUser(r.Context())
	if user == nil {
		return true
	}
	allowed := user.HasPermission(perm)
	metrics.RecordAuthorizationDecision(string(perm), allowed)
	if !allowed {
		respond.Error(w, r, apperrors.Forbidden("insufficient permissions"))
	}
	return allowed
}

func actorID(r *http.Request) string {
	if user := auth.GetUser(r.Context()); user != nil {
		return user.ID
	}
	return ""
}

func parseQuery(r *http.Request) (domain.Query, error) {
	v := r.URL.Query()
	q := domain.Query{
		Sort:     v.Get("sort"),
		Desc:     strings.EqualFold(v.Get("direction"), "desc"),
		Page:     respond.QueryInt(r, "page", 1),
		PageSize: respond.QueryInt(r, "pageSize", domain.DefaultPageSize),
		Filter: domain.Filter{
			AssignedToUserKey: v.Get("assignedToUserKey"),
			Search:            v.Get("search"),
		},
	}

	var fields apperrors.Validator
	if s := v.Get("status"); s != "" {
		status, err := domain.ParseStatus(s)
		fields.Check(err == nil, "status", "status must be Open, InProgress or Closed")
		q.Filter.Status = &status
	}
	if s := v.Get("priority"); s != "" {
		level, err := domain.ParseLevel(s)
		fields.Check(err == nil, "priority", "priority must be Low, Medium or High")
		q.Filter.Priority = &level
	}
	if s := v.Get("riskTier"); s != "" {
		level, err := domain.ParseLevel(s)
		fields.Check(err == nil, "riskTier", "riskTier must be Low, Medium or High")
		q.Filter.RiskTier = &level
	}
	if s := v.Get("hospitalKey"); s != "" {
		key, err := strconv.Atoi(s)
		fields.Check(err == nil, "hospitalKey", "hospitalKey must be a number")
		q.Filter.HospitalKey = &key
	}
	if s := v.Get("dueDateFrom"); s != "" {
		t, err := parseDate(s)
		fields.Check(err == nil, "dueDateFrom", "dueDateFrom must be a date")
		q.Filter.DueDateFrom = &t
	}
	if s := v.Get("dueDateTo"); s != "" {
		t, err := parseDate(s)
		fields.Check(err == nil, "dueDateTo", "dueDateTo must be a date")
		// a bare date includes the whole day
		if err == nil && len(s) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		q.Filter.DueDateTo = &t
	}

	return q, fields.Err()
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
