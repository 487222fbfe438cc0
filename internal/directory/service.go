package directory

import (
	"context"
	"strings"
	"time"

	"github.com/ealmetes/HealthExtent/internal/shared/auth"
	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/events"
	"github.com/rs/zerolog"
)

// Service applies membership rules on top of a Repository
type Service struct {
	repo Repository
	bus  events.EventBus
	now  func() time.Time
}

// NewService creates a directory service. bus may be nil.
func NewService(repo Repository, bus events.EventBus) *Service {
	if bus == nil {
		bus = events.NopBus{}
	}
	return &Service{repo: repo, bus: bus, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the service clock
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// --- Accounts ---

// CreateAccount stores a new organization account
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	a := &Account{
		OwnerUserID:      req.OwnerUserID,
		OrganizationName: req.OrganizationName,
		OrganizationType: req.OrganizationType,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		Address1:         req.Address1,
		Address2:         req.Address2,
		City:             req.City,
		County:           req.County,
		State:            req.State,
		PostalCode:       req.PostalCode,
		TenantKey:        req.TenantKey,
	}
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a.withAddressLines(), nil
}

// GetAccount returns the account owned by a user
func (s *Service) GetAccount(ctx context.Context, ownerUserID string) (*Account, error) {
	a, err := s.repo.GetAccount(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	return a.withAddressLines(), nil
}

// GetAccountByTenantKey returns the account bound to a tenant
func (s *Service) GetAccountByTenantKey(ctx context.Context, tenantKey int) (*Account, error) {
	a, err := s.repo.GetAccountByTenantKey(ctx, tenantKey)
	if err != nil {
		return nil, err
	}
	return a.withAddressLines(), nil
}

// UpdateAccount merges req into the stored account
func (s *Service) UpdateAccount(ctx context.Context, ownerUserID string, req UpdateAccountRequest) (*Account, error) {
	a, err := s.repo.GetAccount(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	if err := req.apply(a); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a.withAddressLines(), nil
}

// EnsureTenantLink links a user to an account unless already linked
func (s *Service) EnsureTenantLink(ctx context.Context, req EnsureTenantLinkRequest) (*TenantLink, error) {
	v := &apperrors.Validator{}
	v.Required("userId", req.UserID)
	v.Required("accountOwnerId", req.AccountOwnerID)
	if err := v.Err(); err != nil {
		return nil, err
	}

	link := TenantLink{UserID: req.UserID, AccountOwnerID: req.AccountOwnerID, TenantKey: req.TenantKey}
	if link.TenantKey == nil {
		account, err := s.repo.GetAccount(ctx, req.AccountOwnerID)
		if err != nil {
			return nil, err
		}
		link.TenantKey = account.TenantKey
	}
	return s.repo.EnsureTenantLink(ctx, link)
}

// --- Members ---

// ListMembers returns the members of a tenant
func (s *Service) ListMembers(ctx context.Context, tenantKey int) ([]Member, error) {
	return s.repo.ListMembers(ctx, tenantKey)
}

// Invite creates a pending membership for an email address
func (s *Service) Invite(ctx context.Context, tenantKey int, req InviteRequest, invitedBy string) (*Member, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureNotMember(ctx, tenantKey, req.Email, "user is already a member or has been invited"); err != nil {
		return nil, err
	}

	now := s.now()
	m := &Member{
		ID:        MemberID(req.Email, tenantKey),
		TenantKey: tenantKey,
		Email:     NormalizeEmail(req.Email),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      auth.Role(req.Role),
		Status:    MemberPending,
		InvitedBy: optional(invitedBy),
		InvitedAt: &now,
	}
	if err := s.repo.CreateMember(ctx, m); err != nil {
		return nil, err
	}

	s.publish(ctx, "member.invited", m, invitedBy)
	return m, nil
}

// AddExisting adds a user who already has an account as an active member
func (s *Service) AddExisting(ctx context.Context, tenantKey int, req AddMemberRequest, invitedBy string) (*Member, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureNotMember(ctx, tenantKey, req.Email, "user is already a member"); err != nil {
		return nil, err
	}

	now := s.now()
	m := &Member{
		ID:        MemberID(req.Email, tenantKey),
		TenantKey: tenantKey,
		UserID:    req.UserID,
		Email:     NormalizeEmail(req.Email),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      auth.Role(req.Role),
		Status:    MemberActive,
		InvitedBy: optional(invitedBy),
		InvitedAt: &now,
		JoinedAt:  &now,
	}
	if err := s.repo.CreateMember(ctx, m); err != nil {
		return nil, err
	}

	s.publish(ctx, "member.added", m, invitedBy)
	return m, nil
}

// Activate binds a pending invite to the signed-up user
func (s *Service) Activate(ctx context.Context, tenantKey int, req ActivateRequest) (*Member, error) {
	v := &apperrors.Validator{}
	v.Required("email", req.Email)
	v.Required("userId", req.UserID)
	if err := v.Err(); err != nil {
		return nil, err
	}

	m, err := s.repo.GetMember(ctx, MemberID(req.Email, tenantKey))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFound("member invitation", req.Email)
		}
		return nil, err
	}

	now := s.now()
	m.UserID = req.UserID
	m.Status = MemberActive
	m.JoinedAt = &now
	if req.FirstName != nil {
		m.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		m.LastName = strings.TrimSpace(*req.LastName)
	}
	if err := s.repo.UpdateMember(ctx, m); err != nil {
		return nil, err
	}

	s.publish(ctx, "member.activated", m, req.UserID)
	return m, nil
}

// PendingInvitations lists the open invites for an address
func (s *Service) PendingInvitations(ctx context.Context, email string) ([]Member, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperrors.BadRequest("email is required")
	}
	return s.repo.ListMembersByEmail(ctx, email, MemberPending)
}

// ActiveTenants lists a user's active memberships. Without any under the
// user id, memberships activated under the email are used.
func (s *Service) ActiveTenants(ctx context.Context, userID, email string) ([]Member, error) {
	if userID == "" && email == "" {
		return nil, apperrors.BadRequest("userId or email is required")
	}

	var members []Member
	if userID != "" {
		var err error
		members, err = s.repo.ListMembersByUser(ctx, userID, MemberActive)
		if err != nil {
			return nil, err
		}
	}
	if len(members) == 0 && email != "" {
		return s.repo.ListMembersByEmail(ctx, email, MemberActive)
	}
	return members, nil
}

// UpdateNames fills a member's missing first or last name from a profile
// display name. A missing member is not an error.
func (s *Service) UpdateNames(ctx context.Context, tenantKey int, req UpdateNamesRequest) (*Member, error) {
	m, err := s.repo.GetMember(ctx, MemberID(req.Email, tenantKey))
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	first, last := splitDisplayName(req.DisplayName)
	changed := false
	if strings.TrimSpace(m.FirstName) == "" && first != "" {
		m.FirstName = first
		changed = true
	}
	if strings.TrimSpace(m.LastName) == "" && last != "" {
		m.LastName = last
		changed = true
	}
	if !changed {
		return m, nil
	}

	if err := s.repo.UpdateMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ResolveNames maps user keys to member display names. A key matches a
// member's user id or member id; unmatched keys are left out.
func (s *Service) ResolveNames(ctx context.Context, tenantKey int, userKeys []string) (map[string]string, error) {
	names := make(map[string]string, len(userKeys))
	if len(userKeys) == 0 {
		return names, nil
	}

	members, err := s.repo.ListMembers(ctx, tenantKey)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]Member, len(members)*2)
	for _, m := range members {
		byKey[m.ID] = m
		if m.UserID != "" {
			byKey[m.UserID] = m
		}
	}
	for _, key := range userKeys {
		if m, ok := byKey[key]; ok {
			names[key] = m.DisplayName()
		}
	}
	return names, nil
}

func (s *Service) ensureNotMember(ctx context.Context, tenantKey int, email, message string) error {
	_, err := s.repo.FindMember(ctx, tenantKey, email)
	if err == nil {
		return apperrors.Conflict(message)
	}
	if apperrors.IsNotFound(err) {
		return nil
	}
	return err
}

func (s *Service) publish(ctx context.Context, eventType string, m *Member, actorID string) {
	event := events.NewEvent(eventType, "directory", m.TenantKey, map[string]any{
		"member_id": m.ID,
		"email":     m.Email,
		"role":      m.Role,
		"status":    m.Status,
	})
	if actorID != "" {
		event = event.WithActor(actorID, "user")
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event_type", eventType).Msg("Failed to publish directory event")
	}
}

func splitDisplayName(displayName string) (string, string) {
	parts := strings.Fields(displayName)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
