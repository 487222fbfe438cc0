// Package directory keeps organization accounts, user to tenant links and
// tenant membership in Postgres.
package directory

import (
	"strconv"
	"strings"
	"time"

	"github.com/ealmetes/HealthExtent/internal/shared/auth"
	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/types"
)

// UnknownUser names a user the directory has no record of
const UnknownUser = "Unknown User"

// Account is an organization profile, keyed by the user who owns it
type Account struct {
	OwnerUserID      string    `json:"ownerUserId"`
	OrganizationName string    `json:"organizationName"`
	OrganizationType *string   `json:"organizationType,omitempty"`
	FirstName        *string   `json:"firstName,omitempty"`
	LastName         *string   `json:"lastName,omitempty"`
	Email            string    `json:"email"`
	Phone            *string   `json:"phone,omitempty"`
	Address1         *string   `json:"address1,omitempty"`
	Address2         *string   `json:"address2,omitempty"`
	City             *string   `json:"city,omitempty"`
	County           *string   `json:"county,omitempty"`
	State            *string   `json:"state,omitempty"`
	PostalCode       *string   `json:"postalCode,omitempty"`
	TenantKey        *int      `json:"tenantKey,omitempty"`
	AddressLines     []string  `json:"addressLines,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// PostalAddress collects the address columns
func (a *Account) PostalAddress() types.Address {
	return types.Address{
		Address1:   deref(a.Address1),
		Address2:   deref(a.Address2),
		City:       deref(a.City),
		County:     deref(a.County),
		State:      deref(a.State),
		PostalCode: deref(a.PostalCode),
	}
}

func (a *Account) withAddressLines() *Account {
	a.AddressLines = a.PostalAddress().Lines()
	return a
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// TenantLink maps a user to the account and tenant they work in
type TenantLink struct {
	UserID         string    `json:"userId"`
	AccountOwnerID string    `json:"accountOwnerId"`
	TenantKey      *int      `json:"tenantKey,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MemberStatus is the state of a tenant membership
type MemberStatus string

const (
	MemberPending  MemberStatus = "Pending"
	MemberActive   MemberStatus = "Active"
	MemberInactive MemberStatus = "Inactive"
)

// Member is a user's membership in a tenant. Invites exist before the user
// signs up, so UserID is empty until activation.
type Member struct {
	ID        string       `json:"id"`
	TenantKey int          `json:"tenantKey"`
	UserID    string       `json:"userId"`
	Email     string       `json:"email"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	Role      auth.Role    `json:"role"`
	Status    MemberStatus `json:"status"`
	InvitedBy *string      `json:"invitedBy,omitempty"`
	InvitedAt *time.Time   `json:"invitedAt,omitempty"`
	JoinedAt  *time.Time   `json:"joinedAt,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// DisplayName is "First Last", else the email, else UnknownUser
func (m Member) DisplayName() string {
	if name := strings.TrimSpace(m.FirstName + " " + m.LastName); name != "" {
		return name
	}
	if m.Email != "" {
		return m.Email
	}
	return UnknownUser
}

// MemberID derives the member id from email and tenant. Every character
// outside [A-Za-z0-9] becomes an underscore.
func MemberID(email string, tenantKey int) string {
	raw := NormalizeEmail(email) + "_" + strconv.Itoa(tenantKey)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, raw)
}

// NormalizeEmail trims and lower-cases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// --- Requests ---

// CreateAccountRequest creates an organization account
type CreateAccountRequest struct {
	OwnerUserID      string  `json:"ownerUserId"`
	OrganizationName string  `json:"organizationName"`
	OrganizationType *string `json:"organizationType,omitempty"`
	FirstName        *string `json:"firstName,omitempty"`
	LastName         *string `json:"lastName,omitempty"`
	Email            string  `json:"email"`
	Phone            *string `json:"phone,omitempty"`
	Address1         *string `json:"address1,omitempty"`
	Address2         *string `json:"address2,omitempty"`
	City             *string `json:"city,omitempty"`
	County           *string `json:"county,omitempty"`
	State            *string `json:"state,omitempty"`
	PostalCode       *string `json:"postalCode,omitempty"`
	TenantKey        *int    `json:"tenantKey,omitempty"`
}

// Validate checks required fields and column widths
func (r CreateAccountRequest) Validate() error {
	v := &apperrors.Validator{}
	v.Required("ownerUserId", r.OwnerUserID)
	v.MaxLength("ownerUserId", r.OwnerUserID, 128)
	v.Required("organizationName", r.OrganizationName)
	v.MaxLength("organizationName", r.OrganizationName, 200)
	v.Required("email", r.Email)
	v.MaxLength("email", r.Email, 320)
	v.MaxLengthOpt("organizationType", r.OrganizationType, 64)
	v.MaxLengthOpt("phone", r.Phone, 32)
	v.MaxLengthOpt("state", r.State, 50)
	v.MaxLengthOpt("postalCode", r.PostalCode, 16)
	return v.Err()
}

// UpdateAccountRequest changes the fields it carries
type UpdateAccountRequest struct {
	OrganizationName *string `json:"organizationName,omitempty"`
	OrganizationType *string `json:"organizationType,omitempty"`
	FirstName        *string `json:"firstName,omitempty"`
	LastName         *string `json:"lastName,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Address1         *string `json:"address1,omitempty"`
	Address2         *string `json:"address2,omitempty"`
	City             *string `json:"city,omitempty"`
	County           *string `json:"county,omitempty"`
	State            *string `json:"state,omitempty"`
	PostalCode       *string `json:"postalCode,omitempty"`
	TenantKey        *int    `json:"tenantKey,omitempty"`
}

func (r UpdateAccountRequest) apply(a *Account) error {
	if r.OrganizationName != nil {
		if strings.TrimSpace(*r.OrganizationName) == "" {
			return apperrors.Validation([]apperrors.FieldError{{Field: "organizationName", Message: "organizationName is required"}})
		}
		a.OrganizationName = *r.OrganizationName
	}
	if r.Email != nil {
		if strings.TrimSpace(*r.Email) == "" {
			return apperrors.Validation([]apperrors.FieldError{{Field: "email", Message: "email is required"}})
		}
		a.Email = *r.Email
	}
	set := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}
	set(&a.OrganizationType, r.OrganizationType)
	set(&a.FirstName, r.FirstName)
	set(&a.LastName, r.LastName)
	set(&a.Phone, r.Phone)
	set(&a.Address1, r.Address1)
	set(&a.Address2, r.Address2)
	set(&a.City, r.City)
	set(&a.County, r.County)
	set(&a.State, r.State)
	set(&a.PostalCode, r.PostalCode)
	if r.TenantKey != nil {
		a.TenantKey = r.TenantKey
	}
	return nil
}

// EnsureTenantLinkRequest links a user to an account
type EnsureTenantLinkRequest struct {
	UserID         string `json:"userId"`
	AccountOwnerID string `json:"accountOwnerId"`
	TenantKey      *int   `json:"tenantKey,omitempty"`
}

// InviteRequest invites an email address into a tenant
type InviteRequest struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Validate checks the address and role
func (r InviteRequest) Validate() error {
	v := &apperrors.Validator{}
	r.check(v)
	return v.Err()
}

func (r InviteRequest) check(v *apperrors.Validator) {
	v.Required("email", r.Email)
	v.MaxLength("email", r.Email, 320)
	v.Check(r.Email == "" || strings.Contains(r.Email, "@"), "email", "email is invalid")
	_, ok := auth.ParseRole(r.Role)
	v.Check(ok, "role", "role must be Admin, CareCoordinator or Provider")
	v.MaxLength("firstName", r.FirstName, 100)
	v.MaxLength("lastName", r.LastName, 100)
}

// AddMemberRequest adds a user who already has an account
type AddMemberRequest struct {
	InviteRequest
	UserID string `json:"userId"`
}

// Validate checks the invite fields and the user id
func (r AddMemberRequest) Validate() error {
	v := &apperrors.Validator{}
	v.Required("userId", r.UserID)
	v.MaxLength("userId", r.UserID, 128)
	r.check(v)
	return v.Err()
}

// ActivateRequest turns a pending invite into an active membership. Names
// are only overwritten when present.
type ActivateRequest struct {
	Email     string  `json:"email"`
	UserID    string  `json:"userId"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// UpdateNamesRequest fills missing member names from a profile display name
type UpdateNamesRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}
