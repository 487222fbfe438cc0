// Package tenant resolves the tenant a request acts on.
package tenant

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ealmetes/HealthExtent/internal/shared/auth"
	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/go-chi/chi/v5"
)

const (
	HeaderTenantID   = "X-Tenant-Id"
	HeaderTenantCode = "X-Tenant-Code"
	QueryTenantKey   = "tenantKey"
)

// ErrNotSpecified is returned when no tenant can be resolved from the request.
var ErrNotSpecified = apperrors.BadRequest("Tenant not specified. Provide X-Tenant-Id header or tenantKey query parameter.")

// Resolve returns the tenant key from the X-Tenant-Id header, then the
// tenant_id token claim, then the tenantKey query parameter. Values that are
// not positive integers are skipped.
func Resolve(r *http.Request) (int, bool) {
	if key, ok := parseKey(r.Header.Get(HeaderTenantID)); ok {
		return key, true
	}
	if user := auth.GetUser(r.Context()); user != nil {
		if key, ok := parseKey(user.TenantID); ok {
			return key, true
		}
	}
	return parseKey(r.URL.Query().Get(QueryTenantKey))
}

// Require is Resolve with the standard bad-request error.
func Require(r *http.Request) (int, error) {
	key, ok := Resolve(r)
	if !ok {
		return 0, ErrNotSpecified
	}
	return key, nil
}

// Code returns the tenant code from the X-Tenant-Code header or the tenant_code claim.
func Code(r *http.Request) string {
	if code := strings.TrimSpace(r.Header.Get(HeaderTenantCode)); code != "" {
		return code
	}
	if user := auth.GetUser(r.Context()); user != nil {
		return user.TenantCode
	}
	return ""
}

// FromPath reads a {tenantKey} route parameter.
func FromPath(r *http.Request) (int, error) {
	key, ok := parseKey(chi.URLParam(r, "tenantKey"))
	if !ok {
		return 0, apperrors.BadRequest("invalid tenant key")
	}
	return key, nil
}

// Authorize rejects a tenant key that differs from the tenant bound to the
// caller's token. Requests without a token tenant pass.
func Authorize(r *http.Request, key int) error {
	user := auth.GetUser(r.Context())
	if user == nil {
		return nil
	}
	if claim, ok := parseKey(user.TenantID); ok && claim != key {
		return apperrors.Forbidden("access to this tenant is not allowed")
	}
	return nil
}

func parseKey(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	key, err := strconv.Atoi(s)
	if err != nil || key <= 0 {
		return 0, false
	}
	return key, true
}
