package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ealmetes/HealthExtent/internal/shared/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Enabled:   true,
		JWTSecret: "test-secret",
		Issuer:    "healthextent",
		TokenTTL:  time.Hour,
		DevTokens: true,
	}
}

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role     Role
		perm     Permission
		expected bool
	}{
		{RoleAdmin, PermMemberManage, true},
		{RoleCareCoordinator, PermMemberManage, false},
		{RoleCareCoordinator, PermCareTransitionClose, true},
		{RoleProvider, PermCareTransitionUpdate, true},
		{RoleProvider, PermPatientWrite, false},
		{Role("Janitor"), PermPatientRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestPermissionsForDeduplicates(t *testing.T) {
	perms := PermissionsFor(RoleCareCoordinator, RoleProvider)

	seen := make(map[string]bool)
	for _, p := range perms {
		if seen[p] {
			t.Errorf("Expected %s once", p)
		}
		seen[p] = true
	}
	if !seen[string(PermCareTransitionAssign)] {
		t.Error("Expected coordinator permissions to be included")
	}
}

func TestIssueAndParseToken(t *testing.T) {
	cfg := testAuthConfig()
	now := time.Now()

	resp, err := IssueToken(cfg, TokenRequest{
		Username: "user-1",
		TenantID: 7,
		Roles:    []string{"CareCoordinator"},
	}, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !resp.Expires.Equal(now.Add(time.Hour)) {
		t.Errorf("Expected expiry in one hour, got %v", resp.Expires)
	}

	claims, err := ParseToken(cfg, resp.Token)
	if err != nil {
		t.Fatalf("Expected token to parse, got %v", err)
	}
	if claims.TenantID != "7" {
		t.Errorf("Expected tenant 7, got %s", claims.TenantID)
	}
	if len(claims.Permissions) == 0 {
		t.Error("Expected permissions derived from roles")
	}
}

// TestIssueTokenDefaults tests the defaults applied to an empty token request
func TestIssueTokenDefaults(t *testing.T) {
	resp, err := IssueToken(testAuthConfig(), TokenRequest{}, time.Now())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.Username != "api-user" {
		t.Errorf("Expected api-user, got %s", resp.Username)
	}
	if resp.TenantID != 1 {
		t.Errorf("Expected tenant 1, got %d", resp.TenantID)
	}
}

func TestIssueTokenRejectsUnknownRole(t *testing.T) {
	_, err := IssueToken(testAuthConfig(), TokenRequest{Username: "u", Roles: []string{"Root"}}, time.Now())
	if err == nil {
		t.Error("Expected error for unknown role")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	cfg := testAuthConfig()
	resp, _ := IssueToken(cfg, TokenRequest{Username: "u"}, time.Now())

	other := cfg
	other.JWTSecret = "other"
	if _, err := ParseToken(other, resp.Token); err == nil {
		t.Error("Expected signature error")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	cfg := testAuthConfig()
	resp, _ := IssueToken(cfg, TokenRequest{Username: "u"}, time.Now().Add(-2*time.Hour))

	if _, err := ParseToken(cfg, resp.Token); err == nil {
		t.Error("Expected expired token to be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	cfg := testAuthConfig()
	issued, _ := IssueToken(cfg, TokenRequest{Username: "u1", TenantID: 3, Roles: []string{"Admin"}}, time.Now())
	token := issued.Token

	var gotUser *User
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUser(r.Context())
	}))

	tests := []struct {
		name     string
		header   string
		expected int
	}{
		{"Missing header", "", http.StatusUnauthorized},
		{"Wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"Garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"Valid token", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}

	if gotUser == nil || gotUser.TenantID != "3" {
		t.Errorf("Expected user with tenant 3, got %+v", gotUser)
	}
}

func TestRequirePermissions(t *testing.T) {
	handler := RequirePermissions(PermMemberManage)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		name     string
		user     *User
		expected int
	}{
		{"Anonymous", nil, http.StatusUnauthorized},
		{"Provider", &User{ID: "p", Roles: []string{"Provider"}}, http.StatusForbidden},
		{"Admin role", &User{ID: "a", Roles: []string{"Admin"}}, http.StatusOK},
		{"Explicit permission", &User{ID: "x", Permissions: []string{"member.manage"}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = req.WithContext(WithUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestTokenHandler(t *testing.T) {
	cfg := testAuthConfig()
	body, _ := json.Marshal(TokenRequest{Username: "dev", TenantID: 2, Roles: []string{"Provider"}})

	rec := httptest.NewRecorder()
	TokenHandler(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/token", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Expected JSON response, got %v", err)
	}
	if _, err := ParseToken(cfg, resp.Token); err != nil {
		t.Errorf("Expected issued token to validate, got %v", err)
	}
	if resp.Username != "dev" || resp.TenantID != 2 {
		t.Errorf("Expected dev/2, got %s/%d", resp.Username, resp.TenantID)
	}
}
