package tenant

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ealmetes/HealthExtent/internal/shared/auth"
	"github.com/go-chi/chi/v5"
)

// TestResolve tests header, claim and query precedence
func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		claim    string
		query    string
		expected int
		ok       bool
	}{
		{"Header wins", "5", "6", "7", 5, true},
		{"Claim before query", "", "6", "7", 6, true},
		{"Query fallback", "", "", "7", 7, true},
		{"Non-numeric header skipped", "abc", "6", "", 6, true},
		{"Zero ignored", "0", "", "", 0, false},
		{"Negative ignored", "", "", "-3", 0, false},
		{"Nothing", "", "", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/patients/1"
			if tt.query != "" {
				target += "?tenantKey=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set(HeaderTenantID, tt.header)
			}
			if tt.claim != "" {
				req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: "u", TenantID: tt.claim}))
			}

			got, ok := Resolve(req)
			if ok != tt.ok {
				t.Errorf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestRequireMissingTenant(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/patients/1", nil)

	_, err := Require(req)
	if err == nil {
		t.Fatal("Expected error")
	}
	if err.Error() != "Tenant not specified. Provide X-Tenant-Id header or tenantKey query parameter." {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestCode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: "u", TenantCode: "ACME"}))
	if got := Code(req); got != "ACME" {
		t.Errorf("Expected claim code ACME, got %s", got)
	}

	req.Header.Set(HeaderTenantCode, "NORTH")
	if got := Code(req); got != "NORTH" {
		t.Errorf("Expected header code NORTH, got %s", got)
	}
}

func TestFromPath(t *testing.T) {
	r := chi.NewRouter()
	var got int
	var gotErr error
	r.Get("/tenant/{tenantKey}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = FromPath(r)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tenant/12", nil))
	if gotErr != nil || got != 12 {
		t.Errorf("Expected 12, got %d (%v)", got, gotErr)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tenant/abc", nil))
	if gotErr == nil {
		t.Error("Expected error for non-numeric tenant key")
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		user    *auth.User
		key     int
		allowed bool
	}{
		{"Anonymous", nil, 4, true},
		{"No tenant claim", &auth.User{ID: "u"}, 4, true},
		{"Matching claim", &auth.User{ID: "u", TenantID: "4"}, 4, true},
		{"Other tenant", &auth.User{ID: "u", TenantID: "5"}, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = req.WithContext(auth.WithUser(req.Context(), tt.user))
			}
			err := Authorize(req, tt.key)
			if (err == nil) != tt.allowed {
				t.Errorf("Expected allowed=%v, got %v", tt.allowed, err)
			}
		})
	}
}
