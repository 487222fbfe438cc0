package hospital

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeRepo struct {
	hospitals []Hospital
}

func (f *fakeRepo) ListActive(ctx context.Context, tenantKey int) ([]Hospital, error) {
	out := []Hospital{}
	for _, h := range f.hospitals {
		if h.TenantKey == tenantKey && h.IsActive {
			out = append(out, h)
		}
	}
	return out, nil
}

func TestListByTenant(t *testing.T) {
	repo := &fakeRepo{hospitals: []Hospital{
		{HospitalKey: 1, TenantKey: 1, HospitalCode: "GEN", HospitalName: "General", IsActive: true},
		{HospitalKey: 2, TenantKey: 1, HospitalCode: "OLD", HospitalName: "Closed Wing", IsActive: false},
		{HospitalKey: 3, TenantKey: 2, HospitalCode: "NTH", HospitalName: "North", IsActive: true},
	}}
	router := NewHandler(repo).Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tenant/1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var hospitals []Hospital
	json.NewDecoder(rec.Body).Decode(&hospitals)
	if len(hospitals) != 1 || hospitals[0].HospitalCode != "GEN" {
		t.Errorf("Expected only the active GEN hospital, got %+v", hospitals)
	}
}

func TestListByTenantInvalidKey(t *testing.T) {
	router := NewHandler(&fakeRepo{}).Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tenant/zero", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}
