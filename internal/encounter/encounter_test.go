package encounter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/respond"
	"github.com/ealmetes/HealthExtent/internal/shared/types"
)

type fakeRepo struct {
	encounters map[int64]Encounter
	nextKey    int64
	upsertErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{encounters: make(map[int64]Encounter), nextKey: 500}
}

func (f *fakeRepo) Upsert(ctx context.Context, req UpsertRequest) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	discharge, _ := types.ParseOptionalHL7Timestamp(req.DischargeTS)
	for key, e := range f.encounters {
		if e.TenantKey == req.TenantKey && e.VisitNumber == req.VisitNumber {
			e.DischargeDateTime = discharge
			f.encounters[key] = e
			return nil
		}
	}
	f.nextKey++
	f.encounters[f.nextKey] = Encounter{
		EncounterKey:      f.nextKey,
		TenantKey:         req.TenantKey,
		PatientKey:        req.PatientKey,
		VisitNumber:       req.VisitNumber,
		DischargeDateTime: discharge,
	}
	return nil
}

func (f *fakeRepo) FindByKey(ctx context.Context, tenantKey int, encounterKey int64) (*Encounter, error) {
	e, ok := f.encounters[encounterKey]
	if !ok || e.TenantKey != tenantKey {
		return nil, apperrors.NotFound("encounter", strconv.FormatInt(encounterKey, 10))
	}
	return &e, nil
}

func (f *fakeRepo) FindByVisit(ctx context.Context, tenantKey int, hospitalCode, visitNumber string) (*Encounter, error) {
	for _, e := range f.encounters {
		if e.TenantKey == tenantKey && e.VisitNumber == visitNumber {
			return &e, nil
		}
	}
	return nil, apperrors.NotFound("encounter", visitNumber)
}

func (f *fakeRepo) ListByPatient(ctx context.Context, tenantKey int, patientKey int64) ([]Encounter, error) {
	out := []Encounter{}
	for _, e := range f.encounters {
		if e.TenantKey == tenantKey && e.PatientKey == patientKey {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByTenant(ctx context.Context, tenantKey, skip, take int) ([]Encounter, error) {
	return f.ListAll(ctx, tenantKey)
}

func (f *fakeRepo) ListAll(ctx context.Context, tenantKey int) ([]Encounter, error) {
	out := []Encounter{}
	for _, e := range f.encounters {
		if e.TenantKey == tenantKey {
			out = append(out, e)
		}
	}
	return out, nil
}

type recorder struct {
	recorded []Encounter
	err      error
}

func (r *recorder) RecordDischarge(ctx context.Context, enc Encounter) error {
	r.recorded = append(r.recorded, enc)
	return r.err
}

func strPtr(s string) *string { return &s }

func TestUpsertRequestValidate(t *testing.T) {
	long := string(bytes.Repeat([]byte("x"), 65))

	tests := []struct {
		name    string
		req     UpsertRequest
		wantErr bool
	}{
		{"Valid", UpsertRequest{TenantKey: 1, HospitalCode: "GEN", VisitNumber: "V1", PatientKey: 3}, false},
		{"Valid timestamps", UpsertRequest{TenantKey: 1, HospitalCode: "GEN", VisitNumber: "V1", PatientKey: 3,
			AdmitTS: strPtr("20240101"), DischargeTS: strPtr("202401051230")}, false},
		{"Missing hospital", UpsertRequest{TenantKey: 1, VisitNumber: "V1", PatientKey: 3}, true},
		{"Hospital too long", UpsertRequest{TenantKey: 1, HospitalCode: long, VisitNumber: "V1", PatientKey: 3}, true},
		{"Missing visit", UpsertRequest{TenantKey: 1, HospitalCode: "GEN", PatientKey: 3}, true},
		{"No patient", UpsertRequest{TenantKey: 1, HospitalCode: "GEN", VisitNumber: "V1"}, true},
		{"No tenant", UpsertRequest{HospitalCode: "GEN", VisitNumber: "V1", PatientKey: 3}, true},
		{"Bad discharge", UpsertRequest{TenantKey: 1, HospitalCode: "GEN", VisitNumber: "V1", PatientKey: 3,
			DischargeTS: strPtr("soon")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestUpsertEncounterRecordsDischarge tests that a discharge hands the encounter to the recorder
func TestUpsertEncounterRecordsDischarge(t *testing.T) {
	repo := newFakeRepo()
	rec := &recorder{}
	router := NewHandler(repo, rec).Routes()

	admit := []byte(`{"TenantKey":1,"HospitalCode":"GEN","VisitNumber":"V1","PatientKey":3,"Admit_TS":"20240101"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upsert", bytes.NewReader(admit)))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(rec.recorded) != 0 {
		t.Errorf("Expected no discharge on admit, got %d", len(rec.recorded))
	}

	discharge := []byte(`{"TenantKey":1,"HospitalCode":"GEN","VisitNumber":"V1","PatientKey":3,"Discharge_TS":"20240105"}`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upsert", bytes.NewReader(discharge)))

	var resp UpsertResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Success || resp.Message != "Encounter upserted successfully" {
		t.Errorf("Unexpected response %+v", resp)
	}
	if resp.EncounterKey == nil || *resp.EncounterKey != 501 {
		t.Errorf("Expected encounter key 501, got %v", resp.EncounterKey)
	}
	if len(rec.recorded) != 1 {
		t.Fatalf("Expected one recorded discharge, got %d", len(rec.recorded))
	}
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := rec.recorded[0].DischargeDateTime; got == nil || !got.Equal(want) {
		t.Errorf("Expected discharge %v, got %v", want, got)
	}
}

func TestUpsertEncounterRecorderErrorStillSucceeds(t *testing.T) {
	router := NewHandler(newFakeRepo(), &recorder{err: errors.New("down")}).Routes()

	body := []byte(`{"TenantKey":1,"HospitalCode":"GEN","VisitNumber":"V9","PatientKey":3,"Discharge_TS":"20240105"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upsert", bytes.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestUpsertEncounterStoredProcedureError(t *testing.T) {
	repo := newFakeRepo()
	repo.upsertErr = errors.New("mssql: Hospital not found for tenant")
	router := NewHandler(repo, nil).Routes()

	body, _ := json.Marshal(UpsertRequest{TenantKey: 1, HospitalCode: "NOPE", VisitNumber: "V1", PatientKey: 3})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upsert", bytes.NewReader(body)))

	var res respond.Result
	json.NewDecoder(w.Body).Decode(&res)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
	if res.Success || res.Message != "Error: Hospital not found for tenant" {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestGetEncounterAndListByPatient(t *testing.T) {
	repo := newFakeRepo()
	repo.encounters[1] = Encounter{EncounterKey: 1, TenantKey: 2, PatientKey: 9, VisitNumber: "A"}
	repo.encounters[2] = Encounter{EncounterKey: 2, TenantKey: 2, PatientKey: 9, VisitNumber: "B"}
	repo.encounters[3] = Encounter{EncounterKey: 3, TenantKey: 4, PatientKey: 9, VisitNumber: "C"}
	router := NewHandler(repo, nil).Routes()

	tests := []struct {
		name     string
		target   string
		expected int
	}{
		{"Found", "/1?tenantKey=2", http.StatusOK},
		{"Other tenant", "/3?tenantKey=2", http.StatusNotFound},
		{"No tenant", "/1", http.StatusBadRequest},
		{"By patient", "/patient/9?tenantKey=2", http.StatusOK},
		{"Bad patient key", "/patient/x?tenantKey=2", http.StatusBadRequest},
		{"By tenant", "/tenant/2", http.StatusOK},
		{"Bad tenant path", "/tenant/zero", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if w.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, w.Code)
			}
		})
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/patient/9?tenantKey=2", nil))
	var encounters []Encounter
	json.NewDecoder(w.Body).Decode(&encounters)
	if len(encounters) != 2 {
		t.Errorf("Expected 2 encounters for tenant 2, got %d", len(encounters))
	}
}

func TestToTCM(t *testing.T) {
	discharge := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := ToTCM([]Encounter{
		{EncounterKey: 1, PatientKey: 2, DischargeDateTime: &discharge, VisitStatus: strPtr("R")},
		{EncounterKey: 2, PatientKey: 2},
	})
	if len(out) != 2 || out[0].VisitStatus != "R" || out[1].VisitStatus != "" {
		t.Errorf("Unexpected projection %+v", out)
	}
	if !(Encounter{}).IsActive() {
		t.Error("Expected an undischarged encounter to be active")
	}
}
