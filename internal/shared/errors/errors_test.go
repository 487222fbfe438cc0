package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestValidatorCollectsFields(t *testing.T) {
	var v Validator
	v.Positive("TenantKey", 0)
	v.Required("PatientIdExternal", "")
	v.MaxLength("Sex", "MF", 1)
	v.MaxLength("MRN", "12345", 64)

	err := v.Err()
	if err == nil {
		t.Fatal("Expected validation error")
	}

	appErr, ok := err.(*AppError)
	if !ok {
		t.Fatalf("Expected *AppError, got %T", err)
	}
	if appErr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", appErr.HTTPStatus)
	}
	if len(appErr.Fields) != 3 {
		t.Fatalf("Expected 3 field errors, got %d", len(appErr.Fields))
	}
	if appErr.Fields[0].Field != "TenantKey" {
		t.Errorf("Expected first field TenantKey, got %s", appErr.Fields[0].Field)
	}
	if !Is(err, ErrValidation) {
		t.Error("Expected error to wrap ErrValidation")
	}
}

func TestValidatorEmpty(t *testing.T) {
	var v Validator
	v.Required("Name", "x")
	if err := v.Err(); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func TestMaxLengthCountsRunes(t *testing.T) {
	var v Validator
	v.MaxLength("FamilyName", "Müller", 6)
	if err := v.Err(); err != nil {
		t.Errorf("Expected multi-byte name within limit, got %v", err)
	}
}

func TestWrapPreservesStatus(t *testing.T) {
	wrapped := Wrap(NotFound("patient", "42"), "failed to load")
	if wrapped.HTTPStatus != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", wrapped.HTTPStatus)
	}
	if !IsNotFound(wrapped) {
		t.Error("Expected wrapped error to be not-found")
	}

	plain := Wrap(fmt.Errorf("boom"), "failed to save")
	if plain.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", plain.HTTPStatus)
	}
}
