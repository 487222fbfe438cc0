package sqlserver

import (
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestPaging(t *testing.T) {
	tests := []struct {
		name         string
		skip, take   int
		wantSkip     int
		wantTake     int
	}{
		{"Defaults pass through", 0, 100, 0, 100},
		{"Negative skip", -5, 10, 0, 10},
		{"Zero take", 20, 0, 20, 100},
		{"Negative take", 0, -1, 0, 100},
		{"Capped take", 0, 5000, 0, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skip, take := Paging(tt.skip, tt.take)
			if skip != tt.wantSkip || take != tt.wantTake {
				t.Errorf("Expected %d/%d, got %d/%d", tt.wantSkip, tt.wantTake, skip, take)
			}
		})
	}
}

func TestNullable(t *testing.T) {
	if Nullable(nil) != nil {
		t.Error("Expected nil for nil string")
	}
	s := "MRN1"
	if Nullable(&s) != "MRN1" {
		t.Errorf("Expected MRN1, got %v", Nullable(&s))
	}
	if NullableTime(nil) != nil {
		t.Error("Expected nil for nil time")
	}
	var n int64 = 9
	if NullableInt64(&n) != int64(9) {
		t.Errorf("Expected 9, got %v", NullableInt64(&n))
	}
}

func TestNullColumns(t *testing.T) {
	if StringPtr(sql.NullString{}) != nil {
		t.Error("Expected nil for invalid string")
	}
	if got := StringPtr(sql.NullString{String: "x", Valid: true}); got == nil || *got != "x" {
		t.Errorf("Expected x, got %v", got)
	}

	loc := time.FixedZone("EST", -5*3600)
	nt := sql.NullTime{Time: time.Date(2024, 3, 1, 7, 0, 0, 0, loc), Valid: true}
	got := TimePtr(nt)
	if got == nil || got.Location() != time.UTC || got.Hour() != 12 {
		t.Errorf("Expected 12:00 UTC, got %v", got)
	}

	if Int64Ptr(sql.NullInt64{Int64: 3, Valid: true}) == nil {
		t.Error("Expected value for valid int64")
	}
	if Int32Ptr(sql.NullInt32{}) != nil {
		t.Error("Expected nil for invalid int32")
	}
}

func TestErrorDetail(t *testing.T) {
	err := errors.New("mssql: Tenant 9 does not exist")
	if got := ErrorDetail(err); got != "Tenant 9 does not exist" {
		t.Errorf("Expected stripped message, got %s", got)
	}
}
