package infrastructure

import (
	"errors"
	"testing"

	"github.com/ealmetes/HealthExtent/internal/caretransition/domain"
)

// storedRow fills the status, priority and risk columns of a care transition
// row and leaves every other column at its zero value.
type storedRow struct {
	status, priority, risk string
}

func (r storedRow) Scan(dest ...any) error {
	*dest[4].(*string) = r.status
	*dest[5].(*string) = r.priority
	*dest[6].(*string) = r.risk
	return nil
}

func TestScanDetailNormalizesStoredValues(t *testing.T) {
	tests := []struct {
		name         string
		row          storedRow
		wantStatus   domain.Status
		wantPriority domain.Level
		wantRisk     domain.Level
	}{
		{"spaced in progress", storedRow{"In Progress", "High", "Low"}, domain.StatusInProgress, domain.LevelHigh, domain.LevelLow},
		{"lower case", storedRow{"open", "medium", "high"}, domain.StatusOpen, domain.LevelMedium, domain.LevelHigh},
		{"canonical closed", storedRow{"Closed", "Low", "Medium"}, domain.StatusClosed, domain.LevelLow, domain.LevelMedium},
		{"unknown levels", storedRow{"InProgress", "Urgent", ""}, domain.StatusInProgress, domain.LevelMedium, domain.LevelMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := scanDetail(tt.row)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if d.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, d.Status)
			}
			if d.Priority != tt.wantPriority {
				t.Errorf("Expected priority %s, got %s", tt.wantPriority, d.Priority)
			}
			if d.RiskTier != tt.wantRisk {
				t.Errorf("Expected risk tier %s, got %s", tt.wantRisk, d.RiskTier)
			}
		})
	}
}

func TestScanDetailInProgressCanBeClosed(t *testing.T) {
	d, err := scanDetail(storedRow{"In Progress", "Medium", "Medium"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := d.Start("coordinator", d.CreatedUTC); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
	if err := d.Close("Completed", nil, "coordinator", d.CreatedUTC); err != nil {
		t.Errorf("Expected close to succeed, got %v", err)
	}
}

func TestScanDetailRejectsUnknownStatus(t *testing.T) {
	if _, err := scanDetail(storedRow{"Archived", "Medium", "Medium"}); err == nil {
		t.Error("Expected error for unknown status")
	}
}
