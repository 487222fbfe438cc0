package encounter

import (
	"context"
	"database/sql"
	"strconv"

	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/sqlserver"
)

// Repository persists encounters. Every call is scoped by tenant key.
type Repository interface {
	Upsert(ctx context.Context, req UpsertRequest) error
	FindByKey(ctx context.Context, tenantKey int, encounterKey int64) (*Encounter, error)
	FindByVisit(ctx context.Context, tenantKey int, hospitalCode, visitNumber string) (*Encounter, error)
	ListByPatient(ctx context.Context, tenantKey int, patientKey int64) ([]Encounter, error)
	ListByTenant(ctx context.Context, tenantKey, skip, take int) ([]Encounter, error)
	ListAll(ctx context.Context, tenantKey int) ([]Encounter, error)
}

// SQLServerRepository implements Repository on the he schema
type SQLServerRepository struct {
	db *sqlserver.DB
}

// NewSQLServerRepository creates a new encounter repository
func NewSQLServerRepository(db *sqlserver.DB) *SQLServerRepository {
	return &SQLServerRepository{db: db}
}

// Upsert runs he.UpsertEncounter_Tenant. The procedure does not return the key.
func (r *SQLServerRepository) Upsert(ctx context.Context, req UpsertRequest) error {
	return r.db.ExecProc(ctx, "he.UpsertEncounter_Tenant",
		sql.Named("TenantKey", req.TenantKey),
		sql.Named("HospitalCode", req.HospitalCode),
		sql.Named("VisitNumber", req.VisitNumber),
		sql.Named("PatientKey", req.PatientKey),
		sql.Named("Admit_TS", sqlserver.Nullable(req.AdmitTS)),
		sql.Named("Discharge_TS", sqlserver.Nullable(req.DischargeTS)),
		sql.Named("PatientClass", sqlserver.Nullable(req.PatientClass)),
		sql.Named("Location", sqlserver.Nullable(req.Location)),
		sql.Named("AttendingDoctor", sqlserver.Nullable(req.AttendingDoctor)),
		sql.Named("PrimaryDoctor", sqlserver.Nullable(req.PrimaryDoctor)),
		sql.Named("AdmittingDoctor", sqlserver.Nullable(req.AdmittingDoctor)),
		sql.Named("AdmitSource", sqlserver.Nullable(req.AdmitSource)),
		sql.Named("VisitStatus", sqlserver.Nullable(req.VisitStatus)),
		sql.Named("Notes", sqlserver.Nullable(req.Notes)),
		sql.Named("AdmitMessageId", sqlserver.Nullable(req.AdmitMessageID)),
		sql.Named("DischargeMessageId", sqlserver.Nullable(req.DischargeMessageID)),
	)
}

const encounterColumns = `e.EncounterKey, e.TenantKey, e.HospitalKey, e.PatientKey, e.VisitNumber,
	e.AdmitDateTime, e.DischargeDateTime, e.PatientClass, e.Location, e.AttendingDoctor,
	e.PrimaryDoctor, e.AdmittingDoctor, e.AdmitSource, e.VisitStatus, e.Notes,
	e.AdmitMessageId, e.DischargeMessageId, e.LastUpdatedUtc`

// FindByKey retrieves one encounter of a tenant
func (r *SQLServerRepository) FindByKey(ctx context.Context, tenantKey int, encounterKey int64) (*Encounter, error) {
	query := `SELECT ` + encounterColumns + ` FROM he.Encounter e
		WHERE e.TenantKey = @TenantKey AND e.EncounterKey = @EncounterKey`

	enc, err := r.findOne(ctx, "encounter.find", query,
		sql.Named("TenantKey", tenantKey), sql.Named("EncounterKey", encounterKey))
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("encounter", strconv.FormatInt(encounterKey, 10))
	}
	return enc, err
}

// FindByVisit looks an encounter up by its natural key
func (r *SQLServerRepository) FindByVisit(ctx context.Context, tenantKey int, hospitalCode, visitNumber string) (*Encounter, error) {
	query := `SELECT ` + encounterColumns + ` FROM he.Encounter e
		INNER JOIN he.Hospital h ON h.TenantKey = e.TenantKey AND h.HospitalKey = e.HospitalKey
		WHERE e.TenantKey = @TenantKey AND h.HospitalCode = @HospitalCode AND e.VisitNumber = @VisitNumber`

	enc, err := r.findOne(ctx, "encounter.find_by_visit", query,
		sql.Named("TenantKey", tenantKey), sql.Named("HospitalCode", hospitalCode),
		sql.Named("VisitNumber", visitNumber))
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("encounter", hospitalCode+"/"+visitNumber)
	}
	return enc, err
}

func (r *SQLServerRepository) findOne(ctx context.Context, op, query string, args ...any) (*Encounter, error) {
	var enc *Encounter
	err := r.db.QueryRow(ctx, op, query, func(row *sql.Row) error {
		var err error
		enc, err = scanEncounter(row)
		return err
	}, args...)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// ListByPatient lists a patient's encounters, most recently updated first
func (r *SQLServerRepository) ListByPatient(ctx context.Context, tenantKey int, patientKey int64) ([]Encounter, error) {
	query := `SELECT ` + encounterColumns + ` FROM he.Encounter e
		WHERE e.TenantKey = @TenantKey AND e.PatientKey = @PatientKey
		ORDER BY e.LastUpdatedUtc DESC`
	return r.list(ctx, "encounter.list_by_patient", query,
		sql.Named("TenantKey", tenantKey), sql.Named("PatientKey", patientKey))
}

// ListByTenant lists a tenant's encounters, most recently updated first
func (r *SQLServerRepository) ListByTenant(ctx context.Context, tenantKey, skip, take int) ([]Encounter, error) {
	skip, take = sqlserver.Paging(skip, take)
	query := `SELECT ` + encounterColumns + ` FROM he.Encounter e
		WHERE e.TenantKey = @TenantKey
		ORDER BY e.LastUpdatedUtc DESC
		OFFSET @Skip ROWS FETCH NEXT @Take ROWS ONLY`
	return r.list(ctx, "encounter.list", query,
		sql.Named("TenantKey", tenantKey), sql.Named("Skip", skip), sql.Named("Take", take))
}

// ListAll returns every encounter of a tenant for dashboard aggregation
func (r *SQLServerRepository) ListAll(ctx context.Context, tenantKey int) ([]Encounter, error) {
	query := `SELECT ` + encounterColumns + ` FROM he.Encounter e
		WHERE e.TenantKey = @TenantKey
		ORDER BY e.LastUpdatedUtc DESC`
	return r.list(ctx, "encounter.list_all", query, sql.Named("TenantKey", tenantKey))
}

func (r *SQLServerRepository) list(ctx context.Context, op, query string, args ...any) ([]Encounter, error) {
	rows, cancel, err := r.db.Query(ctx, op, query, args...)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer rows.Close()

	encounters := []Encounter{}
	for rows.Next() {
		e, err := scanEncounter(rows)
		if err != nil {
			return nil, err
		}
		encounters = append(encounters, *e)
	}
	return encounters, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEncounter(s scanner) (*Encounter, error) {
	var (
		e                                              Encounter
		admit, discharge                               sql.NullTime
		class, location, attending, primary, admitting sql.NullString
		source, status, notes, admitMsg, dischargeMsg  sql.NullString
	)
	err := s.Scan(
		&e.EncounterKey, &e.TenantKey, &e.HospitalKey, &e.PatientKey, &e.VisitNumber,
		&admit, &discharge, &class, &location, &attending,
		&primary, &admitting, &source, &status, &notes,
		&admitMsg, &dischargeMsg, &e.LastUpdatedUTC,
	)
	if err != nil {
		return nil, err
	}

	e.AdmitDateTime = sqlserver.TimePtr(admit)
	e.DischargeDateTime = sqlserver.TimePtr(discharge)
	e.PatientClass = sqlserver.StringPtr(class)
	e.Location = sqlserver.StringPtr(location)
	e.AttendingDoctor = sqlserver.StringPtr(attending)
	e.PrimaryDoctor = sqlserver.StringPtr(primary)
	e.AdmittingDoctor = sqlserver.StringPtr(admitting)
	e.AdmitSource = sqlserver.StringPtr(source)
	e.VisitStatus = sqlserver.StringPtr(status)
	e.Notes = sqlserver.StringPtr(notes)
	e.AdmitMessageID = sqlserver.StringPtr(admitMsg)
	e.DischargeMessageID = sqlserver.StringPtr(dischargeMsg)
	e.LastUpdatedUTC = e.LastUpdatedUTC.UTC()
	return &e, nil
}
