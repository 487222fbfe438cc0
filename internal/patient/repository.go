package patient

import (
	"context"
	"database/sql"
	"strconv"

	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/sqlserver"
)

// Repository persists patients. Every call is scoped by tenant key.
type Repository interface {
	Upsert(ctx context.Context, req UpsertRequest) (int64, error)
	FindByKey(ctx context.Context, tenantKey int, patientKey int64) (*Patient, error)
	ListByTenant(ctx context.Context, tenantKey, skip, take int) ([]Patient, error)
}

// SQLServerRepository implements Repository on the he schema
type SQLServerRepository struct {
	db *sqlserver.DB
}

// NewSQLServerRepository creates a new patient repository
func NewSQLServerRepository(db *sqlserver.DB) *SQLServerRepository {
	return &SQLServerRepository{db: db}
}

// Upsert runs he.UpsertPatient_Tenant and returns the patient key it assigned
func (r *SQLServerRepository) Upsert(ctx context.Context, req UpsertRequest) (int64, error) {
	var key int64
	err := r.db.ExecProc(ctx, "he.UpsertPatient_Tenant",
		sql.Named("TenantKey", req.TenantKey),
		sql.Named("PatientIdExternal", req.PatientIDExternal),
		sql.Named("AssigningAuthority", sqlserver.Nullable(req.AssigningAuthority)),
		sql.Named("MRN", sqlserver.Nullable(req.MRN)),
		sql.Named("FamilyName", sqlserver.Nullable(req.FamilyName)),
		sql.Named("GivenName", sqlserver.Nullable(req.GivenName)),
		sql.Named("DOB_TS", sqlserver.Nullable(req.DOBTS)),
		sql.Named("Sex", sqlserver.Nullable(req.Sex)),
		sql.Named("Phone", sqlserver.Nullable(req.Phone)),
		sql.Named("AddressLine1", sqlserver.Nullable(req.AddressLine1)),
		sql.Named("City", sqlserver.Nullable(req.City)),
		sql.Named("State", sqlserver.Nullable(req.State)),
		sql.Named("PostalCode", sqlserver.Nullable(req.PostalCode)),
		sql.Named("Country", sqlserver.Nullable(req.Country)),
		sql.Named("FirstSeenHospitalCode", sqlserver.Nullable(req.FirstSeenHospitalCode)),
		sql.Named("OutPatientKey", sql.Out{Dest: &key}),
	)
	if err != nil {
		return 0, err
	}
	return key, nil
}

const patientColumns = `PatientKey, TenantKey, PatientIdExternal, AssigningAuthority, MRN, FamilyName,
	GivenName, DOB, Sex, Phone, AddressLine1, City, State, PostalCode, Country,
	FirstSeenHospitalKey, LastUpdatedUtc`

// FindByKey retrieves one patient of a tenant
func (r *SQLServerRepository) FindByKey(ctx context.Context, tenantKey int, patientKey int64) (*Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM he.Patient
		WHERE TenantKey = @TenantKey AND PatientKey = @PatientKey`

	var p *Patient
	err := r.db.QueryRow(ctx, "patient.find", query, func(row *sql.Row) error {
		var err error
		p, err = scanPatient(row)
		return err
	}, sql.Named("TenantKey", tenantKey), sql.Named("PatientKey", patientKey))
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient", strconv.FormatInt(patientKey, 10))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListByTenant lists a tenant's patients, most recently updated first
func (r *SQLServerRepository) ListByTenant(ctx context.Context, tenantKey, skip, take int) ([]Patient, error) {
	skip, take = sqlserver.Paging(skip, take)
	query := `SELECT ` + patientColumns + ` FROM he.Patient
		WHERE TenantKey = @TenantKey
		ORDER BY LastUpdatedUtc DESC
		OFFSET @Skip ROWS FETCH NEXT @Take ROWS ONLY`

	rows, cancel, err := r.db.Query(ctx, "patient.list", query,
		sql.Named("TenantKey", tenantKey), sql.Named("Skip", skip), sql.Named("Take", take))
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer rows.Close()

	patients := []Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPatient(s scanner) (*Patient, error) {
	var (
		p                                                     Patient
		authority, mrn, family, given, sex, phone, addr, city sql.NullString
		state, postal, country                                sql.NullString
		dob                                                   sql.NullTime
		firstSeen                                             sql.NullInt32
	)
	err := s.Scan(
		&p.PatientKey, &p.TenantKey, &p.PatientIDExternal, &authority, &mrn, &family,
		&given, &dob, &sex, &phone, &addr, &city, &state, &postal, &country,
		&firstSeen, &p.LastUpdatedUTC,
	)
	if err != nil {
		return nil, err
	}

	p.AssigningAuthority = sqlserver.StringPtr(authority)
	p.MRN = sqlserver.StringPtr(mrn)
	p.FamilyName = sqlserver.StringPtr(family)
	p.GivenName = sqlserver.StringPtr(given)
	p.DOB = sqlserver.TimePtr(dob)
	p.Sex = sqlserver.StringPtr(sex)
	p.Phone = sqlserver.StringPtr(phone)
	p.AddressLine1 = sqlserver.StringPtr(addr)
	p.City = sqlserver.StringPtr(city)
	p.State = sqlserver.StringPtr(state)
	p.PostalCode = sqlserver.StringPtr(postal)
	p.Country = sqlserver.StringPtr(country)
	p.FirstSeenHospitalKey = sqlserver.Int32Ptr(firstSeen)
	p.LastUpdatedUTC = p.LastUpdatedUTC.UTC()
	return &p, nil
}
