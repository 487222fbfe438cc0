package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/ealmetes/HealthExtent/internal/caretransition/domain"
	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/ealmetes/HealthExtent/internal/shared/sqlserver"
	"github.com/ealmetes/HealthExtent/internal/shared/types"
)

// SQLServerRepository implements domain.Repository on the he schema
type SQLServerRepository struct {
	db *sqlserver.DB
}

// NewSQLServerRepository creates a new care transition repository
func NewSQLServerRepository(db *sqlserver.DB) *SQLServerRepository {
	return &SQLServerRepository{db: db}
}

// Create runs he.CreateCareTransition_Tenant
func (r *SQLServerRepository) Create(ctx context.Context, ct *domain.CareTransition) error {
	err := r.db.ExecProc(ctx, "he.CreateCareTransition_Tenant",
		sql.Named("TenantKey", ct.TenantKey),
		sql.Named("CareTransitionKey", ct.CareTransitionKey),
		sql.Named("EncounterKey", ct.EncounterKey),
		sql.Named("PatientKey", ct.PatientKey),
		sql.Named("Status", string(ct.Status)),
		sql.Named("Priority", string(ct.Priority)),
		sql.Named("RiskTier", string(ct.RiskTier)),
		sql.Named("TCMSchedule1", sqlserver.NullableTime(ct.TCMSchedule1)),
		sql.Named("TCMSchedule2", sqlserver.NullableTime(ct.TCMSchedule2)),
		sql.Named("NextOutreachDate", sqlserver.NullableTime(ct.NextOutreachDate)),
		sql.Named("CreatedUtc", ct.CreatedUTC),
	)
	if err != nil {
		if isDuplicate(err) {
			return apperrors.Conflict("care transition already exists for this encounter")
		}
		return apperrors.Wrap(err, "failed to create care transition")
	}
	return nil
}

// Update runs he.UpdateCareTransition_Tenant with every mutable field
func (r *SQLServerRepository) Update(ctx context.Context, ct *domain.CareTransition) error {
	if err := r.db.ExecProc(ctx, "he.UpdateCareTransition_Tenant", updateArgs(ct)...); err != nil {
		return apperrors.Wrap(err, "failed to update care transition")
	}
	return nil
}

// LogOutreach writes the outreach entry and the transition in one transaction
func (r *SQLServerRepository) LogOutreach(ctx context.Context, ct *domain.CareTransition, entry *domain.OutreachLog) error {
	err := r.db.WithTx(ctx, "he.LogOutreach_Tenant", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "he.LogOutreach_Tenant",
			sql.Named("TenantKey", entry.TenantKey),
			sql.Named("OutreachKey", entry.OutreachKey),
			sql.Named("CareTransitionKey", entry.CareTransitionKey),
			sql.Named("OutreachMethod", entry.OutreachMethod),
			sql.Named("ContactOutcome", entry.ContactOutcome),
			sql.Named("OutreachDate", entry.OutreachDate),
			sql.Named("NextOutreachDate", sqlserver.NullableTime(entry.NextOutreachDate)),
			sql.Named("AuthorUserKey", entry.AuthorUserKey),
			sql.Named("Notes", sqlserver.Nullable(entry.Notes)),
			sql.Named("CreatedUtc", entry.CreatedUTC),
		)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "he.UpdateCareTransition_Tenant", updateArgs(ct)...)
		return err
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to log outreach")
	}
	return nil
}

func updateArgs(ct *domain.CareTransition) []any {
	return []any{
		sql.Named("TenantKey", ct.TenantKey),
		sql.Named("CareTransitionKey", ct.CareTransitionKey),
		sql.Named("Status", string(ct.Status)),
		sql.Named("Priority", string(ct.Priority)),
		sql.Named("RiskTier", string(ct.RiskTier)),
		sql.Named("NextOutreachDate", sqlserver.NullableTime(ct.NextOutreachDate)),
		sql.Named("OutreachAttempts", ct.OutreachAttempts),
		sql.Named("OutreachDate", sqlserver.NullableTime(ct.OutreachDate)),
		sql.Named("LastOutreachDate", sqlserver.NullableTime(ct.LastOutreachDate)),
		sql.Named("OutreachMethod", sqlserver.Nullable(ct.OutreachMethod)),
		sql.Named("ContactOutcome", sqlserver.Nullable(ct.ContactOutcome)),
		sql.Named("FollowUpApptDateTime", sqlserver.NullableTime(ct.FollowUpApptDateTime)),
		sql.Named("FollowUpProviderKey", sqlserver.Nullable(ct.FollowUpProviderKey)),
		sql.Named("AssignedToUserKey", sqlserver.Nullable(ct.AssignedToUserKey)),
		sql.Named("CareManagerUserKey", sqlserver.Nullable(ct.CareManagerUserKey)),
		sql.Named("AssignedTeam", sqlserver.Nullable(ct.AssignedTeam)),
		sql.Named("CloseReason", sqlserver.Nullable(ct.CloseReason)),
		sql.Named("ClosedAtUtc", sqlserver.NullableTime(ct.ClosedAtUTC)),
		sql.Named("ClosedByUserKey", sqlserver.Nullable(ct.ClosedByUserKey)),
		sql.Named("Notes", sqlserver.Nullable(ct.Notes)),
		sql.Named("LastUpdatedUtc", ct.LastUpdatedUTC),
	}
}

const detailSelect = `SELECT ct.CareTransitionKey, ct.TenantKey, ct.EncounterKey, ct.PatientKey,
	ct.Status, ct.Priority, ct.RiskTier, ct.TCMSchedule1, ct.TCMSchedule2,
	ct.NextOutreachDate, ct.OutreachAttempts, ct.OutreachDate, ct.LastOutreachDate,
	ct.OutreachMethod, ct.ContactOutcome, ct.FollowUpApptDateTime, ct.FollowUpProviderKey,
	ct.AssignedToUserKey, ct.CareManagerUserKey, ct.AssignedTeam,
	ct.CloseReason, ct.ClosedAtUtc, ct.ClosedByUserKey, ct.Notes, ct.CreatedUtc, ct.LastUpdatedUtc,
	p.PatientIdExternal, p.GivenName, p.FamilyName, p.MRN, p.DOB, p.Phone,
	e.VisitNumber, e.AdmitDateTime, e.DischargeDateTime, e.Location, e.VisitStatus,
	e.HospitalKey, h.HospitalCode, h.HospitalName
	FROM he.CareTransition ct
	INNER JOIN he.Encounter e ON e.TenantKey = ct.TenantKey AND e.EncounterKey = ct.EncounterKey
	INNER JOIN he.Patient p ON p.TenantKey = ct.TenantKey AND p.PatientKey = ct.PatientKey
	LEFT JOIN he.Hospital h ON h.TenantKey = e.TenantKey AND h.HospitalKey = e.HospitalKey`

// FindByKey retrieves one transition of a tenant
func (r *SQLServerRepository) FindByKey(ctx context.Context, tenantKey int, key types.ID) (*domain.Detail, error) {
	query := detailSelect + ` WHERE ct.TenantKey = @TenantKey AND ct.CareTransitionKey = @CareTransitionKey`

	d, err := r.findOne(ctx, "caretransition.find", query,
		sql.Named("TenantKey", tenantKey), sql.Named("CareTransitionKey", key))
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("care transition", key.String())
	}
	return d, err
}

// FindByEncounter retrieves the transition opened for an encounter
func (r *SQLServerRepository) FindByEncounter(ctx context.Context, tenantKey int, encounterKey int64) (*domain.Detail, error) {
	query := detailSelect + ` WHERE ct.TenantKey = @TenantKey AND ct.EncounterKey = @EncounterKey`

	d, err := r.findOne(ctx, "caretransition.find_by_encounter", query,
		sql.Named("TenantKey", tenantKey), sql.Named("EncounterKey", encounterKey))
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("care transition for encounter", strconv.FormatInt(encounterKey, 10))
	}
	return d, err
}

func (r *SQLServerRepository) findOne(ctx context.Context, op, query string, args ...any) (*domain.Detail, error) {
	var d *domain.Detail
	err := r.db.QueryRow(ctx, op, query, func(row *sql.Row) error {
		var err error
		d, err = scanDetail(row)
		return err
	}, args...)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// List returns a tenant's transitions narrowed by the equality and due date
// filters, most recently updated first. Search is applied by the caller.
func (r *SQLServerRepository) List(ctx context.Context, tenantKey int, filter domain.Filter) ([]domain.Detail, error) {
	where := []string{"ct.TenantKey = @TenantKey"}
	args := []any{sql.Named("TenantKey", tenantKey)}

	if filter.Status != nil {
		where = append(where, "ct.Status = @Status")
		args = append(args, sql.Named("Status", string(*filter.Status)))
	}
	if filter.Priority != nil {
		where = append(where, "ct.Priority = @Priority")
		args = append(args, sql.Named("Priority", string(*filter.Priority)))
	}
	if filter.RiskTier != nil {
		where = append(where, "ct.RiskTier = @RiskTier")
		args = append(args, sql.Named("RiskTier", string(*filter.RiskTier)))
	}
	if filter.AssignedToUserKey != "" {
		where = append(where, "ct.AssignedToUserKey = @AssignedToUserKey")
		args = append(args, sql.Named("AssignedToUserKey", filter.AssignedToUserKey))
	}
	if filter.HospitalKey != nil {
		where = append(where, "e.HospitalKey = @HospitalKey")
		args = append(args, sql.Named("HospitalKey", *filter.HospitalKey))
	}
	if filter.DueDateFrom != nil {
		where = append(where, "ct.TCMSchedule1 >= @DueDateFrom")
		args = append(args, sql.Named("DueDateFrom", *filter.DueDateFrom))
	}
	if filter.DueDateTo != nil {
		where = append(where, "ct.TCMSchedule1 <= @DueDateTo")
		args = append(args, sql.Named("DueDateTo", *filter.DueDateTo))
	}

	query := detailSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ct.LastUpdatedUtc DESC`

	rows, cancel, err := r.db.Query(ctx, "caretransition.list", query, args...)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer rows.Close()

	details := []domain.Detail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, rows.Err()
}

// ListOutreach returns a transition's outreach log, newest first
func (r *SQLServerRepository) ListOutreach(ctx context.Context, tenantKey int, key types.ID) ([]domain.OutreachLog, error) {
	query := `SELECT OutreachKey, CareTransitionKey, TenantKey, OutreachMethod, ContactOutcome,
			OutreachDate, NextOutreachDate, AuthorUserKey, Notes, CreatedUtc
		FROM he.OutreachLog
		WHERE TenantKey = @TenantKey AND CareTransitionKey = @CareTransitionKey
		ORDER BY OutreachDate DESC`

	rows, cancel, err := r.db.Query(ctx, "caretransition.outreach", query,
		sql.Named("TenantKey", tenantKey), sql.Named("CareTransitionKey", key))
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer rows.Close()

	logs := []domain.OutreachLog{}
	for rows.Next() {
		var (
			l      domain.OutreachLog
			next   sql.NullTime
			author sql.NullString
			notes  sql.NullString
		)
		if err := rows.Scan(&l.OutreachKey, &l.CareTransitionKey, &l.TenantKey, &l.OutreachMethod,
			&l.ContactOutcome, &l.OutreachDate, &next, &author, &notes, &l.CreatedUTC); err != nil {
			return nil, err
		}
		l.OutreachDate = l.OutreachDate.UTC()
		l.NextOutreachDate = sqlserver.TimePtr(next)
		l.AuthorUserKey = author.String
		l.Notes = sqlserver.StringPtr(notes)
		l.CreatedUTC = l.CreatedUTC.UTC()
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDetail(s scanner) (*domain.Detail, error) {
	var (
		d                                                  domain.Detail
		status, priority, risk                             string
		schedule1, schedule2, next, outreach, lastOutreach sql.NullTime
		followUp, closedAt, dob, admit, discharge          sql.NullTime
		method, outcome, provider, assignee, manager, team sql.NullString
		closeReason, closedBy, notes                       sql.NullString
		externalID                                         string
		given, family, mrn, phone, location, visitStatus   sql.NullString
		hospitalCode, hospitalName                         sql.NullString
	)
	err := s.Scan(
		&d.CareTransitionKey, &d.TenantKey, &d.EncounterKey, &d.PatientKey,
		&status, &priority, &risk, &schedule1, &schedule2,
		&next, &d.OutreachAttempts, &outreach, &lastOutreach,
		&method, &outcome, &followUp, &provider,
		&assignee, &manager, &team,
		&closeReason, &closedAt, &closedBy, &notes, &d.CreatedUTC, &d.LastUpdatedUTC,
		&externalID, &given, &family, &mrn, &dob, &phone,
		&d.Encounter.VisitNumber, &admit, &discharge, &location, &visitStatus,
		&d.Hospital.HospitalKey, &hospitalCode, &hospitalName,
	)
	if err != nil {
		return nil, err
	}

	if d.Status, err = domain.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("care transition %s has status %q: %w", d.CareTransitionKey, status, err)
	}
	d.Priority = storedLevel(priority)
	d.RiskTier = storedLevel(risk)
	d.TCMSchedule1 = sqlserver.TimePtr(schedule1)
	d.TCMSchedule2 = sqlserver.TimePtr(schedule2)
	d.NextOutreachDate = sqlserver.TimePtr(next)
	d.OutreachDate = sqlserver.TimePtr(outreach)
	d.LastOutreachDate = sqlserver.TimePtr(lastOutreach)
	d.OutreachMethod = sqlserver.StringPtr(method)
	d.ContactOutcome = sqlserver.StringPtr(outcome)
	d.FollowUpApptDateTime = sqlserver.TimePtr(followUp)
	d.FollowUpProviderKey = sqlserver.StringPtr(provider)
	d.AssignedToUserKey = sqlserver.StringPtr(assignee)
	d.CareManagerUserKey = sqlserver.StringPtr(manager)
	d.AssignedTeam = sqlserver.StringPtr(team)
	d.CloseReason = sqlserver.StringPtr(closeReason)
	d.ClosedAtUTC = sqlserver.TimePtr(closedAt)
	d.ClosedByUserKey = sqlserver.StringPtr(closedBy)
	d.Notes = sqlserver.StringPtr(notes)
	d.CreatedUTC = d.CreatedUTC.UTC()
	d.LastUpdatedUTC = d.LastUpdatedUTC.UTC()

	d.Patient = domain.PatientRef{
		PatientKey: d.PatientKey,
		Name:       patientName(given, family, externalID),
		MRN:        sqlserver.StringPtr(mrn),
		DOB:        sqlserver.TimePtr(dob),
		Phone:      sqlserver.StringPtr(phone),
	}
	d.Encounter.EncounterKey = d.EncounterKey
	d.Encounter.AdmitDateTime = sqlserver.TimePtr(admit)
	d.Encounter.DischargeDateTime = sqlserver.TimePtr(discharge)
	d.Encounter.Location = sqlserver.StringPtr(location)
	d.Encounter.VisitStatus = sqlserver.StringPtr(visitStatus)
	d.Hospital.HospitalCode = hospitalCode.String
	d.Hospital.HospitalName = hospitalName.String
	return &d, nil
}

// storedLevel reads priority and risk columns written by older clients in any case.
// Unrecognized values fall back to Medium, the level new transitions start at.
func storedLevel(s string) domain.Level {
	l, err := domain.ParseLevel(s)
	if err != nil {
		return domain.LevelMedium
	}
	return l
}

func patientName(given, family sql.NullString, externalID string) string {
	name := strings.TrimSpace(strings.TrimSpace(given.String) + " " + strings.TrimSpace(family.String))
	if name == "" {
		return externalID
	}
	return name
}

func isDuplicate(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE KEY") ||
		strings.Contains(msg, "already exists")
}
