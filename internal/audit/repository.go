package audit

import (
	"context"
	"database/sql"

	"github.com/ealmetes/HealthExtent/internal/shared/sqlserver"
)

// Repository persists HL7 message audits
type Repository interface {
	Write(ctx context.Context, req WriteRequest) error
	ListByTenant(ctx context.Context, tenantKey, skip, take int) ([]MessageAudit, error)
}

// SQLServerRepository implements Repository on the he schema
type SQLServerRepository struct {
	db *sqlserver.DB
}

// NewSQLServerRepository creates a new audit repository
func NewSQLServerRepository(db *sqlserver.DB) *SQLServerRepository {
	return &SQLServerRepository{db: db}
}

// Write runs he.WriteAudit_Tenant
func (r *SQLServerRepository) Write(ctx context.Context, req WriteRequest) error {
	return r.db.ExecProc(ctx, "he.WriteAudit_Tenant",
		sql.Named("TenantKey", req.TenantKey),
		sql.Named("MessageControlId", req.MessageControlID),
		sql.Named("MessageType", req.MessageType),
		sql.Named("EventTimestamp_TS", sqlserver.Nullable(req.EventTimestampTS)),
		sql.Named("SourceCode", sqlserver.Nullable(req.SourceCode)),
		sql.Named("HospitalCode", sqlserver.Nullable(req.HospitalCode)),
		sql.Named("RawMessage", sqlserver.Nullable(req.RawMessage)),
		sql.Named("Status", req.Status),
		sql.Named("ErrorText", sqlserver.Nullable(req.ErrorText)),
	)
}

// ListByTenant lists audits, most recently processed first
func (r *SQLServerRepository) ListByTenant(ctx context.Context, tenantKey, skip, take int) ([]MessageAudit, error) {
	skip, take = sqlserver.Paging(skip, take)
	query := `SELECT TenantKey, MessageControlId, MessageType, EventTimestamp, SourceKey, HospitalKey,
			RawMessage, ProcessedUtc, Status, ErrorText
		FROM he.Hl7MessageAudit
		WHERE TenantKey = @TenantKey
		ORDER BY ProcessedUtc DESC
		OFFSET @Skip ROWS FETCH NEXT @Take ROWS ONLY`

	rows, cancel, err := r.db.Query(ctx, "audit.list", query,
		sql.Named("TenantKey", tenantKey), sql.Named("Skip", skip), sql.Named("Take", take))
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer rows.Close()

	audits := []MessageAudit{}
	for rows.Next() {
		var (
			a                 MessageAudit
			eventTS           sql.NullTime
			sourceKey, hospKy sql.NullInt32
			raw, errText      sql.NullString
		)
		if err := rows.Scan(&a.TenantKey, &a.MessageControlID, &a.MessageType, &eventTS, &sourceKey,
			&hospKy, &raw, &a.ProcessedUTC, &a.Status, &errText); err != nil {
			return nil, err
		}
		a.EventTimestamp = sqlserver.TimePtr(eventTS)
		a.SourceKey = sqlserver.Int32Ptr(sourceKey)
		a.HospitalKey = sqlserver.Int32Ptr(hospKy)
		a.RawMessage = sqlserver.StringPtr(raw)
		a.ErrorText = sqlserver.StringPtr(errText)
		audits = append(audits, a)
	}
	return audits, rows.Err()
}
