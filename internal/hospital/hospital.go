// Package hospital lists the facilities registered to a tenant.
package hospital

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/ealmetes/HealthExtent/internal/shared/respond"
	"github.com/ealmetes/HealthExtent/internal/shared/sqlserver"
	"github.com/ealmetes/HealthExtent/internal/shared/tenant"
	"github.com/go-chi/chi/v5"
)

// Hospital is a row of he.Hospital
type Hospital struct {
	HospitalKey        int       `json:"hospitalKey"`
	TenantKey          int       `json:"tenantKey"`
	HospitalCode       string    `json:"hospitalCode"`
	HospitalName       string    `json:"hospitalName"`
	AssigningAuthority *string   `json:"assigningAuthority,omitempty"`
	IsActive           bool      `json:"isActive"`
	CreatedUTC         time.Time `json:"createdUtc"`
}

// Repository reads hospitals
type Repository interface {
	ListActive(ctx context.Context, tenantKey int) ([]Hospital, error)
}

// SQLServerRepository implements Repository on the he schema
type SQLServerRepository struct {
	db *sqlserver.DB
}

// NewSQLServerRepository creates a new hospital repository
func NewSQLServerRepository(db *sqlserver.DB) *SQLServerRepository {
	return &SQLServerRepository{db: db}
}

// ListActive returns a tenant's active hospitals
func (r *SQLServerRepository) ListActive(ctx context.Context, tenantKey int) ([]Hospital, error) {
	query := `SELECT HospitalKey, TenantKey, HospitalCode, HospitalName, AssigningAuthority, IsActive, CreatedUtc
		FROM he.Hospital
		WHERE TenantKey = @TenantKey AND IsActive = 1
		ORDER BY HospitalName`

	rows, cancel, err := r.db.Query(ctx, "hospital.list", query, sql.Named("TenantKey", tenantKey))
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer rows.Close()

	hospitals := []Hospital{}
	for rows.Next() {
		var h Hospital
		var authority sql.NullString
		if err := rows.Scan(&h.HospitalKey, &h.TenantKey, &h.HospitalCode, &h.HospitalName,
			&authority, &h.IsActive, &h.CreatedUTC); err != nil {
			return nil, err
		}
		h.AssigningAuthority = sqlserver.StringPtr(authority)
		hospitals = append(hospitals, h)
	}
	return hospitals, rows.Err()
}

// Handler provides HTTP handlers for hospitals
type Handler struct {
	repo Repository
}

// NewHandler creates a new hospital handler
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the hospital routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/tenant/{tenantKey}", h.ListByTenant)
	return r
}

// ListByTenant returns the tenant's active hospitals
func (h *Handler) ListByTenant(w http.ResponseWriter, r *http.Request) {
	tenantKey, err := tenant.FromPath(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := tenant.Authorize(r, tenantKey); err != nil {
		respond.Error(w, r, err)
		return
	}

	hospitals, err := h.repo.ListActive(r.Context(), tenantKey)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, hospitals)
}
