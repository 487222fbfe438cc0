package directory

import (
	"context"
	"errors"

	apperrors "github.com/ealmetes/HealthExtent/internal/shared/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores accounts, tenant links and members
type Repository interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, ownerUserID string) (*Account, error)
	GetAccountByTenantKey(ctx context.Context, tenantKey int) (*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error

	// EnsureTenantLink inserts link unless the user is already linked and
	// returns the stored link either way.
	EnsureTenantLink(ctx context.Context, link TenantLink) (*TenantLink, error)

	ListMembers(ctx context.Context, tenantKey int) ([]Member, error)
	GetMember(ctx context.Context, id string) (*Member, error)
	FindMember(ctx context.Context, tenantKey int, email string) (*Member, error)
	CreateMember(ctx context.Context, m *Member) error
	UpdateMember(ctx context.Context, m *Member) error
	ListMembersByEmail(ctx context.Context, email string, status MemberStatus) ([]Member, error)
	ListMembersByUser(ctx context.Context, userID string, status MemberStatus) ([]Member, error)
}

// PostgresRepository implements Repository on the directory schema
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a directory repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// --- Accounts ---

const accountColumns = `owner_user_id, organization_name, organization_type, first_name, last_name,
	email, phone, address1, address2, city, county, state, postal_code, tenant_key,
	created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	a := &Account{}
	err := row.Scan(
		&a.OwnerUserID, &a.OrganizationName, &a.OrganizationType, &a.FirstName, &a.LastName,
		&a.Email, &a.Phone, &a.Address1, &a.Address2, &a.City, &a.County, &a.State, &a.PostalCode, &a.TenantKey,
		&a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// CreateAccount inserts an account
func (r *PostgresRepository) CreateAccount(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO directory.accounts (
			owner_user_id, organization_name, organization_type, first_name, last_name,
			email, phone, address1, address2, city, county, state, postal_code, tenant_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		a.OwnerUserID, a.OrganizationName, a.OrganizationType, a.FirstName, a.LastName,
		a.Email, a.Phone, a.Address1, a.Address2, a.City, a.County, a.State, a.PostalCode, a.TenantKey,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return apperrors.Conflict("account already exists for this user")
		}
		return apperrors.Wrap(err, "failed to create account")
	}
	return nil
}

// GetAccount retrieves the account owned by a user
func (r *PostgresRepository) GetAccount(ctx context.Context, ownerUserID string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM directory.accounts WHERE owner_user_id = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, ownerUserID))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("account", ownerUserID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get account")
	}
	return a, nil
}

// GetAccountByTenantKey retrieves the account bound to a tenant
func (r *PostgresRepository) GetAccountByTenantKey(ctx context.Context, tenantKey int) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM directory.accounts
		WHERE tenant_key = $1
		ORDER BY created_at
		LIMIT 1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, tenantKey))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("account", "tenant")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get account by tenant key")
	}
	return a, nil
}

// UpdateAccount writes every mutable account column
func (r *PostgresRepository) UpdateAccount(ctx context.Context, a *Account) error {
	query := `
		UPDATE directory.accounts SET
			organization_name = $2, organization_type = $3, first_name = $4, last_name = $5,
			email = $6, phone = $7, address1 = $8, address2 = $9, city = $10, county = $11,
			state = $12, postal_code = $13, tenant_key = $14, updated_at = NOW()
		WHERE owner_user_id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		a.OwnerUserID, a.OrganizationName, a.OrganizationType, a.FirstName, a.LastName,
		a.Email, a.Phone, a.Address1, a.Address2, a.City, a.County,
		a.State, a.PostalCode, a.TenantKey,
	).Scan(&a.UpdatedAt)

	if err == pgx.ErrNoRows {
		return apperrors.NotFound("account", a.OwnerUserID)
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to update account")
	}
	return nil
}

// --- Tenant links ---

// EnsureTenantLink inserts the link when the user has none
func (r *PostgresRepository) EnsureTenantLink(ctx context.Context, link TenantLink) (*TenantLink, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO directory.tenant_links (user_id, account_owner_id, tenant_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		link.UserID, link.AccountOwnerID, link.TenantKey,
	)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return nil, apperrors.NotFound("account", link.AccountOwnerID)
		}
		return nil, apperrors.Wrap(err, "failed to ensure tenant link")
	}

	stored := &TenantLink{}
	err = r.pool.QueryRow(ctx, `
		SELECT user_id, account_owner_id, tenant_key, created_at
		FROM directory.tenant_links
		WHERE user_id = $1`, link.UserID,
	).Scan(&stored.UserID, &stored.AccountOwnerID, &stored.TenantKey, &stored.CreatedAt)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get tenant link")
	}
	return stored, nil
}

// --- Members ---

const memberColumns = `id, tenant_key, COALESCE(user_id, ''), email, COALESCE(first_name, ''),
	COALESCE(last_name, ''), role, status, invited_by, invited_at, joined_at, created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	m := &Member{}
	err := row.Scan(
		&m.ID, &m.TenantKey, &m.UserID, &m.Email, &m.FirstName,
		&m.LastName, &m.Role, &m.Status, &m.InvitedBy, &m.InvitedAt, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func (r *PostgresRepository) listMembers(ctx context.Context, where string, args ...any) ([]Member, error) {
	query := `SELECT ` + memberColumns + ` FROM directory.members WHERE ` + where + ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list members")
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan member")
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to list members")
	}
	return members, nil
}

// ListMembers returns every member of a tenant, oldest first
func (r *PostgresRepository) ListMembers(ctx context.Context, tenantKey int) ([]Member, error) {
	return r.listMembers(ctx, `tenant_key = $1`, tenantKey)
}

// GetMember retrieves a member by id
func (r *PostgresRepository) GetMember(ctx context.Context, id string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM directory.members WHERE id = $1`

	m, err := scanMember(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("member", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get member")
	}
	return m, nil
}

// FindMember looks a member up by tenant and email
func (r *PostgresRepository) FindMember(ctx context.Context, tenantKey int, email string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM directory.members
		WHERE tenant_key = $1 AND LOWER(email) = $2`

	m, err := scanMember(r.pool.QueryRow(ctx, query, tenantKey, NormalizeEmail(email)))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("member", email)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find member")
	}
	return m, nil
}

// CreateMember inserts a member
func (r *PostgresRepository) CreateMember(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO directory.members (
			id, tenant_key, user_id, email, first_name, last_name,
			role, status, invited_by, invited_at, joined_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		m.ID, m.TenantKey, m.UserID, m.Email, m.FirstName, m.LastName,
		string(m.Role), string(m.Status), m.InvitedBy, m.InvitedAt, m.JoinedAt,
	).Scan(&m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return apperrors.Conflict("member already exists in tenant")
		}
		return apperrors.Wrap(err, "failed to create member")
	}
	return nil
}

// UpdateMember writes the member's user, names, role and status
func (r *PostgresRepository) UpdateMember(ctx context.Context, m *Member) error {
	query := `
		UPDATE directory.members SET
			user_id = NULLIF($2, ''), first_name = $3, last_name = $4,
			role = $5, status = $6, joined_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		m.ID, m.UserID, m.FirstName, m.LastName,
		string(m.Role), string(m.Status), m.JoinedAt,
	).Scan(&m.UpdatedAt)

	if err == pgx.ErrNoRows {
		return apperrors.NotFound("member", m.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to update member")
	}
	return nil
}

// ListMembersByEmail returns the memberships of an address in a status
func (r *PostgresRepository) ListMembersByEmail(ctx context.Context, email string, status MemberStatus) ([]Member, error) {
	return r.listMembers(ctx, `LOWER(email) = $1 AND status = $2`, NormalizeEmail(email), string(status))
}

// ListMembersByUser returns the memberships of a user in a status
func (r *PostgresRepository) ListMembersByUser(ctx context.Context, userID string, status MemberStatus) ([]Member, error) {
	return r.listMembers(ctx, `user_id = $1 AND status = $2`, userID, string(status))
}
