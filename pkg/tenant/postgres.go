package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rheckart/rescue-ranger/pkg/pg"
)

// ListFilter narrows and orders tenant listings.
type ListFilter struct {
	Status   Status
	Search   string
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

// sortColumns whitelists ORDER BY targets.
var sortColumns = map[string]string{
	"name":       "name",
	"subdomain":  "subdomain",
	"status":     "status",
	"created_at": "created_at",
}

const tenantColumns = `id, name, subdomain, contact_email, status, suspension_reason,
	suspend_scheduled_at, config, api_key_hash, api_key_rotated_at, system,
	created_at, activated_at, suspended_at, deleted_at`

// PostgresStore is the durable tenant store over a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// FindByID returns the tenant with the given id or ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

// FindBySubdomain returns the tenant with the given subdomain or ErrNotFound.
func (s *PostgresStore) FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE subdomain = $1`,
		strings.ToLower(subdomain))
	return scanTenant(row)
}

// SubdomainExists is the fast-path uniqueness check. The unique index on
// the subdomain column is the real guarantee; this only avoids a doomed
// insert round trip.
func (s *PostgresStore) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE subdomain = $1)`,
		strings.ToLower(subdomain)).Scan(&exists)
	return exists, err
}

// Insert persists a new tenant. A concurrent insert of the same
// subdomain loses on the unique index and surfaces as ErrSubdomainTaken.
func (s *PostgresStore) Insert(ctx context.Context, t *Tenant) error {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tenants (id, name, subdomain, contact_email, status,
			suspension_reason, suspend_scheduled_at, config, api_key_hash,
			api_key_rotated_at, system, created_at, activated_at, suspended_at,
			deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.Name, strings.ToLower(t.Subdomain), t.ContactEmail, t.Status,
		t.SuspensionReason, t.SuspendScheduledAt, cfg, t.APIKeyHash,
		t.APIKeyRotatedAt, t.System, t.CreatedAt, t.ActivatedAt, t.SuspendedAt,
		t.DeletedAt)
	if pg.IsDuplicateKeyError(err) {
		return ErrSubdomainTaken
	}
	return err
}

// Update persists mutable tenant fields. The subdomain is deliberately
// absent from the statement: it is immutable once assigned.
func (s *PostgresStore) Update(ctx context.Context, t *Tenant) error {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE tenants SET name = $2, contact_email = $3, status = $4,
			suspension_reason = $5, suspend_scheduled_at = $6, config = $7,
			api_key_hash = $8, api_key_rotated_at = $9, activated_at = $10,
			suspended_at = $11, deleted_at = $12
		WHERE id = $1`,
		t.ID, t.Name, t.ContactEmail, t.Status, t.SuspensionReason,
		t.SuspendScheduledAt, cfg, t.APIKeyHash, t.APIKeyRotatedAt,
		t.ActivatedAt, t.SuspendedAt, t.DeletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a page of tenants and the total match count.
func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]Tenant, int, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+strings.ToLower(f.Search)+"%")
		where = append(where, fmt.Sprintf("(lower(name) LIKE $%d OR subdomain LIKE $%d)", len(args), len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tenants`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tenants%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		tenantColumns, clause, col, dir, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// DueScheduledSuspensions returns every active tenant whose scheduled
// suspension has come due. The sweep operates on this set directly, so
// no listing page size caps how many suspensions a single pass applies.
func (s *PostgresStore) DueScheduledSuspensions(ctx context.Context, now time.Time) ([]Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants
		WHERE status = $1 AND suspend_scheduled_at IS NOT NULL AND suspend_scheduled_at <= $2
		ORDER BY suspend_scheduled_at`,
		StatusActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CountActive returns the number of tenants currently in the active
// status. The metrics recorder polls it to keep the active-tenant
// gauge current.
func (s *PostgresStore) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM tenants WHERE status = $1`, StatusActive).Scan(&n)
	return n, err
}

// DuplicateSubdomains reports subdomains held by more than one row.
// A non-empty result means the unique index is missing or was bypassed;
// the directory healthcheck treats it as a configuration fault.
func (s *PostgresStore) DuplicateSubdomains(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subdomain FROM tenants GROUP BY subdomain HAVING count(*) > 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dups []string
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return nil, err
		}
		dups = append(dups, sub)
	}
	return dups, rows.Err()
}

// CountMissingNames reports tenants with a blank display name.
func (s *PostgresStore) CountMissingNames(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM tenants WHERE name IS NULL OR name = ''`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*Tenant, error) {
	var t Tenant
	var cfg []byte
	err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.ContactEmail, &t.Status,
		&t.SuspensionReason, &t.SuspendScheduledAt, &cfg, &t.APIKeyHash,
		&t.APIKeyRotatedAt, &t.System, &t.CreatedAt, &t.ActivatedAt,
		&t.SuspendedAt, &t.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &t.Config); err != nil {
			return nil, err
		}
	}
	return &t, nil
}
