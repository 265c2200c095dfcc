package horses

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rheckart/rescue-ranger/pkg/scoped"
)

const horseColumns = `id, tenant_id, name, breed, color, birth_year, status, notes, created_at, updated_at`

// PostgresBackend stores horses. Every statement filters by tenant_id;
// there is no unfiltered read path.
type PostgresBackend struct {
	db *pgxpool.Pool
}

func NewPostgresBackend(db *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) Insert(ctx context.Context, h *Horse) error {
	_, err := b.db.Exec(ctx, `
		INSERT INTO horses (`+horseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		h.ID, h.OwnerID, h.Name, h.Breed, h.Color, h.BirthYear,
		h.Status, h.Notes, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert horse: %w", err)
	}
	return nil
}

func (b *PostgresBackend) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Horse, error) {
	row := b.db.QueryRow(ctx, `
		SELECT `+horseColumns+`
		FROM horses
		WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanHorse(row)
}

func (b *PostgresBackend) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Horse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := b.db.Query(ctx, `
		SELECT `+horseColumns+`
		FROM horses
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list horses: %w", err)
	}
	defer rows.Close()

	var result []*Horse
	for rows.Next() {
		h, err := scanHorse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (b *PostgresBackend) Update(ctx context.Context, tenantID uuid.UUID, h *Horse) error {
	tag, err := b.db.Exec(ctx, `
		UPDATE horses
		SET name = $3, breed = $4, color = $5, birth_year = $6,
		    status = $7, notes = $8, updated_at = $9
		WHERE id = $1 AND tenant_id = $2`,
		h.ID, tenantID, h.Name, h.Breed, h.Color, h.BirthYear,
		h.Status, h.Notes, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update horse: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scoped.ErrNotFound
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := b.db.Exec(ctx, `
		DELETE FROM horses WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete horse: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scoped.ErrNotFound
	}
	return nil
}

// OwnerOf reports the owning tenant so the scoped store can tell a
// cross-tenant attempt apart from a missing row.
func (b *PostgresBackend) OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := b.db.QueryRow(ctx, `SELECT tenant_id FROM horses WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, scoped.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to look up horse owner: %w", err)
	}
	return owner, nil
}

func scanHorse(row pgx.Row) (*Horse, error) {
	var h Horse
	err := row.Scan(&h.ID, &h.OwnerID, &h.Name, &h.Breed, &h.Color,
		&h.BirthYear, &h.Status, &h.Notes, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scoped.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan horse: %w", err)
	}
	return &h, nil
}
