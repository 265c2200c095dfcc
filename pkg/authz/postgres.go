package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresMembershipSource answers membership queries from the
// memberships table.
type PostgresMembershipSource struct {
	db *pgxpool.Pool
}

func NewPostgresMembershipSource(db *pgxpool.Pool) *PostgresMembershipSource {
	return &PostgresMembershipSource{db: db}
}

func (s *PostgresMembershipSource) IsMember(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM memberships WHERE user_id = $1 AND tenant_id = $2)`,
		userID, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}
