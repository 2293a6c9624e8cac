package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/ports"
)

// AuditRepository implements ports.AuditRepository on PostgreSQL.
type AuditRepository struct {
	pool *pgxpool.Pool
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) InsertAuthEvent(ctx context.Context, event domain.AuthEvent) error {
	const query = `INSERT INTO auth_events (kind, username, at, detail) VALUES ($1, $2, $3, $4)`
	if _, err := r.pool.Exec(ctx, query, string(event.Kind), event.Username, event.At.UTC(), event.Detail); err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
