package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consite/procurement-sms/internal/order_response_service/domain"
)

// pgExecutor is satisfied by both *pgxpool.Pool and pgx.Tx so the accept path
// can write its audit record inside the same transaction as the transition.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PgAuditRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgAuditRepository(db *pgxpool.Pool, logger *slog.Logger) *PgAuditRepository {
	return &PgAuditRepository{db: db, logger: logger}
}

func (r *PgAuditRepository) Record(ctx context.Context, entry *domain.AuditEntry) error {
	if err := insertAuditEntry(ctx, r.db, entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func insertAuditEntry(ctx context.Context, db pgExecutor, entry *domain.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO purchase_order_events (id, action, entity_type, entity_id, project_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.Exec(ctx, query,
		entry.ID, entry.Action, entry.EntityType, entry.EntityID,
		entry.ProjectID, entry.Detail, entry.CreatedAt,
	)
	return err
}
