package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consite/procurement-sms/internal/order_response_service/domain"
)

type PgCommunicationRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgCommunicationRepository(db *pgxpool.Pool, logger *slog.Logger) *PgCommunicationRepository {
	return &PgCommunicationRepository{db: db, logger: logger}
}

func (r *PgCommunicationRepository) Create(ctx context.Context, c *domain.Communication) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	query := `
		INSERT INTO communications (
			id, purchase_order_id, supplier_phone, direction, content,
			provider_message_id, delivery_status, failure_reason,
			retry_count, network_code, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.PurchaseOrderID, c.SupplierPhone, c.Direction, c.Content,
		nullString(c.ProviderMessageID), nullString(c.DeliveryStatus), nullString(c.FailureReason),
		c.RetryCount, nullString(c.NetworkCode), c.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert communication: %w", err)
	}
	return nil
}

// UpdateDeliveryStatus correlates a provider delivery report to the outbound
// message carrying its id. Unmatched reports map to ErrCommunicationNotFound
// so callers can log and drop them.
func (r *PgCommunicationRepository) UpdateDeliveryStatus(ctx context.Context, providerMessageID string, report *domain.DeliveryReport) error {
	var deliveredAt sql.NullTime
	if report.Delivered() {
		deliveredAt = sql.NullTime{Time: report.ReportedAt, Valid: true}
	}
	query := `
		UPDATE communications
		SET delivery_status = $1, failure_reason = $2, retry_count = $3,
		    network_code = $4, delivered_at = $5
		WHERE provider_message_id = $6 AND direction = 'outbound'
	`
	tag, err := r.db.Exec(ctx, query,
		report.Status, nullString(report.FailureReason), report.RetryCount,
		nullString(report.NetworkCode), deliveredAt, providerMessageID,
	)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCommunicationNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
