package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consite/procurement-sms/internal/order_response_service/domain"
)

// awaitingStatuses is the transition guard: a row only updates while it is
// still awaiting a supplier response. This is the sole defense against
// concurrent duplicate webhook deliveries.
var awaitingStatuses = []string{
	string(domain.OrderStatusSent),
	string(domain.OrderStatusModified),
}

type PgOrderRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgOrderRepository creates the PostgreSQL implementation of both the
// order lookup and order mutation repositories.
func NewPgOrderRepository(db *pgxpool.Pool, logger *slog.Logger) *PgOrderRepository {
	return &PgOrderRepository{db: db, logger: logger}
}

const orderColumns = `
	id, purchase_order_number, supplier_id, project_id, created_by, status,
	is_bulk_order, supports_partial_response, materials,
	unit_cost, quantity_ordered, total_cost, financial_status,
	needs_reassignment, supplier_modifications, modification_approved,
	delivery_date, response_token_expires_at, created_at, updated_at
`

func (r *PgOrderRepository) FindByReference(ctx context.Context, reference string) (*domain.PurchaseOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM purchase_orders WHERE purchase_order_number = $1`
	order, err := scanOrder(r.db.QueryRow(ctx, query, strings.ToUpper(strings.TrimSpace(reference))))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("query order by reference: %w", err)
	}
	return order, nil
}

func (r *PgOrderRepository) FindActiveSupplierByPhone(ctx context.Context, phoneVariants []string) (*domain.Supplier, error) {
	query := `
		SELECT id, name, phone, preferred_language, is_active, created_at
		FROM suppliers
		WHERE phone = ANY($1) AND is_active = TRUE AND deleted_at IS NULL
		LIMIT 1
	`
	var s domain.Supplier
	err := r.db.QueryRow(ctx, query, phoneVariants).Scan(
		&s.ID, &s.Name, &s.Phone, &s.PreferredLanguage, &s.IsActive, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSupplierNotFound
		}
		return nil, fmt.Errorf("query supplier by phone: %w", err)
	}
	return &s, nil
}

func (r *PgOrderRepository) GetSupplier(ctx context.Context, supplierID uuid.UUID) (*domain.Supplier, error) {
	query := `
		SELECT id, name, phone, preferred_language, is_active, created_at
		FROM suppliers
		WHERE id = $1 AND deleted_at IS NULL
	`
	var s domain.Supplier
	err := r.db.QueryRow(ctx, query, supplierID).Scan(
		&s.ID, &s.Name, &s.Phone, &s.PreferredLanguage, &s.IsActive, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSupplierNotFound
		}
		return nil, fmt.Errorf("query supplier by id: %w", err)
	}
	return &s, nil
}

func (r *PgOrderRepository) FindMostRecentAwaitingOrder(ctx context.Context, supplierID uuid.UUID) (*domain.PurchaseOrder, error) {
	query := `SELECT ` + orderColumns + `
		FROM purchase_orders
		WHERE supplier_id = $1 AND status = ANY($2)
		ORDER BY created_at DESC
		LIMIT 1
	`
	order, err := scanOrder(r.db.QueryRow(ctx, query, supplierID, awaitingStatuses))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoPendingOrder
		}
		return nil, fmt.Errorf("query awaiting order: %w", err)
	}
	return order, nil
}

func (r *PgOrderRepository) CountAwaitingOrders(ctx context.Context, supplierID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM purchase_orders WHERE supplier_id = $1 AND status = ANY($2)`
	var count int
	if err := r.db.QueryRow(ctx, query, supplierID, awaitingStatuses).Scan(&count); err != nil {
		return 0, fmt.Errorf("count awaiting orders: %w", err)
	}
	return count, nil
}

// ApplyTransition writes a single guarded status update. Zero affected rows
// means the order already left the awaiting-response states.
func (r *PgOrderRepository) ApplyTransition(ctx context.Context, tr *domain.OrderTransition) error {
	query, args, err := buildTransitionUpdate(tr)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderAlreadyResolved
	}
	return nil
}

// ApplyAcceptTransaction performs the accept transition, the project
// committed-cost increment and the audit insert as one transaction. A
// failure at any step rolls all three back.
func (r *PgOrderRepository) ApplyAcceptTransaction(ctx context.Context, tr *domain.OrderTransition, projectID uuid.UUID, amount float64, audit *domain.AuditEntry) error {
	query, args, err := buildTransitionUpdate(tr)
	if err != nil {
		return err
	}

	txErr := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("accept transition: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrOrderAlreadyResolved
		}

		ledgerQuery := `
			UPDATE projects
			SET committed_cost = committed_cost + $1, updated_at = $2
			WHERE id = $3
		`
		if _, err := tx.Exec(ctx, ledgerQuery, amount, time.Now().UTC(), projectID); err != nil {
			return fmt.Errorf("increment committed cost: %w", err)
		}

		if err := insertAuditEntry(ctx, tx, audit); err != nil {
			return fmt.Errorf("write accept audit record: %w", err)
		}
		return nil
	})
	if txErr != nil {
		if !errors.Is(txErr, domain.ErrOrderAlreadyResolved) {
			r.logger.ErrorContext(ctx, "Accept transaction rolled back",
				"order_id", tr.OrderID, "project_id", projectID, "error", txErr)
		}
		return txErr
	}
	return nil
}

// buildTransitionUpdate renders the guarded UPDATE for exactly the fields a
// transition carries.
func buildTransitionUpdate(tr *domain.OrderTransition) (string, []any, error) {
	set := []string{"status = $1", "responded_at = $2", "updated_at = $3"}
	args := []any{tr.NewStatus, tr.RespondedAt, time.Now().UTC()}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if tr.FinancialStatus != nil {
		add("financial_status", *tr.FinancialStatus)
	}
	if tr.NeedsReassignment != nil {
		add("needs_reassignment", *tr.NeedsReassignment)
	}
	if tr.RejectionReason != nil {
		add("rejection_reason", *tr.RejectionReason)
	}
	if tr.RejectionSubcategory != nil {
		add("rejection_subcategory", *tr.RejectionSubcategory)
	}
	if tr.RejectionNote != nil {
		add("rejection_note", *tr.RejectionNote)
	}
	if tr.UnitCost != nil {
		add("unit_cost", *tr.UnitCost)
	}
	if tr.QuantityOrdered != nil {
		add("quantity_ordered", *tr.QuantityOrdered)
	}
	if tr.TotalCost != nil {
		add("total_cost", *tr.TotalCost)
	}
	if tr.DeliveryDate != nil {
		add("delivery_date", *tr.DeliveryDate)
	}
	if tr.ModificationApproved != nil {
		add("modification_approved", *tr.ModificationApproved)
	}
	if tr.SupplierModifications != nil {
		raw, err := json.Marshal(tr.SupplierModifications)
		if err != nil {
			return "", nil, fmt.Errorf("marshal supplier modifications: %w", err)
		}
		add("supplier_modifications", raw)
	}
	if tr.Materials != nil {
		raw, err := json.Marshal(tr.Materials)
		if err != nil {
			return "", nil, fmt.Errorf("marshal material lines: %w", err)
		}
		add("materials", raw)
	}

	args = append(args, tr.OrderID)
	query := fmt.Sprintf(
		`UPDATE purchase_orders SET %s WHERE id = $%d AND status = ANY('{%s}')`,
		strings.Join(set, ", "), len(args), strings.Join(awaitingStatuses, ","),
	)
	return query, args, nil
}

func scanOrder(row pgx.Row) (*domain.PurchaseOrder, error) {
	var (
		o                domain.PurchaseOrder
		materialsRaw     []byte
		modificationsRaw []byte
	)
	err := row.Scan(
		&o.ID, &o.PurchaseOrderNumber, &o.SupplierID, &o.ProjectID, &o.CreatedBy, &o.Status,
		&o.IsBulkOrder, &o.SupportsPartialResponse, &materialsRaw,
		&o.UnitCost, &o.QuantityOrdered, &o.TotalCost, &o.FinancialStatus,
		&o.NeedsReassignment, &modificationsRaw, &o.ModificationApproved,
		&o.DeliveryDate, &o.ResponseTokenExpiresAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(materialsRaw) > 0 {
		if err := json.Unmarshal(materialsRaw, &o.Materials); err != nil {
			return nil, fmt.Errorf("decode material lines: %w", err)
		}
	}
	if len(modificationsRaw) > 0 {
		if err := json.Unmarshal(modificationsRaw, &o.SupplierModifications); err != nil {
			return nil, fmt.Errorf("decode supplier modifications: %w", err)
		}
	}
	return &o, nil
}
