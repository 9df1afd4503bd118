package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OrderTransition is one status change plus the fields written with it.
// Pointer fields are only written when non-nil, so callers express exactly
// the deltas a transition carries.
type OrderTransition struct {
	OrderID   uuid.UUID
	NewStatus OrderStatus

	FinancialStatus      *FinancialStatus
	NeedsReassignment    *bool
	RejectionReason      *RejectionReason
	RejectionSubcategory *string
	RejectionNote        *string

	UnitCost              *float64
	QuantityOrdered       *float64
	TotalCost             *float64
	DeliveryDate          *time.Time
	SupplierModifications *ModificationDetails
	ModificationApproved  *bool

	// Materials replaces the per-line response state on bulk orders.
	Materials []OrderMaterial

	RespondedAt time.Time
}

// OrderLookupRepository is the read side the resolver depends on.
type OrderLookupRepository interface {
	// FindByReference looks an order up by its normalized PO number.
	// Returns ErrOrderNotFound when nothing matches.
	FindByReference(ctx context.Context, reference string) (*PurchaseOrder, error)
	// FindActiveSupplierByPhone matches any of the normalized phone variants
	// against active suppliers. Returns ErrSupplierNotFound when none match.
	FindActiveSupplierByPhone(ctx context.Context, phoneVariants []string) (*Supplier, error)
	// FindMostRecentAwaitingOrder returns the newest order in an
	// awaiting-response status for the supplier, or ErrNoPendingOrder.
	FindMostRecentAwaitingOrder(ctx context.Context, supplierID uuid.UUID) (*PurchaseOrder, error)
	// CountAwaitingOrders reports how many orders were candidates, so the
	// resolver can attach the ambiguity advisory.
	CountAwaitingOrders(ctx context.Context, supplierID uuid.UUID) (int, error)
	// GetSupplier fetches the supplier record for a directly referenced order.
	GetSupplier(ctx context.Context, supplierID uuid.UUID) (*Supplier, error)
}

// OrderMutationRepository is the write side the state applier depends on.
type OrderMutationRepository interface {
	// ApplyTransition writes a single transition. The repository must guard
	// with the awaiting-response statuses so a concurrent duplicate delivery
	// cannot double-apply; it returns ErrOrderAlreadyResolved when the guard
	// matched no row.
	ApplyTransition(ctx context.Context, tr *OrderTransition) error
	// ApplyAcceptTransaction performs the accept transition, the project
	// committed-cost increment and the audit write as one atomic unit.
	// Either all three land or none do.
	ApplyAcceptTransaction(ctx context.Context, tr *OrderTransition, projectID uuid.UUID, amount float64, audit *AuditEntry) error
}

// AuditEntry is one structured audit record.
type AuditEntry struct {
	ID         uuid.UUID       `json:"id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	ProjectID  uuid.UUID       `json:"project_id"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditRepository records transition audit entries outside the atomic accept
// path (rejections, modifications, partial responses).
type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
}

// CommunicationRepository persists the SMS exchange and correlates provider
// delivery reports back to sent messages.
type CommunicationRepository interface {
	Create(ctx context.Context, c *Communication) error
	// UpdateDeliveryStatus applies a delivery report to the communication
	// holding the provider message id. Returns ErrCommunicationNotFound when
	// no sent message carries that id.
	UpdateDeliveryStatus(ctx context.Context, providerMessageID string, report *DeliveryReport) error
}
