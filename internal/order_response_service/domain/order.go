package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of a purchase order as far as the
// supplier-response flow is concerned.
type OrderStatus string

const (
	OrderStatusSent               OrderStatus = "order_sent"
	OrderStatusModified           OrderStatus = "order_modified"
	OrderStatusAccepted           OrderStatus = "order_accepted"
	OrderStatusRejected           OrderStatus = "order_rejected"
	OrderStatusPartiallyResponded OrderStatus = "order_partially_responded"
	// OrderStatusApproved is reached through the Owner/PM review flow, not
	// through supplier SMS; it is included so the awaiting-response guard
	// treats it as already resolved.
	OrderStatusApproved OrderStatus = "approved"
)

// AwaitingResponse reports whether a supplier command may still be applied.
// Everything outside these two states is already resolved, so commands
// against it are idempotent no-ops.
func (s OrderStatus) AwaitingResponse() bool {
	return s == OrderStatusSent || s == OrderStatusModified
}

// FinancialStatus tracks whether the order's cost has been committed to the
// project ledger.
type FinancialStatus string

const (
	FinancialStatusPending   FinancialStatus = "pending"
	FinancialStatusCommitted FinancialStatus = "committed"
)

// MaterialLineStatus is the per-line response state on bulk orders.
type MaterialLineStatus string

const (
	MaterialLinePending  MaterialLineStatus = "pending"
	MaterialLineAccepted MaterialLineStatus = "accepted"
	MaterialLineRejected MaterialLineStatus = "rejected"
)

// OrderMaterial is one line of a bulk purchase order.
type OrderMaterial struct {
	Name            string             `json:"name"`
	UnitCost        float64            `json:"unit_cost"`
	QuantityOrdered float64            `json:"quantity_ordered"`
	ResponseStatus  MaterialLineStatus `json:"response_status"`
	ResponseNote    string             `json:"response_note,omitempty"`
}

// PurchaseOrder is the minimal order projection this service reads and
// transitions. The wider procurement workflow owns the rest of the record.
type PurchaseOrder struct {
	ID                  uuid.UUID   `json:"id"`
	PurchaseOrderNumber string      `json:"purchase_order_number"`
	SupplierID          uuid.UUID   `json:"supplier_id"`
	ProjectID           uuid.UUID   `json:"project_id"`
	CreatedBy           uuid.UUID   `json:"created_by"`
	Status              OrderStatus `json:"status"`

	IsBulkOrder             bool            `json:"is_bulk_order"`
	SupportsPartialResponse bool            `json:"supports_partial_response"`
	Materials               []OrderMaterial `json:"materials,omitempty"`

	UnitCost        float64         `json:"unit_cost"`
	QuantityOrdered float64         `json:"quantity_ordered"`
	TotalCost       float64         `json:"total_cost"`
	FinancialStatus FinancialStatus `json:"financial_status"`

	NeedsReassignment     bool                 `json:"needs_reassignment"`
	SupplierModifications *ModificationDetails `json:"supplier_modifications,omitempty"`
	ModificationApproved  bool                 `json:"modification_approved"`

	DeliveryDate           *time.Time `json:"delivery_date,omitempty"`
	ResponseTokenExpiresAt *time.Time `json:"response_token_expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCompleteUnitCosts is the accept guard: a non-bulk order needs a positive
// unit cost, a bulk order needs one on every material line.
func (o *PurchaseOrder) HasCompleteUnitCosts() bool {
	if !o.IsBulkOrder {
		return o.UnitCost > 0
	}
	if len(o.Materials) == 0 {
		return false
	}
	for _, m := range o.Materials {
		if m.UnitCost <= 0 {
			return false
		}
	}
	return true
}

// ResponseTokenExpired reports whether the order's reply window has closed.
func (o *PurchaseOrder) ResponseTokenExpired(now time.Time) bool {
	return o.ResponseTokenExpiresAt != nil && o.ResponseTokenExpiresAt.Before(now)
}
