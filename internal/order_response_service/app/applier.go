package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/consite/procurement-sms/internal/order_response_service/domain"
)

// FollowUpKind distinguishes the two best-effort dispatch channels.
type FollowUpKind string

const (
	// FollowUpPush is a push notification for a platform user (PM/Owner).
	FollowUpPush FollowUpKind = "push"
	// FollowUpEvent is a NATS event consumed by downstream procurement
	// services (material auto-creation, phase cost refresh, financial
	// recalculation).
	FollowUpEvent FollowUpKind = "event"
)

// FollowUp is one independently-dispatched, independently-failable side
// effect returned alongside the primary transition result. Its failure is
// logged by the dispatcher and never unwinds the transition.
type FollowUp struct {
	Kind    FollowUpKind
	UserID  uuid.UUID
	Title   string
	Body    string
	Subject string
	Payload map[string]any
}

// ApplyResult is the outcome of applying a parsed command to a resolved order.
type ApplyResult struct {
	// Processed is false for the idempotent no-op path (order already
	// resolved) and for blocked transitions.
	Processed  bool
	NewStatus  domain.OrderStatus
	ReplyKey   replyKey
	ReplyArgs  []any
	Assessment *domain.RetryabilityAssessment
	FollowUps  []FollowUp
}

// Applier computes and writes order-state transitions. The accept path is
// atomic with the committed-cost ledger and audit write; everything in
// FollowUps is best-effort.
type Applier struct {
	mutator domain.OrderMutationRepository
	audit   domain.AuditRepository
	logger  *slog.Logger
	now     func() time.Time
}

func NewApplier(mutator domain.OrderMutationRepository, audit domain.AuditRepository, logger *slog.Logger) *Applier {
	return &Applier{
		mutator: mutator,
		audit:   audit,
		logger:  logger.With("component", "applier"),
		now:     time.Now,
	}
}

// Apply runs the state machine for accept/reject/modify/partial commands.
// Help and unknown never reach here; the processor replies to those without
// resolving an order.
func (a *Applier) Apply(ctx context.Context, res *domain.Resolution, cmd domain.ParsedCommand) (*ApplyResult, error) {
	order := res.Order

	// Idempotence against duplicate webhook deliveries: anything outside the
	// awaiting-response states is already resolved and must not change.
	if !order.Status.AwaitingResponse() {
		return a.noopResult(order), nil
	}

	switch cmd.Action {
	case domain.ActionAccept:
		return a.applyAccept(ctx, order, cmd)
	case domain.ActionReject:
		return a.applyReject(ctx, order, cmd)
	case domain.ActionModify:
		return a.applyModify(ctx, order, cmd)
	case domain.ActionPartial:
		return a.applyPartial(ctx, order, cmd)
	default:
		return nil, fmt.Errorf("action %q is not applicable to an order", cmd.Action)
	}
}

func (a *Applier) noopResult(order *domain.PurchaseOrder) *ApplyResult {
	return &ApplyResult{
		Processed: false,
		NewStatus: order.Status,
		ReplyKey:  replyAlreadyResolved,
		ReplyArgs: []any{order.PurchaseOrderNumber},
	}
}

func (a *Applier) applyAccept(ctx context.Context, order *domain.PurchaseOrder, cmd domain.ParsedCommand) (*ApplyResult, error) {
	if !order.HasCompleteUnitCosts() {
		return &ApplyResult{
			Processed: false,
			NewStatus: order.Status,
			ReplyKey:  replyMissingCost,
			ReplyArgs: []any{order.PurchaseOrderNumber},
		}, fmt.Errorf("order %s: %w", order.PurchaseOrderNumber, domain.ErrMissingUnitCost)
	}

	committed := domain.FinancialStatusCommitted
	tr := &domain.OrderTransition{
		OrderID:         order.ID,
		NewStatus:       domain.OrderStatusAccepted,
		FinancialStatus: &committed,
		RespondedAt:     a.now(),
	}

	audit := a.auditEntry(order, "order_accepted_via_sms", map[string]any{
		"purchase_order_number": order.PurchaseOrderNumber,
		"total_cost":            order.TotalCost,
		"raw_text":              cmd.RawText,
	})

	err := a.mutator.ApplyAcceptTransaction(ctx, tr, order.ProjectID, order.TotalCost, audit)
	if errors.Is(err, domain.ErrOrderAlreadyResolved) {
		return a.noopResult(order), nil
	}
	if err != nil {
		return nil, fmt.Errorf("accept transaction for order %s: %w", order.PurchaseOrderNumber, err)
	}

	return &ApplyResult{
		Processed: true,
		NewStatus: domain.OrderStatusAccepted,
		ReplyKey:  replyAccepted,
		ReplyArgs: []any{order.PurchaseOrderNumber, order.TotalCost},
		FollowUps: a.acceptFollowUps(order),
	}, nil
}

func (a *Applier) acceptFollowUps(order *domain.PurchaseOrder) []FollowUp {
	return []FollowUp{
		{
			Kind:   FollowUpPush,
			UserID: order.CreatedBy,
			Title:  "Order accepted",
			Body:   fmt.Sprintf("Supplier accepted %s (total %.2f).", order.PurchaseOrderNumber, order.TotalCost),
		},
		{
			Kind:    FollowUpEvent,
			Subject: "procurement.order.accepted",
			Payload: map[string]any{
				"order_id":   order.ID.String(),
				"project_id": order.ProjectID.String(),
				"total_cost": order.TotalCost,
			},
		},
	}
}

func (a *Applier) applyReject(ctx context.Context, order *domain.PurchaseOrder, cmd domain.ParsedCommand) (*ApplyResult, error) {
	assessment := domain.AssessRetryability(cmd.RejectionReason, cmd.RejectionSubcategory, cmd.Confidence)

	reason := cmd.RejectionReason
	subcategory := cmd.RejectionSubcategory
	note := cmd.RawText
	needsReassignment := assessment.Retryable

	tr := &domain.OrderTransition{
		OrderID:              order.ID,
		NewStatus:            domain.OrderStatusRejected,
		NeedsReassignment:    &needsReassignment,
		RejectionReason:      &reason,
		RejectionSubcategory: &subcategory,
		RejectionNote:        &note,
		RespondedAt:          a.now(),
	}

	err := a.mutator.ApplyTransition(ctx, tr)
	if errors.Is(err, domain.ErrOrderAlreadyResolved) {
		return a.noopResult(order), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reject transition for order %s: %w", order.PurchaseOrderNumber, err)
	}

	a.recordAudit(ctx, order, "order_rejected_via_sms", map[string]any{
		"purchase_order_number": order.PurchaseOrderNumber,
		"rejection_reason":      reason,
		"rejection_subcategory": subcategory,
		"priority":              assessment.Priority,
		"confidence":            cmd.Confidence,
		"raw_text":              cmd.RawText,
	})

	return &ApplyResult{
		Processed:  true,
		NewStatus:  domain.OrderStatusRejected,
		ReplyKey:   replyRejected,
		ReplyArgs:  []any{order.PurchaseOrderNumber},
		Assessment: &assessment,
		FollowUps: []FollowUp{
			{
				Kind:   FollowUpPush,
				UserID: order.CreatedBy,
				Title:  "Order rejected",
				Body: fmt.Sprintf("Supplier rejected %s (%s). %s", order.PurchaseOrderNumber,
					reason, assessment.Recommendation),
			},
			{
				Kind:    FollowUpEvent,
				Subject: "procurement.order.rejected",
				Payload: map[string]any{
					"order_id":           order.ID.String(),
					"project_id":         order.ProjectID.String(),
					"rejection_reason":   string(reason),
					"retryable":          assessment.Retryable,
					"needs_reassignment": needsReassignment,
				},
			},
		},
	}, nil
}

func (a *Applier) applyModify(ctx context.Context, order *domain.PurchaseOrder, cmd domain.ParsedCommand) (*ApplyResult, error) {
	// Merge: fields the supplier did not mention keep their prior values,
	// and the total is recomputed from the merged pair.
	mergedUnitCost := order.UnitCost
	mergedQuantity := order.QuantityOrdered
	mergedDelivery := order.DeliveryDate

	mod := cmd.Modification
	if mod != nil {
		if mod.UnitCost != nil {
			mergedUnitCost = *mod.UnitCost
		}
		if mod.Quantity != nil {
			mergedQuantity = *mod.Quantity
		}
		if mod.DeliveryDate != nil {
			mergedDelivery = mod.DeliveryDate
		}
	}
	mergedTotal := mergedQuantity * mergedUnitCost

	notApproved := false
	tr := &domain.OrderTransition{
		OrderID:               order.ID,
		NewStatus:             domain.OrderStatusModified,
		UnitCost:              &mergedUnitCost,
		QuantityOrdered:       &mergedQuantity,
		TotalCost:             &mergedTotal,
		SupplierModifications: mod,
		ModificationApproved:  &notApproved,
		RespondedAt:           a.now(),
	}
	if mergedDelivery != nil {
		tr.DeliveryDate = mergedDelivery
	}

	err := a.mutator.ApplyTransition(ctx, tr)
	if errors.Is(err, domain.ErrOrderAlreadyResolved) {
		return a.noopResult(order), nil
	}
	if err != nil {
		return nil, fmt.Errorf("modify transition for order %s: %w", order.PurchaseOrderNumber, err)
	}

	a.recordAudit(ctx, order, "order_modified_via_sms", map[string]any{
		"purchase_order_number": order.PurchaseOrderNumber,
		"supplier_deltas":       mod,
		"merged_unit_cost":      mergedUnitCost,
		"merged_quantity":       mergedQuantity,
		"merged_total_cost":     mergedTotal,
		"raw_text":              cmd.RawText,
	})

	return &ApplyResult{
		Processed: true,
		NewStatus: domain.OrderStatusModified,
		ReplyKey:  replyModified,
		ReplyArgs: []any{order.PurchaseOrderNumber},
		FollowUps: []FollowUp{
			{
				Kind:   FollowUpPush,
				UserID: order.CreatedBy,
				Title:  "Order modification proposed",
				Body: fmt.Sprintf("Supplier proposed changes to %s (new total %.2f). Review required.",
					order.PurchaseOrderNumber, mergedTotal),
			},
			{
				Kind:    FollowUpEvent,
				Subject: "procurement.order.modified",
				Payload: map[string]any{
					"order_id":   order.ID.String(),
					"project_id": order.ProjectID.String(),
					"total_cost": mergedTotal,
				},
			},
		},
	}, nil
}

func (a *Applier) applyPartial(ctx context.Context, order *domain.PurchaseOrder, cmd domain.ParsedCommand) (*ApplyResult, error) {
	if !order.IsBulkOrder || !order.SupportsPartialResponse || len(order.Materials) == 0 {
		return &ApplyResult{
			Processed: false,
			NewStatus: order.Status,
			ReplyKey:  replyPartialUnsupported,
			ReplyArgs: []any{order.PurchaseOrderNumber},
		}, nil
	}

	lines := make([]domain.OrderMaterial, len(order.Materials))
	copy(lines, order.Materials)

	for _, resp := range cmd.MaterialResponses {
		status := domain.MaterialLineAccepted
		if resp.Action == domain.ActionReject {
			status = domain.MaterialLineRejected
		}
		if resp.TargetAll {
			for i := range lines {
				lines[i].ResponseStatus = status
				lines[i].ResponseNote = resp.Note
			}
			continue
		}
		for _, idx := range resp.TargetIndices {
			// Indices are 1-based as typed by the supplier; out-of-range
			// targets are ignored.
			if idx < 1 || idx > len(lines) {
				continue
			}
			lines[idx-1].ResponseStatus = status
			lines[idx-1].ResponseNote = resp.Note
		}
	}

	accepted, rejected := 0, 0
	for _, l := range lines {
		switch l.ResponseStatus {
		case domain.MaterialLineAccepted:
			accepted++
		case domain.MaterialLineRejected:
			rejected++
		}
	}

	newStatus := domain.OrderStatusPartiallyResponded
	switch {
	case accepted == len(lines):
		newStatus = domain.OrderStatusAccepted
	case rejected == len(lines):
		newStatus = domain.OrderStatusRejected
	}

	// A unanimous accept commits the ledger exactly like the whole-order
	// accept, including its unit-cost guard.
	if newStatus == domain.OrderStatusAccepted {
		if !order.HasCompleteUnitCosts() {
			return &ApplyResult{
				Processed: false,
				NewStatus: order.Status,
				ReplyKey:  replyMissingCost,
				ReplyArgs: []any{order.PurchaseOrderNumber},
			}, fmt.Errorf("order %s: %w", order.PurchaseOrderNumber, domain.ErrMissingUnitCost)
		}

		committed := domain.FinancialStatusCommitted
		tr := &domain.OrderTransition{
			OrderID:         order.ID,
			NewStatus:       newStatus,
			FinancialStatus: &committed,
			Materials:       lines,
			RespondedAt:     a.now(),
		}
		audit := a.auditEntry(order, "order_accepted_via_sms", map[string]any{
			"purchase_order_number": order.PurchaseOrderNumber,
			"total_cost":            order.TotalCost,
			"line_responses":        cmd.MaterialResponses,
			"raw_text":              cmd.RawText,
		})

		err := a.mutator.ApplyAcceptTransaction(ctx, tr, order.ProjectID, order.TotalCost, audit)
		if errors.Is(err, domain.ErrOrderAlreadyResolved) {
			return a.noopResult(order), nil
		}
		if err != nil {
			return nil, fmt.Errorf("partial accept transaction for order %s: %w", order.PurchaseOrderNumber, err)
		}

		return &ApplyResult{
			Processed: true,
			NewStatus: newStatus,
			ReplyKey:  replyAccepted,
			ReplyArgs: []any{order.PurchaseOrderNumber, order.TotalCost},
			FollowUps: a.acceptFollowUps(order),
		}, nil
	}

	tr := &domain.OrderTransition{
		OrderID:     order.ID,
		NewStatus:   newStatus,
		Materials:   lines,
		RespondedAt: a.now(),
	}

	err := a.mutator.ApplyTransition(ctx, tr)
	if errors.Is(err, domain.ErrOrderAlreadyResolved) {
		return a.noopResult(order), nil
	}
	if err != nil {
		return nil, fmt.Errorf("partial transition for order %s: %w", order.PurchaseOrderNumber, err)
	}

	a.recordAudit(ctx, order, "order_partially_responded_via_sms", map[string]any{
		"purchase_order_number": order.PurchaseOrderNumber,
		"accepted_lines":        accepted,
		"rejected_lines":        rejected,
		"line_responses":        cmd.MaterialResponses,
		"raw_text":              cmd.RawText,
	})

	replyK := replyPartial
	replyArgs := []any{order.PurchaseOrderNumber, accepted, rejected}
	if newStatus == domain.OrderStatusRejected {
		replyK = replyRejected
		replyArgs = []any{order.PurchaseOrderNumber}
	}

	return &ApplyResult{
		Processed: true,
		NewStatus: newStatus,
		ReplyKey:  replyK,
		ReplyArgs: replyArgs,
		FollowUps: []FollowUp{
			{
				Kind:   FollowUpPush,
				UserID: order.CreatedBy,
				Title:  "Order response received",
				Body: fmt.Sprintf("Supplier responded to %s: %d line(s) accepted, %d rejected.",
					order.PurchaseOrderNumber, accepted, rejected),
			},
			{
				Kind:    FollowUpEvent,
				Subject: "procurement.order.partial_response",
				Payload: map[string]any{
					"order_id":       order.ID.String(),
					"project_id":     order.ProjectID.String(),
					"accepted_lines": accepted,
					"rejected_lines": rejected,
					"new_status":     string(newStatus),
				},
			},
		},
	}, nil
}

func (a *Applier) auditEntry(order *domain.PurchaseOrder, action string, detail map[string]any) *domain.AuditEntry {
	raw, err := json.Marshal(detail)
	if err != nil {
		a.logger.Warn("Failed to marshal audit detail", "action", action, "error", err)
		raw = nil
	}
	return &domain.AuditEntry{
		ID:         uuid.New(),
		Action:     action,
		EntityType: "purchase_order",
		EntityID:   order.ID,
		ProjectID:  order.ProjectID,
		Detail:     raw,
		CreatedAt:  a.now(),
	}
}

// recordAudit writes a non-transactional audit entry. Audit failures outside
// the atomic accept unit are logged, not escalated.
func (a *Applier) recordAudit(ctx context.Context, order *domain.PurchaseOrder, action string, detail map[string]any) {
	entry := a.auditEntry(order, action, detail)
	if err := a.audit.Record(ctx, entry); err != nil {
		a.logger.ErrorContext(ctx, "Failed to record audit entry",
			"action", action, "order_id", order.ID, "error", err)
	}
}
