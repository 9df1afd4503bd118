package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/consite/procurement-sms/internal/order_response_service/domain"
)

// Resolver maps an inbound sender + parsed command to exactly one purchase
// order, applying the recency tie-break when several orders are pending.
type Resolver struct {
	lookup domain.OrderLookupRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewResolver(lookup domain.OrderLookupRepository, logger *slog.Logger) *Resolver {
	return &Resolver{
		lookup: lookup,
		logger: logger.With("component", "resolver"),
		now:    time.Now,
	}
}

// Resolve finds the order a command applies to. Resolution failures come
// back as the domain sentinel errors; anything else is an infrastructure
// error the caller must not report as a command failure.
func (r *Resolver) Resolve(ctx context.Context, sender string, cmd domain.ParsedCommand) (*domain.Resolution, error) {
	if cmd.OrderReference != "" {
		return r.resolveByReference(ctx, cmd.OrderReference)
	}
	return r.resolveShortCode(ctx, sender)
}

func (r *Resolver) resolveByReference(ctx context.Context, reference string) (*domain.Resolution, error) {
	order, err := r.lookup.FindByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("lookup by reference %s: %w", reference, err)
	}

	supplier, err := r.lookup.GetSupplier(ctx, order.SupplierID)
	if err != nil {
		// The order exists without a resolvable supplier record; keep
		// processing, replies just fall back to the default language.
		r.logger.WarnContext(ctx, "Supplier record missing for referenced order",
			"order_id", order.ID, "supplier_id", order.SupplierID, "error", err)
		supplier = nil
	}

	if order.ResponseTokenExpired(r.now()) {
		return nil, fmt.Errorf("order %s: %w", order.PurchaseOrderNumber, domain.ErrResponseTokenExpired)
	}

	return &domain.Resolution{Order: order, Supplier: supplier}, nil
}

func (r *Resolver) resolveShortCode(ctx context.Context, sender string) (*domain.Resolution, error) {
	variants := PhoneVariants(sender)

	supplier, err := r.lookup.FindActiveSupplierByPhone(ctx, variants)
	if err != nil {
		return nil, fmt.Errorf("supplier lookup for %s: %w", sender, err)
	}

	order, err := r.lookup.FindMostRecentAwaitingOrder(ctx, supplier.ID)
	if err != nil {
		return nil, fmt.Errorf("pending order lookup for supplier %s: %w", supplier.ID, err)
	}

	resolution := &domain.Resolution{Order: order, Supplier: supplier}

	pending, err := r.lookup.CountAwaitingOrders(ctx, supplier.ID)
	if err != nil {
		// Advisory only; the chosen order stands.
		r.logger.WarnContext(ctx, "Failed to count pending orders for ambiguity advisory",
			"supplier_id", supplier.ID, "error", err)
	} else if pending > 1 {
		// Recency tie-break carried over from the source system. A stricter
		// mode (reject and ask for the PO number) was considered but not
		// enabled, to keep compatibility.
		resolution.AmbiguousPending = true
		resolution.PendingCount = pending
		r.logger.WarnContext(ctx, "Multiple pending orders for supplier, resolved to most recent",
			"supplier_id", supplier.ID, "pending_count", pending, "order_id", order.ID)
	}

	if order.ResponseTokenExpired(r.now()) {
		return nil, fmt.Errorf("order %s: %w", order.PurchaseOrderNumber, domain.ErrResponseTokenExpired)
	}

	return resolution, nil
}

// PhoneVariants normalizes a sender number into the formats the supplier
// directory may store: as received, with a leading +, and without it.
func PhoneVariants(phone string) []string {
	clean := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
	if clean == "" {
		return nil
	}

	variants := []string{clean}
	if strings.HasPrefix(clean, "+") {
		variants = append(variants, strings.TrimPrefix(clean, "+"))
	} else {
		variants = append(variants, "+"+clean)
	}
	return variants
}
