package domain

import "errors"

// ResolutionFailureReason is the structured reason string reported to the
// webhook caller when a command could not be matched to an order.
type ResolutionFailureReason string

const (
	FailureNoSupplierMatch ResolutionFailureReason = "no_supplier_match"
	FailureNoPendingOrder  ResolutionFailureReason = "no_pending_order"
	FailureOrderNotFound   ResolutionFailureReason = "order_not_found"
	FailureTokenExpired    ResolutionFailureReason = "token_expired"
)

// Resolution is a successful mapping of sender + command to exactly one order.
// AmbiguousPending is a non-fatal advisory: more than one order was awaiting
// a response and the most recently created one was chosen.
type Resolution struct {
	Order    *PurchaseOrder
	Supplier *Supplier

	AmbiguousPending bool
	PendingCount     int
}

// FailureReasonFor translates a resolver error into its reporting reason.
// The second return is false for errors that are not resolution failures.
func FailureReasonFor(err error) (ResolutionFailureReason, bool) {
	switch {
	case errors.Is(err, ErrSupplierNotFound):
		return FailureNoSupplierMatch, true
	case errors.Is(err, ErrNoPendingOrder):
		return FailureNoPendingOrder, true
	case errors.Is(err, ErrOrderNotFound):
		return FailureOrderNotFound, true
	case errors.Is(err, ErrResponseTokenExpired):
		return FailureTokenExpired, true
	default:
		return "", false
	}
}
