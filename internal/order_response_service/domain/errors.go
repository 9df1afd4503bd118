package domain

import "errors"

var (
	// ErrOrderNotFound indicates an explicit order reference matched nothing.
	ErrOrderNotFound = errors.New("purchase order not found")
	// ErrSupplierNotFound indicates no active supplier matched the sender's phone.
	ErrSupplierNotFound = errors.New("no active supplier matches sender phone")
	// ErrNoPendingOrder indicates the supplier has no order awaiting a response.
	ErrNoPendingOrder = errors.New("supplier has no order awaiting response")
	// ErrResponseTokenExpired indicates the reply window for the resolved order has closed.
	ErrResponseTokenExpired = errors.New("response token expired")
	// ErrMissingUnitCost blocks an accept on an order without complete cost data.
	ErrMissingUnitCost = errors.New("order is missing unit cost data")
	// ErrOrderAlreadyResolved marks the idempotent no-op path: the order left
	// the awaiting-response states before this command arrived.
	ErrOrderAlreadyResolved = errors.New("order already resolved")
	// ErrCommunicationNotFound indicates a delivery report referenced an
	// unknown provider message id.
	ErrCommunicationNotFound = errors.New("communication not found")
)
