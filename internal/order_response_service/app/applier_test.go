package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/consite/procurement-sms/internal/order_response_service/domain"
)

type mockMutationRepo struct {
	mock.Mock
}

func (m *mockMutationRepo) ApplyTransition(ctx context.Context, tr *domain.OrderTransition) error {
	args := m.Called(ctx, tr)
	return args.Error(0)
}

func (m *mockMutationRepo) ApplyAcceptTransaction(ctx context.Context, tr *domain.OrderTransition, projectID uuid.UUID, amount float64, audit *domain.AuditEntry) error {
	args := m.Called(ctx, tr, projectID, amount, audit)
	return args.Error(0)
}

type mockAuditRepo struct {
	mock.Mock
}

func (m *mockAuditRepo) Record(ctx context.Context, entry *domain.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func newTestApplier(mutator *mockMutationRepo, audit *mockAuditRepo) *Applier {
	return NewApplier(mutator, audit, testLogger())
}

func resolutionFor(order *domain.PurchaseOrder) *domain.Resolution {
	return &domain.Resolution{Order: order}
}

func TestApplyIdempotentOnResolvedOrders(t *testing.T) {
	ctx := context.Background()
	for _, status := range []domain.OrderStatus{
		domain.OrderStatusAccepted,
		domain.OrderStatusRejected,
		domain.OrderStatusPartiallyResponded,
		domain.OrderStatusApproved,
	} {
		t.Run(string(status), func(t *testing.T) {
			mutator := new(mockMutationRepo)
			audit := new(mockAuditRepo)
			order := awaitingOrder(uuid.New(), time.Now())
			order.Status = status

			result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), domain.ParsedCommand{Action: domain.ActionAccept})
			require.NoError(t, err)
			assert.False(t, result.Processed)
			assert.Equal(t, status, result.NewStatus)
			assert.Equal(t, replyAlreadyResolved, result.ReplyKey)
			mutator.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything)
			mutator.AssertNotCalled(t, "ApplyAcceptTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestApplyAccept(t *testing.T) {
	ctx := context.Background()

	t.Run("commits transition, ledger and audit atomically", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := awaitingOrder(uuid.New(), time.Now())

		mutator.On("ApplyAcceptTransaction", ctx, mock.MatchedBy(func(tr *domain.OrderTransition) bool {
			return tr.OrderID == order.ID &&
				tr.NewStatus == domain.OrderStatusAccepted &&
				tr.FinancialStatus != nil && *tr.FinancialStatus == domain.FinancialStatusCommitted
		}), order.ProjectID, order.TotalCost, mock.AnythingOfType("*domain.AuditEntry")).Return(nil)

		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), domain.ParsedCommand{Action: domain.ActionAccept, RawText: "ACCEPT"})
		require.NoError(t, err)
		assert.True(t, result.Processed)
		assert.Equal(t, domain.OrderStatusAccepted, result.NewStatus)
		assert.Equal(t, replyAccepted, result.ReplyKey)
		require.Len(t, result.FollowUps, 2)
		assert.Equal(t, FollowUpPush, result.FollowUps[0].Kind)
		assert.Equal(t, "procurement.order.accepted", result.FollowUps[1].Subject)
		mutator.AssertExpectations(t)
	})

	t.Run("missing unit cost blocks the transition", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := awaitingOrder(uuid.New(), time.Now())
		order.UnitCost = 0

		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), domain.ParsedCommand{Action: domain.ActionAccept})
		require.ErrorIs(t, err, domain.ErrMissingUnitCost)
		require.NotNil(t, result)
		assert.False(t, result.Processed)
		assert.Equal(t, domain.OrderStatusSent, result.NewStatus)
		assert.Equal(t, replyMissingCost, result.ReplyKey)
		mutator.AssertNotCalled(t, "ApplyAcceptTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bulk order needs a cost on every line", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := awaitingOrder(uuid.New(), time.Now())
		order.IsBulkOrder = true
		order.Materials = []domain.OrderMaterial{
			{Name: "Cement", UnitCost: 750, QuantityOrdered: 50, ResponseStatus: domain.MaterialLinePending},
			{Name: "Rebar", UnitCost: 0, QuantityOrdered: 20, ResponseStatus: domain.MaterialLinePending},
		}

		_, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), domain.ParsedCommand{Action: domain.ActionAccept})
		require.ErrorIs(t, err, domain.ErrMissingUnitCost)
	})

	t.Run("failed transaction surfaces as an error", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := awaitingOrder(uuid.New(), time.Now())
		mutator.On("ApplyAcceptTransaction", ctx, mock.Anything, order.ProjectID, order.TotalCost, mock.Anything).
			Return(errors.New("connection reset"))

		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), domain.ParsedCommand{Action: domain.ActionAccept})
		require.Error(t, err)
		assert.Nil(t, result)
	})

	t.Run("concurrent duplicate becomes a no-op", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := awaitingOrder(uuid.New(), time.Now())
		mutator.On("ApplyAcceptTransaction", ctx, mock.Anything, order.ProjectID, order.TotalCost, mock.Anything).
			Return(domain.ErrOrderAlreadyResolved)

		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), domain.ParsedCommand{Action: domain.ActionAccept})
		require.NoError(t, err)
		assert.False(t, result.Processed)
		assert.Equal(t, replyAlreadyResolved, result.ReplyKey)
	})
}

func TestApplyReject(t *testing.T) {
	ctx := context.Background()

	t.Run("price rejection marks order retryable", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := awaitingOrder(uuid.New(), time.Now())

		mutator.On("ApplyTransition", ctx, mock.MatchedBy(func(tr *domain.OrderTransition) bool {
			return tr.NewStatus == domain.OrderStatusRejected &&
				tr.NeedsReassignment != nil && *tr.NeedsReassignment &&
				tr.RejectionReason != nil && *tr.RejectionReason == domain.RejectionReasonPrice
		})).Return(nil)
		audit.On("Record", ctx, mock.AnythingOfType("*domain.AuditEntry")).Return(nil)

		cmd := domain.ParsedCommand{
			Action:          domain.ActionReject,
			RejectionReason: domain.RejectionReasonPrice,
			Confidence:      1.0,
			RawText:         "REJECT PRICE TOO HIGH",
		}
		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), cmd)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		require.NotNil(t, result.Assessment)
		assert.True(t, result.Assessment.Retryable)
		assert.Equal(t, domain.PriorityHigh, result.Assessment.Priority)
		mutator.AssertExpectations(t)
		audit.AssertExpectations(t)
	})

	t.Run("quality rejection is not retryable", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := awaitingOrder(uuid.New(), time.Now())

		mutator.On("ApplyTransition", ctx, mock.MatchedBy(func(tr *domain.OrderTransition) bool {
			return tr.NeedsReassignment != nil && !*tr.NeedsReassignment
		})).Return(nil)
		audit.On("Record", ctx, mock.Anything).Return(nil)

		cmd := domain.ParsedCommand{Action: domain.ActionReject, RejectionReason: domain.RejectionReasonQuality, Confidence: 0.5}
		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), cmd)
		require.NoError(t, err)
		assert.False(t, result.Assessment.Retryable)
	})

	t.Run("audit failure does not unwind the rejection", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := awaitingOrder(uuid.New(), time.Now())
		mutator.On("ApplyTransition", ctx, mock.Anything).Return(nil)
		audit.On("Record", ctx, mock.Anything).Return(errors.New("audit table unavailable"))

		cmd := domain.ParsedCommand{Action: domain.ActionReject, RejectionReason: domain.RejectionReasonOther}
		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), cmd)
		require.NoError(t, err)
		assert.True(t, result.Processed)
	})
}

func TestApplyModify(t *testing.T) {
	ctx := context.Background()

	t.Run("merges deltas and recomputes total", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := awaitingOrder(uuid.New(), time.Now())
		order.UnitCost = 400
		order.QuantityOrdered = 10
		order.TotalCost = 4000

		newCost := 5000.0
		mutator.On("ApplyTransition", ctx, mock.MatchedBy(func(tr *domain.OrderTransition) bool {
			return tr.NewStatus == domain.OrderStatusModified &&
				tr.UnitCost != nil && *tr.UnitCost == 5000 &&
				tr.QuantityOrdered != nil && *tr.QuantityOrdered == 10 &&
				tr.TotalCost != nil && *tr.TotalCost == 50000 &&
				tr.ModificationApproved != nil && !*tr.ModificationApproved
		})).Return(nil)
		audit.On("Record", ctx, mock.Anything).Return(nil)

		cmd := domain.ParsedCommand{
			Action:       domain.ActionModify,
			Modification: &domain.ModificationDetails{UnitCost: &newCost},
			RawText:      "MODIFY PRICE 5000",
		}
		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), cmd)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		assert.Equal(t, domain.OrderStatusModified, result.NewStatus)
		assert.Equal(t, replyModified, result.ReplyKey)
		mutator.AssertExpectations(t)
	})

	t.Run("delivery date delta carries through", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := awaitingOrder(uuid.New(), time.Now())

		date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
		mutator.On("ApplyTransition", ctx, mock.MatchedBy(func(tr *domain.OrderTransition) bool {
			return tr.DeliveryDate != nil && tr.DeliveryDate.Equal(date)
		})).Return(nil)
		audit.On("Record", ctx, mock.Anything).Return(nil)

		cmd := domain.ParsedCommand{
			Action:       domain.ActionModify,
			Modification: &domain.ModificationDetails{DeliveryDate: &date},
		}
		_, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), cmd)
		require.NoError(t, err)
		mutator.AssertExpectations(t)
	})
}

func TestApplyPartial(t *testing.T) {
	ctx := context.Background()

	bulkOrder := func() *domain.PurchaseOrder {
		order := awaitingOrder(uuid.New(), time.Now())
		order.IsBulkOrder = true
		order.SupportsPartialResponse = true
		order.Materials = []domain.OrderMaterial{
			{Name: "Cement", UnitCost: 750, QuantityOrdered: 50, ResponseStatus: domain.MaterialLinePending},
			{Name: "Rebar", UnitCost: 1200, QuantityOrdered: 20, ResponseStatus: domain.MaterialLinePending},
			{Name: "Sand", UnitCost: 300, QuantityOrdered: 10, ResponseStatus: domain.MaterialLinePending},
		}
		return order
	}

	t.Run("mixed responses record per line without touching the ledger", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := bulkOrder()

		mutator.On("ApplyTransition", ctx, mock.MatchedBy(func(tr *domain.OrderTransition) bool {
			return tr.NewStatus == domain.OrderStatusPartiallyResponded &&
				len(tr.Materials) == 3 &&
				tr.Materials[0].ResponseStatus == domain.MaterialLineAccepted &&
				tr.Materials[1].ResponseStatus == domain.MaterialLineRejected &&
				tr.Materials[2].ResponseStatus == domain.MaterialLineAccepted
		})).Return(nil)
		audit.On("Record", ctx, mock.Anything).Return(nil)

		cmd := domain.ParsedCommand{
			Action: domain.ActionPartial,
			MaterialResponses: []domain.MaterialResponse{
				{TargetIndices: []int{1, 3}, Action: domain.ActionAccept},
				{TargetIndices: []int{2}, Action: domain.ActionReject},
			},
		}
		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), cmd)
		require.NoError(t, err)
		assert.True(t, result.Processed)
		assert.Equal(t, domain.OrderStatusPartiallyResponded, result.NewStatus)
		assert.Equal(t, replyPartial, result.ReplyKey)
		mutator.AssertNotCalled(t, "ApplyAcceptTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("out of range indices are ignored", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := bulkOrder()

		mutator.On("ApplyTransition", ctx, mock.MatchedBy(func(tr *domain.OrderTransition) bool {
			return tr.Materials[0].ResponseStatus == domain.MaterialLineAccepted &&
				tr.Materials[1].ResponseStatus == domain.MaterialLinePending &&
				tr.Materials[2].ResponseStatus == domain.MaterialLinePending
		})).Return(nil)
		audit.On("Record", ctx, mock.Anything).Return(nil)

		cmd := domain.ParsedCommand{
			Action: domain.ActionPartial,
			MaterialResponses: []domain.MaterialResponse{
				{TargetIndices: []int{1, 7, 0}, Action: domain.ActionAccept},
			},
		}
		_, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), cmd)
		require.NoError(t, err)
		mutator.AssertExpectations(t)
	})

	t.Run("unanimous accept commits the ledger", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := bulkOrder()

		mutator.On("ApplyAcceptTransaction", ctx, mock.MatchedBy(func(tr *domain.OrderTransition) bool {
			return tr.NewStatus == domain.OrderStatusAccepted && len(tr.Materials) == 3
		}), order.ProjectID, order.TotalCost, mock.Anything).Return(nil)

		cmd := domain.ParsedCommand{
			Action: domain.ActionPartial,
			MaterialResponses: []domain.MaterialResponse{
				{TargetAll: true, Action: domain.ActionAccept},
			},
		}
		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), cmd)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusAccepted, result.NewStatus)
		assert.Equal(t, replyAccepted, result.ReplyKey)
		mutator.AssertExpectations(t)
	})

	t.Run("unanimous reject resolves as rejection", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := bulkOrder()

		mutator.On("ApplyTransition", ctx, mock.MatchedBy(func(tr *domain.OrderTransition) bool {
			return tr.NewStatus == domain.OrderStatusRejected
		})).Return(nil)
		audit.On("Record", ctx, mock.Anything).Return(nil)

		cmd := domain.ParsedCommand{
			Action: domain.ActionPartial,
			MaterialResponses: []domain.MaterialResponse{
				{TargetAll: true, Action: domain.ActionReject},
			},
		}
		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), cmd)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusRejected, result.NewStatus)
		assert.Equal(t, replyRejected, result.ReplyKey)
	})

	t.Run("partial on a non-bulk order asks for a whole-order reply", func(t *testing.T) {
		mutator := new(mockMutationRepo)
		audit := new(mockAuditRepo)
		order := awaitingOrder(uuid.New(), time.Now())

		cmd := domain.ParsedCommand{
			Action: domain.ActionPartial,
			MaterialResponses: []domain.MaterialResponse{
				{TargetIndices: []int{1}, Action: domain.ActionAccept},
			},
		}
		result, err := newTestApplier(mutator, audit).Apply(ctx, resolutionFor(order), cmd)
		require.NoError(t, err)
		assert.False(t, result.Processed)
		assert.Equal(t, replyPartialUnsupported, result.ReplyKey)
		mutator.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything)
	})
}
