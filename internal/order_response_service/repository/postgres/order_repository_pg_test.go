package postgres

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consite/procurement-sms/internal/order_response_service/domain"
)

func TestBuildTransitionUpdate(t *testing.T) {
	orderID := uuid.New()

	t.Run("minimal transition updates only status fields", func(t *testing.T) {
		tr := &domain.OrderTransition{
			OrderID:     orderID,
			NewStatus:   domain.OrderStatusRejected,
			RespondedAt: time.Now(),
		}
		query, args, err := buildTransitionUpdate(tr)
		require.NoError(t, err)

		assert.Contains(t, query, "UPDATE purchase_orders SET")
		assert.Contains(t, query, "status = $1")
		assert.Contains(t, query, "responded_at = $2")
		assert.Contains(t, query, "status = ANY('{order_sent,order_modified}')")
		assert.NotContains(t, query, "unit_cost")
		assert.NotContains(t, query, "financial_status")
		// status, responded_at, updated_at, id
		assert.Len(t, args, 4)
		assert.Equal(t, orderID, args[len(args)-1])
	})

	t.Run("modify transition carries merged fields", func(t *testing.T) {
		unitCost := 5000.0
		quantity := 10.0
		total := 50000.0
		notApproved := false
		tr := &domain.OrderTransition{
			OrderID:               orderID,
			NewStatus:             domain.OrderStatusModified,
			UnitCost:              &unitCost,
			QuantityOrdered:       &quantity,
			TotalCost:             &total,
			SupplierModifications: &domain.ModificationDetails{UnitCost: &unitCost},
			ModificationApproved:  &notApproved,
			RespondedAt:           time.Now(),
		}
		query, args, err := buildTransitionUpdate(tr)
		require.NoError(t, err)

		for _, col := range []string{"unit_cost", "quantity_ordered", "total_cost", "supplier_modifications", "modification_approved"} {
			assert.Contains(t, query, col)
		}
		assert.Equal(t, orderID, args[len(args)-1])
		// Placeholders must be consecutive and match the arg count.
		assert.Contains(t, query, "WHERE id = $"+strconv.Itoa(len(args)))
	})

	t.Run("material lines marshal to json", func(t *testing.T) {
		tr := &domain.OrderTransition{
			OrderID:   orderID,
			NewStatus: domain.OrderStatusPartiallyResponded,
			Materials: []domain.OrderMaterial{
				{Name: "Cement", UnitCost: 750, QuantityOrdered: 50, ResponseStatus: domain.MaterialLineAccepted},
			},
			RespondedAt: time.Now(),
		}
		query, args, err := buildTransitionUpdate(tr)
		require.NoError(t, err)
		assert.Contains(t, query, "materials = $")

		var matArg []byte
		for _, a := range args {
			if b, ok := a.([]byte); ok {
				matArg = b
			}
		}
		require.NotNil(t, matArg)
		assert.True(t, strings.Contains(string(matArg), `"Cement"`))
	})
}
