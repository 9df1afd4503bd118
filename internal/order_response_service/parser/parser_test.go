package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consite/procurement-sms/internal/order_response_service/domain"
)

func TestParse_Verbs(t *testing.T) {
	testCases := []struct {
		name           string
		text           string
		expectedAction domain.Action
		expectedRef    string
		expectedShort  bool
	}{
		{"bare accept", "ACCEPT", domain.ActionAccept, "", true},
		{"lowercase accept", "accept", domain.ActionAccept, "", true},
		{"accept with reference", "ACCEPT PO-002", domain.ActionAccept, "PO-002", false},
		{"reference without dash", "ACCEPT PO002", domain.ActionAccept, "PO-002", false},
		{"reference with space", "ACCEPT PO 002", domain.ActionAccept, "PO-002", false},
		{"swahili accept", "KUBALI", domain.ActionAccept, "", true},
		{"ok as accept", "ok thanks", domain.ActionAccept, "", true},
		{"reject", "REJECT", domain.ActionReject, "", true},
		{"swahili reject", "KATAA PO-007", domain.ActionReject, "PO-007", false},
		{"modify", "MODIFY PO-001 price 5000", domain.ActionModify, "PO-001", false},
		{"swahili modify", "BADILISHA bei 2000", domain.ActionModify, "", true},
		{"trailing noise kept valid", "ACCEPT and deliver to gate 4 please", domain.ActionAccept, "", true},
		{"verb inside word does not match", "UNACCEPTABLE", domain.ActionUnknown, "", false},
		{"gibberish", "XYZ", domain.ActionUnknown, "", false},
		{"empty", "   ", domain.ActionUnknown, "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := Parse(tc.text)
			assert.Equal(t, tc.expectedAction, cmd.Action)
			assert.Equal(t, tc.expectedRef, cmd.OrderReference)
			assert.Equal(t, tc.expectedShort, cmd.IsShortCode)
		})
	}
}

func TestParse_HelpShortCircuits(t *testing.T) {
	for _, text := range []string{"HELP", "help", "INFO", "?", "what do I do?", "MSAADA", "ACCEPT? not sure"} {
		cmd := Parse(text)
		assert.Equal(t, domain.ActionHelp, cmd.Action, "text: %q", text)
	}
}

func TestParse_RejectionTaxonomy(t *testing.T) {
	testCases := []struct {
		name               string
		text               string
		expectedReason     domain.RejectionReason
		expectedSubcat     string
		expectedConfidence float64
	}{
		{"exact price phrase", "REJECT price too high", domain.RejectionReasonPrice, "too_high", 1.0},
		{"price keyword only", "REJECT the price", domain.RejectionReasonPrice, "", 0.5},
		{"price keyword refined", "REJECT price expensive", domain.RejectionReasonPrice, "too_high", 0.5},
		{"delay keyword", "REJECT delay expected", domain.RejectionReasonDelay, "", 0.5},
		{"exact stock phrase", "REJECT out of stock", domain.RejectionReasonUnavailable, "out_of_stock", 1.0},
		{"quality keyword", "REJECT quality concerns", domain.RejectionReasonQuality, "", 0.5},
		{"no keyword falls to other", "REJECT just because", domain.RejectionReasonOther, "", 0},
		{"swahili expensive", "KATAA GHALI", domain.RejectionReasonPrice, "too_high", 0.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := Parse(tc.text)
			require.Equal(t, domain.ActionReject, cmd.Action)
			assert.Equal(t, tc.expectedReason, cmd.RejectionReason)
			assert.Equal(t, tc.expectedSubcat, cmd.RejectionSubcategory)
			assert.InDelta(t, tc.expectedConfidence, cmd.Confidence, 0.001)
		})
	}
}

func TestParse_ModificationDeltas(t *testing.T) {
	t.Run("price only", func(t *testing.T) {
		cmd := Parse("MODIFY PO-001 price 5000")
		require.Equal(t, domain.ActionModify, cmd.Action)
		require.NotNil(t, cmd.Modification)
		require.NotNil(t, cmd.Modification.UnitCost)
		assert.Equal(t, 5000.0, *cmd.Modification.UnitCost)
		assert.Nil(t, cmd.Modification.Quantity)
		assert.Nil(t, cmd.Modification.DeliveryDate)
	})

	t.Run("thousands separator", func(t *testing.T) {
		cmd := Parse("MODIFY price 12,500.50")
		require.NotNil(t, cmd.Modification)
		require.NotNil(t, cmd.Modification.UnitCost)
		assert.Equal(t, 12500.50, *cmd.Modification.UnitCost)
	})

	t.Run("quantity and price", func(t *testing.T) {
		cmd := Parse("CHANGE qty 40 price 150")
		require.NotNil(t, cmd.Modification)
		require.NotNil(t, cmd.Modification.Quantity)
		require.NotNil(t, cmd.Modification.UnitCost)
		assert.Equal(t, 40.0, *cmd.Modification.Quantity)
		assert.Equal(t, 150.0, *cmd.Modification.UnitCost)
	})

	t.Run("delivery date", func(t *testing.T) {
		cmd := Parse("MODIFY delivery by 2024-02-15")
		require.NotNil(t, cmd.Modification)
		require.NotNil(t, cmd.Modification.DeliveryDate)
		assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), *cmd.Modification.DeliveryDate)
	})

	t.Run("free text becomes notes", func(t *testing.T) {
		cmd := Parse("MODIFY price 5000 need advance payment")
		require.NotNil(t, cmd.Modification)
		assert.Equal(t, "NEED ADVANCE PAYMENT", cmd.Modification.Notes)
	})

	t.Run("no delta at all", func(t *testing.T) {
		cmd := Parse("MODIFY")
		assert.Equal(t, domain.ActionModify, cmd.Action)
		assert.Nil(t, cmd.Modification)
	})
}

func TestParse_BulkResponses(t *testing.T) {
	t.Run("index list round trip", func(t *testing.T) {
		for _, tc := range []struct {
			text    string
			action  domain.Action
			indices []int
		}{
			{"ACCEPT 1,3,5", domain.ActionAccept, []int{1, 3, 5}},
			{"REJECT 2", domain.ActionReject, []int{2}},
			{"ACCEPT 1", domain.ActionAccept, []int{1}},
		} {
			cmd := Parse(tc.text)
			require.Equal(t, domain.ActionPartial, cmd.Action, "text: %q", tc.text)
			require.Len(t, cmd.MaterialResponses, 1)
			assert.Equal(t, tc.action, cmd.MaterialResponses[0].Action)
			assert.Equal(t, tc.indices, cmd.MaterialResponses[0].TargetIndices)
			assert.False(t, cmd.MaterialResponses[0].TargetAll)
		}
	})

	t.Run("all target", func(t *testing.T) {
		cmd := Parse("REJECT ALL")
		require.Equal(t, domain.ActionPartial, cmd.Action)
		require.Len(t, cmd.MaterialResponses, 1)
		assert.True(t, cmd.MaterialResponses[0].TargetAll)
		assert.Equal(t, domain.ActionReject, cmd.MaterialResponses[0].Action)
	})

	t.Run("mixed sub-actions", func(t *testing.T) {
		cmd := Parse("ACCEPT 1,3 REJECT 2")
		require.Equal(t, domain.ActionPartial, cmd.Action)
		require.Len(t, cmd.MaterialResponses, 2)
		assert.Equal(t, domain.ActionAccept, cmd.MaterialResponses[0].Action)
		assert.Equal(t, []int{1, 3}, cmd.MaterialResponses[0].TargetIndices)
		assert.Equal(t, domain.ActionReject, cmd.MaterialResponses[1].Action)
		assert.Equal(t, []int{2}, cmd.MaterialResponses[1].TargetIndices)
	})

	t.Run("thousands-shaped number is not an index list", func(t *testing.T) {
		cmd := Parse("ACCEPT 5,000")
		assert.Equal(t, domain.ActionAccept, cmd.Action)
		assert.Empty(t, cmd.MaterialResponses)
	})

	t.Run("bulk grammar with reference", func(t *testing.T) {
		cmd := Parse("ACCEPT 1,2 PO-009")
		require.Equal(t, domain.ActionPartial, cmd.Action)
		assert.Equal(t, "PO-009", cmd.OrderReference)
		assert.False(t, cmd.IsShortCode)
	})
}

func TestParse_UnknownHasNoOtherFields(t *testing.T) {
	cmd := Parse("lorem ipsum dolor")
	assert.Equal(t, domain.ActionUnknown, cmd.Action)
	assert.Empty(t, cmd.OrderReference)
	assert.False(t, cmd.IsShortCode)
	assert.Nil(t, cmd.Modification)
	assert.Empty(t, cmd.MaterialResponses)
}
