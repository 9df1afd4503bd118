package domain

import "time"

// Action is the intent extracted from a supplier's SMS reply.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionModify  Action = "modify"
	ActionPartial Action = "partial"
	ActionHelp    Action = "help"
	ActionUnknown Action = "unknown"
)

// ModificationDetails carries the deltas a supplier asked for on a modify
// command. Nil fields mean "no change requested", which callers must keep
// distinct from an explicit change to zero.
type ModificationDetails struct {
	UnitCost     *float64   `json:"unit_cost,omitempty"`
	Quantity     *float64   `json:"quantity,omitempty"`
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// Empty reports whether no delta at all was extracted.
func (m *ModificationDetails) Empty() bool {
	return m == nil || (m.UnitCost == nil && m.Quantity == nil && m.DeliveryDate == nil && m.Notes == "")
}

// MaterialResponse targets a subset of a bulk order's material lines with a
// single sub-action. TargetAll covers every line; otherwise TargetIndices
// are 1-based line numbers as typed by the supplier.
type MaterialResponse struct {
	TargetAll     bool   `json:"target_all"`
	TargetIndices []int  `json:"target_indices,omitempty"`
	Action        Action `json:"action"`
	Note          string `json:"note,omitempty"`
}

// ParsedCommand is the structured result of parsing a raw SMS body.
// Action == ActionUnknown means no other field is meaningful.
type ParsedCommand struct {
	Action         Action `json:"action"`
	OrderReference string `json:"order_reference,omitempty"`
	// IsShortCode is set when no explicit order reference was given, meaning
	// "the supplier's most recent pending order".
	IsShortCode bool `json:"is_short_code"`

	RejectionReason      RejectionReason `json:"rejection_reason,omitempty"`
	RejectionSubcategory string          `json:"rejection_subcategory,omitempty"`
	// Confidence reflects how unambiguous the keyword match was:
	// 1.0 for an exact phrase, 0.5 for a partial match.
	Confidence float64 `json:"confidence,omitempty"`

	Modification      *ModificationDetails `json:"modification,omitempty"`
	MaterialResponses []MaterialResponse   `json:"material_responses,omitempty"`

	// RawText is the normalized message the command was parsed from, kept
	// for audit records.
	RawText string `json:"raw_text"`
}
