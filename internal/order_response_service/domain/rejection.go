package domain

// RejectionReason is the coarse taxonomy a supplier's rejection text is
// classified into.
type RejectionReason string

const (
	RejectionReasonPrice       RejectionReason = "price"
	RejectionReasonDelay       RejectionReason = "delay"
	RejectionReasonUnavailable RejectionReason = "unavailable"
	RejectionReasonQuality     RejectionReason = "quality"
	RejectionReasonOther       RejectionReason = "other"
)

// ReassignmentPriority ranks how urgently a rejected order should be put in
// front of a PM for reassignment.
type ReassignmentPriority string

const (
	PriorityLow    ReassignmentPriority = "low"
	PriorityMedium ReassignmentPriority = "medium"
	PriorityHigh   ReassignmentPriority = "high"
)

// RetryabilityAssessment is derived from the rejection classification and
// tells the PM whether re-sourcing the same request is worthwhile.
type RetryabilityAssessment struct {
	Retryable      bool                 `json:"retryable"`
	Recommendation string               `json:"recommendation"`
	Priority       ReassignmentPriority `json:"priority"`
	Confidence     float64              `json:"confidence"`
}

// AssessRetryability maps a classified rejection onto a reassignment
// recommendation. Price and delay rejections are negotiable, so the same
// supplier set stays in play; unavailability means try other suppliers;
// quality complaints are escalated rather than retried automatically.
func AssessRetryability(reason RejectionReason, subcategory string, confidence float64) RetryabilityAssessment {
	switch reason {
	case RejectionReasonPrice:
		return RetryabilityAssessment{
			Retryable:      true,
			Recommendation: "renegotiate price or request quotes from alternative suppliers",
			Priority:       PriorityHigh,
			Confidence:     confidence,
		}
	case RejectionReasonDelay:
		return RetryabilityAssessment{
			Retryable:      true,
			Recommendation: "confirm an acceptable delivery window or reassign to a supplier with stock",
			Priority:       PriorityMedium,
			Confidence:     confidence,
		}
	case RejectionReasonUnavailable:
		return RetryabilityAssessment{
			Retryable:      true,
			Recommendation: "reassign to an alternative supplier; material not stocked by this one",
			Priority:       PriorityHigh,
			Confidence:     confidence,
		}
	case RejectionReasonQuality:
		return RetryabilityAssessment{
			Retryable:      false,
			Recommendation: "review specification with the supplier before re-sourcing",
			Priority:       PriorityMedium,
			Confidence:     confidence,
		}
	default:
		return RetryabilityAssessment{
			Retryable:      false,
			Recommendation: "manual review required; rejection reason unclassified",
			Priority:       PriorityLow,
			Confidence:     confidence,
		}
	}
}
