package parser

import "github.com/consite/procurement-sms/internal/order_response_service/domain"

// Command verb vocabularies. Matching is whole-token only, so verbs inside
// unrelated words never trigger. English and Swahili are the two grammars
// suppliers reply in.
var (
	helpKeywords = tokenSet("HELP", "INFO", "?", "MSAADA", "USAIDIZI")

	acceptVerbs = tokenSet(
		"ACCEPT", "ACCEPTED", "YES", "OK", "OKAY", "CONFIRM", "CONFIRMED", "AGREE",
		"KUBALI", "NAKUBALI", "SAWA",
	)

	rejectVerbs = tokenSet(
		"REJECT", "REJECTED", "NO", "DECLINE", "DECLINED", "CANCEL", "CANCELLED",
		"KATAA", "NAKATAA",
	)

	modifyVerbs = tokenSet(
		"MODIFY", "CHANGE", "UPDATE", "AMEND",
		"BADILISHA", "BADILI",
	)
)

// rejectionPhrase is an exact multi-word phrase carrying full confidence.
type rejectionPhrase struct {
	phrase      string
	reason      domain.RejectionReason
	subcategory string
}

// rejectionKeyword is a single token giving a partial-confidence match.
type rejectionKeyword struct {
	token       string
	reason      domain.RejectionReason
	subcategory string
}

// Exact phrases are checked before single keywords; first hit wins.
var rejectionPhrases = []rejectionPhrase{
	{"PRICE TOO HIGH", domain.RejectionReasonPrice, "too_high"},
	{"TOO EXPENSIVE", domain.RejectionReasonPrice, "too_high"},
	{"PRICE INCREASED", domain.RejectionReasonPrice, "price_increase"},
	{"PRICE HAS GONE UP", domain.RejectionReasonPrice, "price_increase"},
	{"BEI GHALI", domain.RejectionReasonPrice, "too_high"},
	{"CANNOT DELIVER ON TIME", domain.RejectionReasonDelay, "delivery_delay"},
	{"DELIVERY DELAYED", domain.RejectionReasonDelay, "delivery_delay"},
	{"OUT OF STOCK", domain.RejectionReasonUnavailable, "out_of_stock"},
	{"NOT AVAILABLE", domain.RejectionReasonUnavailable, "out_of_stock"},
	{"NO LONGER STOCKED", domain.RejectionReasonUnavailable, "discontinued"},
	{"WRONG SPECIFICATION", domain.RejectionReasonQuality, "spec_mismatch"},
}

var rejectionKeywords = []rejectionKeyword{
	{"PRICE", domain.RejectionReasonPrice, ""},
	{"EXPENSIVE", domain.RejectionReasonPrice, "too_high"},
	{"COST", domain.RejectionReasonPrice, ""},
	{"GHALI", domain.RejectionReasonPrice, "too_high"},
	{"BEI", domain.RejectionReasonPrice, ""},
	{"DELAY", domain.RejectionReasonDelay, ""},
	{"DELAYED", domain.RejectionReasonDelay, "delivery_delay"},
	{"LATE", domain.RejectionReasonDelay, "delivery_delay"},
	{"CHELEWA", domain.RejectionReasonDelay, ""},
	{"UNAVAILABLE", domain.RejectionReasonUnavailable, "out_of_stock"},
	{"STOCK", domain.RejectionReasonUnavailable, "out_of_stock"},
	{"FINISHED", domain.RejectionReasonUnavailable, "out_of_stock"},
	{"DISCONTINUED", domain.RejectionReasonUnavailable, "discontinued"},
	{"HAKUNA", domain.RejectionReasonUnavailable, "out_of_stock"},
	{"HAIPATIKANI", domain.RejectionReasonUnavailable, "out_of_stock"},
	{"QUALITY", domain.RejectionReasonQuality, ""},
	{"DEFECTIVE", domain.RejectionReasonQuality, "defective"},
	{"SUBSTANDARD", domain.RejectionReasonQuality, "defective"},
	{"SPECIFICATION", domain.RejectionReasonQuality, "spec_mismatch"},
	{"UBORA", domain.RejectionReasonQuality, ""},
}

// Modification delta keywords. A numeric token adjacent to one of these is
// read as the corresponding field.
var (
	priceKeywords    = tokenSet("PRICE", "COST", "RATE", "UNIT", "BEI", "@")
	quantityKeywords = tokenSet("QTY", "QUANTITY", "UNITS", "PIECES", "PCS", "BAGS", "IDADI")
	dateKeywords     = tokenSet("DATE", "DELIVERY", "DELIVER", "BY", "ON", "TAREHE")
)

func tokenSet(tokens ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}
