// Package parser turns free-text supplier SMS replies into structured
// commands. Parsing is pure and total: malformed input degrades to
// ActionUnknown, never to an error.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/consite/procurement-sms/internal/order_response_service/domain"
)

var (
	orderRefPattern = regexp.MustCompile(`\bPO[- ]?(\d+)\b`)
	// A 1-based material index list like "1,3,5". A token shaped like a
	// thousands-separated number ("5,000") is not an index list.
	indexListPattern = regexp.MustCompile(`^\d+(,\d+)*$`)
	thousandsPattern = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
	plainNumber      = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
}

// Parse extracts a structured command from a raw SMS body.
func Parse(rawText string) domain.ParsedCommand {
	normalized := normalize(rawText)
	cmd := domain.ParsedCommand{Action: domain.ActionUnknown, RawText: normalized}
	if normalized == "" {
		return cmd
	}

	// Help short-circuits all other parsing.
	if isHelpRequest(normalized) {
		cmd.Action = domain.ActionHelp
		return cmd
	}

	// Pull the order reference out of the token stream before verb parsing
	// so "PO-001" never shadows a delta value or index list.
	rest := normalized
	if m := orderRefPattern.FindStringSubmatch(normalized); m != nil {
		cmd.OrderReference = "PO-" + m[1]
		rest = strings.Join(strings.Fields(orderRefPattern.ReplaceAllString(normalized, " ")), " ")
	}
	tokens := strings.Fields(rest)

	// Bulk grammar: one or more verbs each followed by ALL or an index list,
	// e.g. "ACCEPT 1,3 REJECT 2" or "REJECT ALL".
	if responses := parseMaterialResponses(tokens); len(responses) > 0 {
		cmd.Action = domain.ActionPartial
		cmd.MaterialResponses = responses
		cmd.IsShortCode = cmd.OrderReference == ""
		return cmd
	}

	verbIdx, action := findVerb(tokens)
	if action == domain.ActionUnknown {
		return cmd
	}

	cmd.Action = action
	cmd.IsShortCode = cmd.OrderReference == ""

	switch action {
	case domain.ActionReject:
		cmd.RejectionReason, cmd.RejectionSubcategory, cmd.Confidence = classifyRejection(rest, tokens)
	case domain.ActionModify:
		cmd.Modification = parseModification(tokens, verbIdx)
	}

	return cmd
}

func normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer("=", " ", ":", " ", ";", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func isHelpRequest(normalized string) bool {
	if strings.Contains(normalized, "?") {
		return true
	}
	for _, tok := range strings.Fields(normalized) {
		if _, ok := helpKeywords[tok]; ok {
			return true
		}
	}
	return false
}

// findVerb returns the first token that is a recognized command verb.
// Matching is whole-token, so verbs embedded in other words never count.
func findVerb(tokens []string) (int, domain.Action) {
	for i, tok := range tokens {
		switch {
		case inSet(acceptVerbs, tok):
			return i, domain.ActionAccept
		case inSet(rejectVerbs, tok):
			return i, domain.ActionReject
		case inSet(modifyVerbs, tok):
			return i, domain.ActionModify
		}
	}
	return -1, domain.ActionUnknown
}

// parseMaterialResponses scans for the bulk sub-action grammar. It returns
// nil unless at least one verb carries an explicit target, so a bare
// "ACCEPT" stays on the whole-order path.
func parseMaterialResponses(tokens []string) []domain.MaterialResponse {
	var responses []domain.MaterialResponse
	for i := 0; i < len(tokens); i++ {
		var action domain.Action
		switch {
		case inSet(acceptVerbs, tokens[i]):
			action = domain.ActionAccept
		case inSet(rejectVerbs, tokens[i]):
			action = domain.ActionReject
		default:
			continue
		}
		if i+1 >= len(tokens) {
			continue
		}
		target := tokens[i+1]
		switch {
		case target == "ALL":
			responses = append(responses, domain.MaterialResponse{TargetAll: true, Action: action})
			i++
		case indexListPattern.MatchString(target) && !thousandsPattern.MatchString(target):
			indices := parseIndexList(target)
			if len(indices) == 0 {
				continue
			}
			responses = append(responses, domain.MaterialResponse{TargetIndices: indices, Action: action})
			i++
		}
	}
	return responses
}

func parseIndexList(tok string) []int {
	parts := strings.Split(tok, ",")
	indices := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil
		}
		indices = append(indices, n)
	}
	return indices
}

// classifyRejection matches the reason taxonomy. Exact phrases score 1.0,
// single keywords 0.5; the first phrase hit wins. A keyword match without a
// subcategory is refined by any same-reason keyword that carries one.
func classifyRejection(text string, tokens []string) (domain.RejectionReason, string, float64) {
	for _, p := range rejectionPhrases {
		if strings.Contains(text, p.phrase) {
			return p.reason, p.subcategory, 1.0
		}
	}

	for _, tok := range tokens {
		for _, kw := range rejectionKeywords {
			if tok != kw.token {
				continue
			}
			subcategory := kw.subcategory
			if subcategory == "" {
				subcategory = refineSubcategory(kw.reason, tokens)
			}
			return kw.reason, subcategory, 0.5
		}
	}

	return domain.RejectionReasonOther, "", 0
}

func refineSubcategory(reason domain.RejectionReason, tokens []string) string {
	for _, tok := range tokens {
		for _, kw := range rejectionKeywords {
			if kw.reason == reason && kw.subcategory != "" && tok == kw.token {
				return kw.subcategory
			}
		}
	}
	return ""
}

// parseModification extracts structured deltas from a modify command. Fields
// not present stay nil so callers can distinguish "no change requested" from
// "change to zero". Leftover words become the notes field.
func parseModification(tokens []string, verbIdx int) *domain.ModificationDetails {
	mod := &domain.ModificationDetails{}
	consumed := make([]bool, len(tokens))
	consumed[verbIdx] = true

	for i, tok := range tokens {
		if consumed[i] {
			continue
		}
		switch {
		case inSet(priceKeywords, tok):
			if v, j, ok := numberNear(tokens, consumed, i); ok {
				mod.UnitCost = &v
				consumed[i], consumed[j] = true, true
			}
		case inSet(quantityKeywords, tok):
			if v, j, ok := numberNear(tokens, consumed, i); ok {
				mod.Quantity = &v
				consumed[i], consumed[j] = true, true
			}
		}
	}

	for i, tok := range tokens {
		if consumed[i] {
			continue
		}
		if d, ok := parseDate(tok); ok {
			mod.DeliveryDate = &d
			consumed[i] = true
			// Swallow the adjacent date keyword ("BY 2024-02-01").
			if i > 0 && !consumed[i-1] && inSet(dateKeywords, tokens[i-1]) {
				consumed[i-1] = true
			}
		}
	}

	var notes []string
	for i, tok := range tokens {
		if !consumed[i] {
			notes = append(notes, tok)
		}
	}
	mod.Notes = strings.Join(notes, " ")

	if mod.Empty() {
		return nil
	}
	return mod
}

// numberNear looks for a numeric value immediately after, then immediately
// before, the keyword at index i.
func numberNear(tokens []string, consumed []bool, i int) (float64, int, bool) {
	if i+1 < len(tokens) && !consumed[i+1] {
		if v, ok := parseNumber(tokens[i+1]); ok {
			return v, i + 1, true
		}
	}
	if i > 0 && !consumed[i-1] {
		if v, ok := parseNumber(tokens[i-1]); ok {
			return v, i - 1, true
		}
	}
	return 0, 0, false
}

// parseNumber accepts plain and thousands-separated decimal tokens.
func parseNumber(tok string) (float64, bool) {
	if !plainNumber.MatchString(tok) && !thousandsPattern.MatchString(tok) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseDate(tok string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, tok); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func inSet(set map[string]struct{}, tok string) bool {
	_, ok := set[tok]
	return ok
}
