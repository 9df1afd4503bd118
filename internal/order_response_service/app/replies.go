package app

import "fmt"

// replyKey selects one outbound SMS template. Every processing path except
// delivery reports replies with exactly one of these.
type replyKey string

const (
	replyHelp               replyKey = "help"
	replyUnknown            replyKey = "unknown"
	replyAccepted           replyKey = "accepted"
	replyMissingCost        replyKey = "missing_cost"
	replyRejected           replyKey = "rejected"
	replyModified           replyKey = "modified"
	replyPartial            replyKey = "partial"
	replyAlreadyResolved    replyKey = "already_resolved"
	replyNoSupplierMatch    replyKey = "no_supplier_match"
	replyNoPendingOrder     replyKey = "no_pending_order"
	replyOrderNotFound      replyKey = "order_not_found"
	replyTokenExpired       replyKey = "token_expired"
	replyPartialUnsupported replyKey = "partial_unsupported"
	replyProcessingError    replyKey = "processing_error"
)

// replyCatalog holds the per-language SMS templates. Keep these under the
// 160-character single-segment limit.
var replyCatalog = map[string]map[replyKey]string{
	"en": {
		replyHelp:               "Reply ACCEPT to confirm, REJECT <reason> to decline, MODIFY PRICE/QTY <value> to propose changes. Include the PO number (e.g. PO-12) if you have several orders.",
		replyUnknown:            "Sorry, we could not understand your reply. Send HELP for the list of commands.",
		replyAccepted:           "Thank you. Order %s confirmed, total %.2f. We will follow up with delivery details.",
		replyMissingCost:        "Order %s cannot be confirmed yet: unit cost is missing. A project manager will contact you.",
		replyRejected:           "Order %s marked as declined. The project team has been notified.",
		replyModified:           "Your proposed changes to order %s were recorded and sent for review.",
		replyPartial:            "Response to order %s recorded: %d line(s) accepted, %d rejected.",
		replyAlreadyResolved:    "Order %s has already been finalized. No changes were made.",
		replyNoSupplierMatch:    "We could not match your phone number to a registered supplier. Please contact your project manager.",
		replyNoPendingOrder:     "You have no orders awaiting a response.",
		replyOrderNotFound:      "We could not find order %s. Check the PO number and try again.",
		replyTokenExpired:       "The response window for order %s has closed. Please contact your project manager.",
		replyPartialUnsupported: "Order %s cannot take line-by-line responses. Reply ACCEPT or REJECT for the whole order.",
		replyProcessingError:    "We could not process your reply right now. Please try again shortly.",
	},
	"sw": {
		replyHelp:               "Jibu KUBALI kuthibitisha, KATAA <sababu> kukataa, BADILISHA BEI/IDADI <thamani> kupendekeza mabadiliko. Ongeza namba ya PO (mfano PO-12) ukiwa na oda kadhaa.",
		replyUnknown:            "Samahani, hatukuelewa jibu lako. Tuma MSAADA kupata orodha ya amri.",
		replyAccepted:           "Asante. Oda %s imethibitishwa, jumla %.2f. Tutawasiliana kuhusu usafirishaji.",
		replyMissingCost:        "Oda %s haiwezi kuthibitishwa bado: bei ya kipimo haipo. Meneja wa mradi atawasiliana nawe.",
		replyRejected:           "Oda %s imewekwa kama iliyokataliwa. Timu ya mradi imearifiwa.",
		replyModified:           "Mabadiliko uliyopendekeza kwa oda %s yamepokelewa na kupelekwa kukaguliwa.",
		replyPartial:            "Jibu la oda %s limepokelewa: mistari %d imekubaliwa, %d imekataliwa.",
		replyAlreadyResolved:    "Oda %s tayari imekamilika. Hakuna mabadiliko yaliyofanyika.",
		replyNoSupplierMatch:    "Hatukuweza kulinganisha namba yako ya simu na msambazaji aliyesajiliwa. Wasiliana na meneja wa mradi.",
		replyNoPendingOrder:     "Huna oda inayosubiri jibu.",
		replyOrderNotFound:      "Hatukupata oda %s. Hakiki namba ya PO kisha ujaribu tena.",
		replyTokenExpired:       "Muda wa kujibu oda %s umekwisha. Wasiliana na meneja wa mradi.",
		replyPartialUnsupported: "Oda %s haipokei majibu ya mstari kwa mstari. Jibu KUBALI au KATAA kwa oda nzima.",
		replyProcessingError:    "Hatukuweza kushughulikia jibu lako kwa sasa. Tafadhali jaribu tena baadaye.",
	},
}

// renderReply builds the localized outbound SMS body, falling back to
// English when the supplier's preferred language has no catalog.
func renderReply(lang string, key replyKey, args ...any) string {
	catalog, ok := replyCatalog[lang]
	if !ok {
		catalog = replyCatalog["en"]
	}
	tmpl, ok := catalog[key]
	if !ok {
		tmpl = replyCatalog["en"][key]
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
