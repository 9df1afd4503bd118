package http

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"
)

// PayloadKind is the classified shape of a provider webhook body.
type PayloadKind string

const (
	KindIncomingSMS    PayloadKind = "incoming_sms"
	KindDeliveryReport PayloadKind = "delivery_report"
	KindUnknown        PayloadKind = "unknown"
)

// rawPayload is the union of the fields both webhook shapes may carry. The
// provider delivers either JSON or form-encoded bodies with overlapping
// field sets; classification happens on the decoded union, not on ad hoc
// presence checks in the handler.
type rawPayload struct {
	// Incoming-SMS shape.
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Date string `json:"date"`

	// Delivery-status shape.
	PhoneNumber   string `json:"phoneNumber"`
	Status        string `json:"status"`
	ID            string `json:"id"`
	FailureReason string `json:"failureReason"`
	RetryCount    int    `json:"retryCount"`
	NetworkCode   string `json:"networkCode"`
}

// Classify decides which webhook shape a decoded body is. It is pure: the
// delivery-status triple wins first, then the incoming-SMS pair.
func Classify(p rawPayload) PayloadKind {
	switch {
	case p.PhoneNumber != "" && p.Status != "" && p.ID != "":
		return KindDeliveryReport
	case p.From != "" && p.Text != "":
		return KindIncomingSMS
	default:
		return KindUnknown
	}
}

func decodeJSONPayload(body []byte) (rawPayload, error) {
	var p rawPayload
	err := json.Unmarshal(body, &p)
	return p, err
}

func decodeFormPayload(body []byte) (rawPayload, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return rawPayload{}, err
	}
	p := rawPayload{
		From:          values.Get("from"),
		To:            values.Get("to"),
		Text:          values.Get("text"),
		Date:          values.Get("date"),
		PhoneNumber:   values.Get("phoneNumber"),
		Status:        values.Get("status"),
		ID:            values.Get("id"),
		FailureReason: values.Get("failureReason"),
		NetworkCode:   values.Get("networkCode"),
	}
	if rc := values.Get("retryCount"); rc != "" {
		if n, err := strconv.Atoi(rc); err == nil {
			p.RetryCount = n
		}
	}
	return p, nil
}

// IncomingSMSPayload is the validated incoming-SMS webhook body.
type IncomingSMSPayload struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to"`
	Text string `json:"text" validate:"required"`
	Date string `json:"date"`
	ID   string `json:"id"`
}

// DeliveryReportPayload is the validated delivery-status webhook body.
type DeliveryReportPayload struct {
	PhoneNumber   string `json:"phoneNumber" validate:"required"`
	Status        string `json:"status" validate:"required"`
	ID            string `json:"id" validate:"required"`
	FailureReason string `json:"failureReason"`
	RetryCount    int    `json:"retryCount"`
	NetworkCode   string `json:"networkCode"`
}

var providerDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseProviderDate parses the provider's receive timestamp, falling back to
// the gateway's own clock when the format is unrecognized.
func parseProviderDate(raw string, fallback time.Time) time.Time {
	for _, layout := range providerDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return fallback
}
