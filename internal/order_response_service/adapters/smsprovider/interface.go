package smsprovider

import "context"

// SendRequest holds the data for sending one SMS via a provider.
type SendRequest struct {
	SenderID  string
	Recipient string
	Content   string
}

// SendResponse holds the outcome of a send attempt.
type SendResponse struct {
	ProviderMessageID string
	Success           bool
	StatusCode        int
	ErrorMessage      string
	ProviderName      string
}

// Adapter is the interface an SMS provider integration implements.
type Adapter interface {
	Send(ctx context.Context, request SendRequest) (*SendResponse, error)
	GetName() string
}
