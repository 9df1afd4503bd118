package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CommunicationDirection distinguishes supplier-originated messages from
// replies this service sent.
type CommunicationDirection string

const (
	DirectionInbound  CommunicationDirection = "inbound"
	DirectionOutbound CommunicationDirection = "outbound"
)

// Communication is one SMS exchanged with a supplier. Outbound records carry
// the provider message id so later delivery reports can be correlated back.
type Communication struct {
	ID                uuid.UUID              `json:"id"`
	PurchaseOrderID   uuid.NullUUID          `json:"purchase_order_id,omitempty"`
	SupplierPhone     string                 `json:"supplier_phone"`
	Direction         CommunicationDirection `json:"direction"`
	Content           string                 `json:"content"`
	ProviderMessageID string                 `json:"provider_message_id,omitempty"`
	DeliveryStatus    string                 `json:"delivery_status,omitempty"`
	FailureReason     string                 `json:"failure_reason,omitempty"`
	RetryCount        int                    `json:"retry_count"`
	NetworkCode       string                 `json:"network_code,omitempty"`
	SentAt            time.Time              `json:"sent_at"`
	DeliveredAt       sql.NullTime           `json:"delivered_at,omitempty"`
}

// DeliveryReport is a provider delivery-status callback for a previously
// sent message. It never triggers an order transition or a reply.
type DeliveryReport struct {
	PhoneNumber       string    `json:"phone_number"`
	Status            string    `json:"status"`
	ProviderMessageID string    `json:"provider_message_id"`
	FailureReason     string    `json:"failure_reason,omitempty"`
	RetryCount        int       `json:"retry_count"`
	NetworkCode       string    `json:"network_code,omitempty"`
	ReportedAt        time.Time `json:"reported_at"`
}

// Delivered reports whether the provider considers the message delivered.
func (r *DeliveryReport) Delivered() bool {
	return r.Status == "Success" || r.Status == "DELIVRD" || r.Status == "delivered"
}
