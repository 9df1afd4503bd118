package domain

import (
	"time"

	"github.com/google/uuid"
)

// Supplier is the directory entry inbound phone numbers are matched against.
type Supplier struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone"`
	PreferredLanguage string    `json:"preferred_language,omitempty"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}
