package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxWebhookAttempts caps provider redeliveries of an unresolvable event.
// Once reached the endpoint acknowledges and the row stays as dead letter.
const MaxWebhookAttempts = 5

// WebhookEvent is the idempotency ledger for billing webhooks. EventID is
// the provider delivery id (or a payload hash when the provider sends none);
// the unique index makes duplicate deliveries no-ops.
type WebhookEvent struct {
	gorm.Model
	EventID   string         `json:"event_id" gorm:"uniqueIndex;not null"`
	EventName string         `json:"event_name" gorm:"index;not null"`
	Payload   datatypes.JSON `json:"payload"`

	Attempts        int        `json:"attempts" gorm:"default:0"`
	ProcessedAt     *time.Time `json:"processed_at"`
	ProcessingError string     `json:"processing_error"`
}

func (e *WebhookEvent) Processed() bool {
	return e.ProcessedAt != nil
}

func (e *WebhookEvent) Exhausted() bool {
	return e.Attempts >= MaxWebhookAttempts
}
