package store

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"goodspeech_backend/internal/model"
)

// WebhookEvents maintains the idempotency ledger for billing webhooks.
type WebhookEvents struct {
	DB *gorm.DB
}

func NewWebhookEvents(db *gorm.DB) *WebhookEvents {
	return &WebhookEvents{DB: db}
}

// Begin fetches or creates the ledger row for a delivery. duplicate is true
// when the event was already processed to completion, in which case the
// caller acknowledges without reprocessing. Redeliveries of a failed event
// bump the attempt counter.
func (s *WebhookEvents) Begin(eventID, eventName string, payload []byte) (ev *model.WebhookEvent, duplicate bool, err error) {
	var existing model.WebhookEvent
	err = s.DB.First(&existing, "event_id = ?", eventID).Error
	if err == nil {
		if existing.Processed() {
			return &existing, true, nil
		}
		if err := s.DB.Model(&existing).
			UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error; err != nil {
			return nil, false, err
		}
		existing.Attempts++
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	fresh := model.WebhookEvent{
		EventID:   eventID,
		EventName: eventName,
		Payload:   datatypes.JSON(payload),
		Attempts:  1,
	}
	if err := s.DB.Create(&fresh).Error; err != nil {
		// Unique-index race with a concurrent delivery of the same event:
		// let that invocation own it and treat ours as a duplicate.
		if s.DB.First(&existing, "event_id = ?", eventID).Error == nil {
			return &existing, true, nil
		}
		return nil, false, err
	}
	return &fresh, false, nil
}

func (s *WebhookEvents) MarkProcessed(ev *model.WebhookEvent) error {
	now := time.Now()
	return s.DB.Model(ev).Updates(map[string]interface{}{
		"processed_at":     &now,
		"processing_error": "",
	}).Error
}

func (s *WebhookEvents) MarkFailed(ev *model.WebhookEvent, cause string) error {
	return s.DB.Model(ev).Update("processing_error", cause).Error
}
