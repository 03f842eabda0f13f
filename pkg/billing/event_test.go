package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventFullEnvelope(t *testing.T) {
	raw := []byte(`{
		"meta": {
			"event_name": "subscription_created",
			"custom_data": {"account_id": "acct_123"}
		},
		"data": {
			"id": "sub_987",
			"attributes": {
				"status": "active",
				"variant_id": 11111,
				"variant_name": "Professional Yearly",
				"product_name": "Goodspeech",
				"customer_id": 42,
				"user_email": "jo@example.com",
				"renews_at": "2026-09-28T10:00:00Z",
				"cancelled": false
			}
		}
	}`)

	ev, err := ParseEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, EventSubscriptionCreated, ev.Name)
	assert.Equal(t, "sub_987", ev.SubscriptionID)
	assert.Equal(t, "acct_123", ev.AccountID)
	assert.Equal(t, "Professional Yearly", ev.Attr.VariantName)
	assert.Equal(t, "42", ev.CustomerID())
	assert.Equal(t, "11111", ev.VariantID())

	require.NotNil(t, ev.PeriodEnd())
	assert.Equal(t, time.Date(2026, 9, 28, 10, 0, 0, 0, time.UTC), ev.PeriodEnd().UTC())
}

func TestParseEventPeriodEndPrefersEndsAt(t *testing.T) {
	raw := []byte(`{
		"meta": {"event_name": "subscription_updated"},
		"data": {
			"id": "sub_1",
			"attributes": {
				"status": "cancelled",
				"renews_at": "2026-10-01T00:00:00Z",
				"ends_at": "2026-09-15T00:00:00Z"
			}
		}
	}`)

	ev, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), ev.PeriodEnd().UTC())
}

func TestParseEventRejections(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{
			name:    "unknown event name",
			raw:     `{"meta":{"event_name":"order_created"},"data":{"id":"1"}}`,
			wantErr: ErrUnknownEvent,
		},
		{
			name:    "missing event name",
			raw:     `{"meta":{},"data":{"id":"1"}}`,
			wantErr: ErrMalformedEvent,
		},
		{
			name:    "missing subscription id",
			raw:     `{"meta":{"event_name":"subscription_created"},"data":{"attributes":{}}}`,
			wantErr: ErrMalformedEvent,
		},
		{
			name:    "invalid json",
			raw:     `{"meta": not json`,
			wantErr: ErrMalformedEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEventCorrelationKeysEmptyWhenAbsent(t *testing.T) {
	raw := []byte(`{"meta":{"event_name":"subscription_expired"},"data":{"id":"sub_2","attributes":{}}}`)

	ev, err := ParseEvent(raw)
	require.NoError(t, err)

	assert.Empty(t, ev.AccountID)
	assert.Empty(t, ev.CustomerID())
	assert.Empty(t, ev.VariantID())
	assert.Nil(t, ev.PeriodEnd())
}
