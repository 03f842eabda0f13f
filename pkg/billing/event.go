package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Lemon Squeezy webhook event names the reconciler understands.
const (
	EventSubscriptionCreated          = "subscription_created"
	EventSubscriptionUpdated          = "subscription_updated"
	EventSubscriptionCancelled        = "subscription_cancelled"
	EventSubscriptionResumed          = "subscription_resumed"
	EventSubscriptionExpired          = "subscription_expired"
	EventSubscriptionPaused           = "subscription_paused"
	EventSubscriptionUnpaused         = "subscription_unpaused"
	EventSubscriptionPlanChanged      = "subscription_plan_changed"
	EventSubscriptionPaymentSuccess   = "subscription_payment_success"
	EventSubscriptionPaymentFailed    = "subscription_payment_failed"
	EventSubscriptionPaymentRecovered = "subscription_payment_recovered"
	EventSubscriptionPaymentRefunded  = "subscription_payment_refunded"
)

var knownEvents = map[string]bool{
	EventSubscriptionCreated:          true,
	EventSubscriptionUpdated:          true,
	EventSubscriptionCancelled:        true,
	EventSubscriptionResumed:          true,
	EventSubscriptionExpired:          true,
	EventSubscriptionPaused:           true,
	EventSubscriptionUnpaused:         true,
	EventSubscriptionPlanChanged:      true,
	EventSubscriptionPaymentSuccess:   true,
	EventSubscriptionPaymentFailed:    true,
	EventSubscriptionPaymentRecovered: true,
	EventSubscriptionPaymentRefunded:  true,
}

var (
	ErrMalformedEvent = errors.New("malformed webhook payload")
	ErrUnknownEvent   = errors.New("unknown webhook event")
)

// Attributes is the typed view of the provider's attribute bag. Anything the
// reconciler does not read is dropped at the boundary.
type Attributes struct {
	Status      string     `json:"status"`
	VariantID   int64      `json:"variant_id"`
	VariantName string     `json:"variant_name"`
	ProductName string     `json:"product_name"`
	CustomerID  int64      `json:"customer_id"`
	UserEmail   string     `json:"user_email"`
	UserName    string     `json:"user_name"`
	Cancelled   bool       `json:"cancelled"`
	RenewsAt    *time.Time `json:"renews_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

type envelope struct {
	Meta struct {
		EventName  string `json:"event_name"`
		CustomData struct {
			AccountID string `json:"account_id"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string     `json:"id"`
		Attributes Attributes `json:"attributes"`
	} `json:"data"`
}

// Event is one parsed webhook delivery.
type Event struct {
	Name string

	// SubscriptionID is the provider's entity id for the subscription.
	SubscriptionID string

	// AccountID is the out-of-band account id supplied as checkout custom
	// metadata; empty when the checkout did not carry one.
	AccountID string

	Attr Attributes
}

// CustomerID returns the provider customer id as a string correlation key.
func (e *Event) CustomerID() string {
	if e.Attr.CustomerID == 0 {
		return ""
	}
	return strconv.FormatInt(e.Attr.CustomerID, 10)
}

// VariantID returns the provider variant id as a string catalog key.
func (e *Event) VariantID() string {
	if e.Attr.VariantID == 0 {
		return ""
	}
	return strconv.FormatInt(e.Attr.VariantID, 10)
}

// PeriodEnd picks the subscription period end the provider reported,
// preferring ends_at over renews_at.
func (e *Event) PeriodEnd() *time.Time {
	if e.Attr.EndsAt != nil {
		return e.Attr.EndsAt
	}
	return e.Attr.RenewsAt
}

// ParseEvent decodes a raw webhook body into a closed event shape. Unknown
// event names and envelopes without a subscription id are rejected here so
// nothing downstream touches a payload it cannot interpret.
func ParseEvent(raw []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if env.Meta.EventName == "" || env.Data.ID == "" {
		return nil, ErrMalformedEvent
	}
	if !knownEvents[env.Meta.EventName] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, env.Meta.EventName)
	}

	return &Event{
		Name:           env.Meta.EventName,
		SubscriptionID: env.Data.ID,
		AccountID:      env.Meta.CustomData.AccountID,
		Attr:           env.Data.Attributes,
	}, nil
}
