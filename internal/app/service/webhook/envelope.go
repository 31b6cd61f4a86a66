package webhook

import (
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/studygenius/billing/internal/platform/stripe/stripe_event"
	"github.com/studygenius/billing/pkg/types"
)

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
)

// EventMeta is shared by every parsed event.
type EventMeta struct {
	ID         string
	Type       string
	CreatedAt  time.Time
	CustomerID string
}

func (m EventMeta) Meta() EventMeta { return m }

// Event is one of the variants below.
type Event interface {
	Meta() EventMeta
}

type CheckoutSessionCompleted struct {
	EventMeta
	SessionID      string
	SubscriptionID string
	UserID         string
}

// SubscriptionChanged covers subscription creation and updates. Status is
// empty when RawStatus has no stored equivalent.
type SubscriptionChanged struct {
	EventMeta
	Snapshot  types.SubscriptionSnapshot
	RawStatus string
}

type SubscriptionDeleted struct {
	EventMeta
	SubscriptionID string
}

type InvoicePaymentSucceeded struct {
	EventMeta
	InvoiceID      string
	SubscriptionID string
}

type InvoicePaymentFailed struct {
	EventMeta
	InvoiceID string
}

type Unhandled struct {
	EventMeta
}

// ParseEvent decodes the data object of a verified event into its variant.
// Event types this service does not act on are never decoded.
func ParseEvent(ev stripe.Event) (Event, error) {
	meta := EventMeta{
		ID:        ev.ID,
		Type:      string(ev.Type),
		CreatedAt: time.Unix(ev.Created, 0).UTC(),
	}
	if ev.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", stripe_event.ErrMalformedEnvelope, ev.ID)
	}
	raw := ev.Data.Raw

	switch meta.Type {
	case EventCheckoutSessionCompleted:
		var s stripe_event.CheckoutSession
		if err := stripe_event.Decode(raw, &s); err != nil {
			return nil, err
		}
		meta.CustomerID = s.Customer.String()
		return &CheckoutSessionCompleted{
			EventMeta:      meta,
			SessionID:      s.ID,
			SubscriptionID: s.Subscription.String(),
			UserID:         s.UserID(),
		}, nil

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var s stripe_event.Subscription
		if err := stripe_event.Decode(raw, &s); err != nil {
			return nil, err
		}
		meta.CustomerID = s.Customer.String()
		if meta.Type == EventSubscriptionDeleted {
			return &SubscriptionDeleted{EventMeta: meta, SubscriptionID: s.ID}, nil
		}
		status, _ := types.ParseProviderStatus(s.Status)
		return &SubscriptionChanged{
			EventMeta: meta,
			RawStatus: s.Status,
			Snapshot: types.SubscriptionSnapshot{
				ID:               s.ID,
				CustomerID:       meta.CustomerID,
				Status:           status,
				Interval:         types.ParsePlanInterval(s.Interval()),
				CurrentPeriodEnd: s.PeriodEnd() * 1000,
			},
		}, nil

	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		var in stripe_event.Invoice
		if err := stripe_event.Decode(raw, &in); err != nil {
			return nil, err
		}
		meta.CustomerID = in.Customer.String()
		if meta.Type == EventInvoicePaymentFailed {
			return &InvoicePaymentFailed{EventMeta: meta, InvoiceID: in.ID}, nil
		}
		return &InvoicePaymentSucceeded{EventMeta: meta, InvoiceID: in.ID, SubscriptionID: in.SubscriptionID()}, nil
	}

	return &Unhandled{EventMeta: meta}, nil
}
