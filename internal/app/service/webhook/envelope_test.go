package webhook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/studygenius/billing/internal/platform/stripe/stripe_event"
	"github.com/studygenius/billing/pkg/types"
)

func stripeEvent(id, typ string, created int64, object string) stripe.Event {
	return stripe.Event{
		ID:      id,
		Type:    stripe.EventType(typ),
		Created: created,
		Data:    &stripe.EventData{Raw: json.RawMessage(object)},
	}
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name   string
		ev     stripe.Event
		assert func(t *testing.T, ev Event)
	}{
		{
			name: "checkout completed uses client reference",
			ev:   stripeEvent("evt_1", EventCheckoutSessionCompleted, 100, `{"id":"cs_1","customer":"cus_1","subscription":"sub_1","client_reference_id":"uid_1"}`),
			assert: func(t *testing.T, ev Event) {
				c, ok := ev.(*CheckoutSessionCompleted)
				require.True(t, ok)
				require.Equal(t, "uid_1", c.UserID)
				require.Equal(t, "sub_1", c.SubscriptionID)
				require.Equal(t, "cus_1", c.CustomerID)
				require.Equal(t, time.Unix(100, 0).UTC(), c.CreatedAt)
			},
		},
		{
			name: "checkout completed falls back to metadata",
			ev:   stripeEvent("evt_2", EventCheckoutSessionCompleted, 100, `{"id":"cs_2","customer":"cus_1","subscription":"sub_1","metadata":{"userId":"uid_2"}}`),
			assert: func(t *testing.T, ev Event) {
				require.Equal(t, "uid_2", ev.(*CheckoutSessionCompleted).UserID)
			},
		},
		{
			name: "subscription updated",
			ev:   stripeEvent("evt_3", EventSubscriptionUpdated, 100, `{"id":"sub_1","customer":"cus_1","status":"unpaid","items":{"data":[{"current_period_end":1800000000,"price":{"recurring":{"interval":"year"}}}]}}`),
			assert: func(t *testing.T, ev Event) {
				s, ok := ev.(*SubscriptionChanged)
				require.True(t, ok)
				require.Equal(t, types.SubscriptionStatusPastDue, s.Snapshot.Status)
				require.Equal(t, "unpaid", s.RawStatus)
				require.Equal(t, int64(1_800_000_000_000), s.Snapshot.CurrentPeriodEnd)
				require.Equal(t, types.PlanIntervalYear, *s.Snapshot.Interval)
			},
		},
		{
			name: "subscription with unknown status",
			ev:   stripeEvent("evt_4", EventSubscriptionCreated, 100, `{"id":"sub_1","customer":"cus_1","status":"brand_new"}`),
			assert: func(t *testing.T, ev Event) {
				s := ev.(*SubscriptionChanged)
				require.False(t, s.Snapshot.Status.Valid())
				require.Equal(t, "brand_new", s.RawStatus)
			},
		},
		{
			name: "subscription deleted",
			ev:   stripeEvent("evt_5", EventSubscriptionDeleted, 100, `{"id":"sub_1","customer":{"id":"cus_1"},"status":"canceled"}`),
			assert: func(t *testing.T, ev Event) {
				d, ok := ev.(*SubscriptionDeleted)
				require.True(t, ok)
				require.Equal(t, "cus_1", d.CustomerID)
			},
		},
		{
			name: "invoice paid with parent subscription",
			ev:   stripeEvent("evt_6", EventInvoicePaymentSucceeded, 100, `{"id":"in_1","customer":"cus_1","parent":{"subscription_details":{"subscription":"sub_9"}}}`),
			assert: func(t *testing.T, ev Event) {
				require.Equal(t, "sub_9", ev.(*InvoicePaymentSucceeded).SubscriptionID)
			},
		},
		{
			name: "invoice failed",
			ev:   stripeEvent("evt_7", EventInvoicePaymentFailed, 100, `{"id":"in_2","customer":"cus_1"}`),
			assert: func(t *testing.T, ev Event) {
				f, ok := ev.(*InvoicePaymentFailed)
				require.True(t, ok)
				require.Equal(t, "in_2", f.InvoiceID)
			},
		},
		{
			name: "unknown type is not decoded",
			ev:   stripeEvent("evt_8", "customer.tax_id.created", 100, `not even json`),
			assert: func(t *testing.T, ev Event) {
				u, ok := ev.(*Unhandled)
				require.True(t, ok)
				require.Equal(t, "customer.tax_id.created", u.Meta().Type)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent(tt.ev)
			require.NoError(t, err)
			tt.assert(t, ev)
		})
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	_, err := ParseEvent(stripeEvent("evt_1", EventSubscriptionUpdated, 100, `{"id":`))
	require.ErrorIs(t, err, stripe_event.ErrMalformedEnvelope)

	_, err = ParseEvent(stripe.Event{ID: "evt_2", Type: EventInvoicePaymentFailed})
	require.ErrorIs(t, err, stripe_event.ErrMalformedEnvelope)
}
