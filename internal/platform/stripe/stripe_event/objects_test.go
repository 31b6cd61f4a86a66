package stripe_event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandableID(t *testing.T) {
	var s CheckoutSession
	require.NoError(t, Decode(json.RawMessage(`{"id":"cs_1","customer":{"id":"cus_1","object":"customer"},"subscription":"sub_1","client_reference_id":null}`), &s))
	require.Equal(t, "cus_1", s.Customer.String())
	require.Equal(t, "sub_1", s.Subscription.String())
	require.Empty(t, s.ClientReferenceID)
}

func TestCheckoutSession_UserID(t *testing.T) {
	s := CheckoutSession{ClientReferenceID: "uid_a", Metadata: map[string]string{"userId": "uid_b"}}
	require.Equal(t, "uid_a", s.UserID())
	s.ClientReferenceID = ""
	require.Equal(t, "uid_b", s.UserID())
	s.Metadata = nil
	require.Empty(t, s.UserID())
}

func TestSubscription_PeriodEndAndInterval(t *testing.T) {
	var sub Subscription
	require.NoError(t, Decode(json.RawMessage(`{"id":"sub_1","customer":"cus_1","status":"active","items":{"data":[{"current_period_end":1800000000,"price":{"recurring":{"interval":"month"}}}]}}`), &sub))
	require.Equal(t, int64(1800000000), sub.PeriodEnd())
	require.Equal(t, "month", sub.Interval())

	sub.CurrentPeriodEnd = 1700000000
	require.Equal(t, int64(1700000000), sub.PeriodEnd())

	var planOnly Subscription
	require.NoError(t, Decode(json.RawMessage(`{"id":"sub_2","items":{"data":[{"plan":{"interval":"year"}}]}}`), &planOnly))
	require.Equal(t, "year", planOnly.Interval())
	require.Zero(t, planOnly.PeriodEnd())
}

func TestInvoice_SubscriptionID(t *testing.T) {
	var legacy Invoice
	require.NoError(t, Decode(json.RawMessage(`{"id":"in_1","customer":"cus_1","subscription":"sub_1"}`), &legacy))
	require.Equal(t, "sub_1", legacy.SubscriptionID())

	var parented Invoice
	require.NoError(t, Decode(json.RawMessage(`{"id":"in_2","customer":"cus_1","parent":{"subscription_details":{"subscription":"sub_2"}}}`), &parented))
	require.Equal(t, "sub_2", parented.SubscriptionID())

	var none Invoice
	require.NoError(t, Decode(json.RawMessage(`{"id":"in_3","customer":"cus_1"}`), &none))
	require.Empty(t, none.SubscriptionID())
}

func TestDecode_Malformed(t *testing.T) {
	var s Subscription
	require.ErrorIs(t, Decode(nil, &s), ErrMalformedEnvelope)
	require.ErrorIs(t, Decode(json.RawMessage(`{"id":5}`), &s), ErrMalformedEnvelope)
}
