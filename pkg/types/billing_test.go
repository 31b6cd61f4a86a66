package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProviderStatus(t *testing.T) {
	tests := []struct {
		raw    string
		want   SubscriptionStatus
		wantOK bool
	}{
		{"active", SubscriptionStatusActive, true},
		{"trialing", SubscriptionStatusTrialing, true},
		{"past_due", SubscriptionStatusPastDue, true},
		{"unpaid", SubscriptionStatusPastDue, true},
		{"incomplete", SubscriptionStatusPastDue, true},
		{"canceled", SubscriptionStatusCanceled, true},
		{"incomplete_expired", SubscriptionStatusExpired, true},
		{"paused", SubscriptionStatusExpired, true},
		{"free", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseProviderStatus(tt.raw)
		require.Equal(t, tt.wantOK, ok, tt.raw)
		require.Equal(t, tt.want, got, tt.raw)
		if ok {
			require.True(t, got.Valid())
		}
	}
}

func TestSubscriptionStatus_Entitled(t *testing.T) {
	for _, s := range SubscriptionStatuses {
		want := s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
		require.Equal(t, want, s.Entitled(), s)
	}
	require.False(t, SubscriptionStatus("unpaid").Valid())
}

func TestParsePlanInterval(t *testing.T) {
	require.Equal(t, PlanIntervalMonth, *ParsePlanInterval("month"))
	require.Equal(t, PlanIntervalYear, *ParsePlanInterval("year"))
	require.Nil(t, ParsePlanInterval("week"))
	require.Nil(t, ParsePlanInterval(""))
}
