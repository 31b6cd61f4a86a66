package types

import (
	"errors"
	"slices"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusFree     SubscriptionStatus = "free"
)

var SubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
	SubscriptionStatusPastDue,
	SubscriptionStatusCanceled,
	SubscriptionStatusExpired,
	SubscriptionStatusFree,
}

func (s SubscriptionStatus) Valid() bool {
	return slices.Contains(SubscriptionStatuses, s)
}

// Entitled reports whether the status grants premium access by itself,
// independent of any period end.
func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// providerStatuses maps Stripe subscription statuses onto the closed set
// stored on a billing record.
var providerStatuses = map[string]SubscriptionStatus{
	"active":             SubscriptionStatusActive,
	"trialing":           SubscriptionStatusTrialing,
	"past_due":           SubscriptionStatusPastDue,
	"unpaid":             SubscriptionStatusPastDue,
	"incomplete":         SubscriptionStatusPastDue,
	"canceled":           SubscriptionStatusCanceled,
	"incomplete_expired": SubscriptionStatusExpired,
	"paused":             SubscriptionStatusExpired,
}

// ParseProviderStatus converts a provider subscription status. ok is false
// for statuses this service does not know how to store.
func ParseProviderStatus(raw string) (SubscriptionStatus, bool) {
	s, ok := providerStatuses[raw]
	return s, ok
}

type PlanInterval string

const (
	PlanIntervalMonth PlanInterval = "month"
	PlanIntervalYear  PlanInterval = "year"
)

// ParsePlanInterval returns nil for intervals other than month and year.
func ParsePlanInterval(raw string) *PlanInterval {
	switch PlanInterval(raw) {
	case PlanIntervalMonth, PlanIntervalYear:
		p := PlanInterval(raw)
		return &p
	default:
		return nil
	}
}

// SubscriptionSnapshot is the provider-agnostic view of a subscription as
// returned by a live lookup or carried inside a webhook event.
type SubscriptionSnapshot struct {
	ID         string
	CustomerID string
	Status     SubscriptionStatus
	Interval   *PlanInterval
	// CurrentPeriodEnd is in milliseconds since epoch, 0 when unknown.
	CurrentPeriodEnd int64
}

var (
	// ErrProviderRejected marks payment provider failures that retrying
	// cannot fix (the provider answered with a client error).
	ErrProviderRejected = errors.New("payment provider rejected request")
	// ErrUnknownSubscriptionStatus is returned for provider statuses outside
	// the mapping in ParseProviderStatus.
	ErrUnknownSubscriptionStatus = errors.New("unknown subscription status")
)
