package models

import (
	"time"

	"github.com/studygenius/billing/pkg/types"
)

// UserBilling is the per-user billing record reconciled from payment
// provider events.
type UserBilling struct {
	UserID string `gorm:"column:user_id;type:varchar(128);primary_key" json:"user_id"`
	// CustomerID is assigned by the payment provider on first checkout and
	// is the lookup key for webhook events.
	CustomerID         *string                  `gorm:"column:customer_id;type:varchar(128);uniqueIndex" json:"customer_id"`
	SubscriptionID     *string                  `gorm:"column:subscription_id;type:varchar(128)" json:"subscription_id"`
	SubscriptionStatus types.SubscriptionStatus `gorm:"column:subscription_status;type:varchar(32);not null;default:'free'" json:"subscription_status"`
	PlanInterval       *types.PlanInterval      `gorm:"column:plan_interval;type:varchar(16)" json:"plan_interval"`
	// CurrentPeriodEnd is the end of the paid interval in unix milliseconds.
	// It outlives cancellation.
	CurrentPeriodEnd *int64 `gorm:"column:current_period_end;type:bigint" json:"current_period_end"`
	// IsPremium is a cache written with every event. Access checks must go
	// through access.HasPremiumAccess instead.
	IsPremium   bool       `gorm:"column:is_premium;not null;default:false" json:"is_premium"`
	LastEventID string     `gorm:"column:last_event_id;type:varchar(128)" json:"last_event_id"`
	LastEventAt *time.Time `gorm:"column:last_event_at" json:"last_event_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UserBillingFilterColumns are the columns admin queries may filter on.
var UserBillingFilterColumns = []string{
	"user_id", "customer_id", "subscription_id", "subscription_status", "plan_interval",
	"current_period_end", "is_premium", "last_event_at", "created_at", "updated_at",
}

func (UserBilling) TableName() string {
	return "user_billing"
}

// BillingPatch is a merge-patch for a UserBilling record. Nil fields are left
// untouched.
type BillingPatch struct {
	CustomerID         *string
	SubscriptionID     *string
	SubscriptionStatus *types.SubscriptionStatus
	PlanInterval       *types.PlanInterval
	CurrentPeriodEnd   *int64
	IsPremium          *bool

	EventID string
	EventAt time.Time
}

// Merge applies the patch onto r. A period end is only ever moved forward.
func (p *BillingPatch) Merge(r *UserBilling) {
	if p == nil || r == nil {
		return
	}
	if p.CustomerID != nil {
		r.CustomerID = p.CustomerID
	}
	if p.SubscriptionID != nil {
		r.SubscriptionID = p.SubscriptionID
	}
	if p.SubscriptionStatus != nil && p.SubscriptionStatus.Valid() {
		r.SubscriptionStatus = *p.SubscriptionStatus
	}
	if p.PlanInterval != nil {
		r.PlanInterval = p.PlanInterval
	}
	if p.CurrentPeriodEnd != nil && *p.CurrentPeriodEnd > 0 {
		if r.CurrentPeriodEnd == nil || *p.CurrentPeriodEnd > *r.CurrentPeriodEnd {
			end := *p.CurrentPeriodEnd
			r.CurrentPeriodEnd = &end
		}
	}
	if p.IsPremium != nil {
		r.IsPremium = *p.IsPremium
	}
	if p.EventID != "" {
		r.LastEventID = p.EventID
	}
	if !p.EventAt.IsZero() && (r.LastEventAt == nil || p.EventAt.After(*r.LastEventAt)) {
		at := p.EventAt
		r.LastEventAt = &at
	}
}

// StaleFor reports whether the patch was produced by an event older than the
// last one applied to r.
func (p *BillingPatch) StaleFor(r *UserBilling) bool {
	if p == nil || r == nil || r.LastEventAt == nil || p.EventAt.IsZero() {
		return false
	}
	return p.EventAt.Before(*r.LastEventAt)
}
