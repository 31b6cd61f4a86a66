package access

import (
	"time"

	"go.uber.org/fx"

	"github.com/studygenius/billing/internal/models"
	"github.com/studygenius/billing/pkg/types"
)

// HasPremiumAccess decides premium access from the persisted billing state.
// The cached IsPremium flag is deliberately ignored: a canceled subscription
// loses access when its paid period ends, and no provider event marks that.
func HasPremiumAccess(record *models.UserBilling, now time.Time) bool {
	if record == nil {
		return false
	}
	if record.SubscriptionStatus.Entitled() {
		return true
	}
	if record.SubscriptionStatus == types.SubscriptionStatusCanceled && record.CurrentPeriodEnd != nil {
		return now.UnixMilli() < *record.CurrentPeriodEnd
	}
	return false
}

// Evaluator binds HasPremiumAccess to a clock.
type Evaluator struct {
	now func() time.Time
}

func NewEvaluator() *Evaluator { return &Evaluator{now: time.Now} }

// NewEvaluatorWithClock is used where the decision time must be controlled.
func NewEvaluatorWithClock(now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{now: now}
}

func (e *Evaluator) Evaluate(record *models.UserBilling) bool {
	return HasPremiumAccess(record, e.now())
}

// Now exposes the evaluator clock so callers can report the decision time.
func (e *Evaluator) Now() time.Time { return e.now() }

var Module = fx.Options(
	fx.Provide(NewEvaluator),
)
