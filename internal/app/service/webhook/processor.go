package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/studygenius/billing/internal/app/service/billing"
	"github.com/studygenius/billing/internal/models"
	"github.com/studygenius/billing/pkg/config"
	"github.com/studygenius/billing/pkg/logctx"
	"github.com/studygenius/billing/pkg/types"
)

// ErrRetryable marks failures the provider should redeliver the event for.
var ErrRetryable = errors.New("retryable webhook failure")

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnhandled Outcome = "unhandled"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeDuplicate Outcome = "duplicate"
)

// SubscriptionFetcher loads the live state of a subscription.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, subscriptionID string) (*types.SubscriptionSnapshot, error)
}

// Processor reconciles parsed events into billing records.
type Processor struct {
	store billing.Store
	subs  SubscriptionFetcher
	opts  billing.ApplyOptions
	log   *zap.SugaredLogger
}

func NewProcessor(store billing.Store, subs SubscriptionFetcher, cfg *config.Config, log *zap.SugaredLogger) *Processor {
	return &Processor{
		store: store,
		subs:  subs,
		opts:  billing.ApplyOptions{DiscardStale: cfg.Billing.DiscardStaleEvents},
		log:   log,
	}
}

// Apply runs the handler for the event variant. A nil error means the event
// can be acknowledged; errors wrapping ErrRetryable should be redelivered.
func (p *Processor) Apply(ctx context.Context, ev Event) (Outcome, error) {
	switch e := ev.(type) {
	case *CheckoutSessionCompleted:
		return p.checkoutCompleted(ctx, e)
	case *SubscriptionChanged:
		return p.subscriptionChanged(ctx, e)
	case *SubscriptionDeleted:
		return p.subscriptionDeleted(ctx, e)
	case *InvoicePaymentSucceeded:
		return p.invoicePaid(ctx, e)
	case *InvoicePaymentFailed:
		return p.invoiceFailed(ctx, e)
	case *Unhandled:
		p.logger(ctx, e.EventMeta).Infow("webhook_event_unhandled")
		return OutcomeUnhandled, nil
	default:
		return OutcomeFailed, fmt.Errorf("unsupported event variant %T", ev)
	}
}

func (p *Processor) checkoutCompleted(ctx context.Context, e *CheckoutSessionCompleted) (Outcome, error) {
	log := p.logger(ctx, e.EventMeta).With("session_id", e.SessionID)
	if e.UserID == "" || e.SubscriptionID == "" || e.CustomerID == "" {
		log.Warnw("webhook_checkout_missing_reference",
			"user_id", e.UserID, "subscription_id", e.SubscriptionID)
		return OutcomeIgnored, nil
	}
	snap, outcome, err := p.fetch(ctx, e.EventMeta, e.SubscriptionID)
	if snap == nil {
		return outcome, err
	}
	patch := snapshotPatch(e.EventMeta, snap)
	patch.CustomerID = lo.ToPtr(e.CustomerID)
	patch.SubscriptionID = lo.ToPtr(e.SubscriptionID)
	patch.PlanInterval = snap.Interval

	res, err := p.store.ApplyPatch(ctx, e.UserID, patch, p.opts)
	if errors.Is(err, billing.ErrCustomerConflict) {
		// Redelivery cannot succeed until an operator untangles the records.
		log.Errorw("webhook_customer_conflict", "user_id", e.UserID, "error", err.Error())
		return OutcomeIgnored, nil
	}
	if err != nil {
		return p.storeFailure(log, err)
	}
	return p.applied(log.With("user_id", e.UserID), res)
}

func (p *Processor) subscriptionChanged(ctx context.Context, e *SubscriptionChanged) (Outcome, error) {
	log := p.logger(ctx, e.EventMeta).With("subscription_id", e.Snapshot.ID)
	if e.CustomerID == "" {
		log.Warnw("webhook_event_missing_customer")
		return OutcomeIgnored, nil
	}
	if !e.Snapshot.Status.Valid() {
		log.Warnw("webhook_unknown_subscription_status", "status", e.RawStatus)
		return OutcomeIgnored, nil
	}
	patch := snapshotPatch(e.EventMeta, &e.Snapshot)
	patch.SubscriptionID = lo.ToPtr(e.Snapshot.ID)
	patch.PlanInterval = e.Snapshot.Interval
	return p.applyByCustomer(ctx, log, e.EventMeta, patch)
}

func (p *Processor) subscriptionDeleted(ctx context.Context, e *SubscriptionDeleted) (Outcome, error) {
	log := p.logger(ctx, e.EventMeta).With("subscription_id", e.SubscriptionID)
	if e.CustomerID == "" {
		log.Warnw("webhook_event_missing_customer")
		return OutcomeIgnored, nil
	}
	patch := &models.BillingPatch{
		SubscriptionStatus: lo.ToPtr(types.SubscriptionStatusCanceled),
		IsPremium:          lo.ToPtr(false),
		EventID:            e.ID,
		EventAt:            e.CreatedAt,
	}
	return p.applyByCustomer(ctx, log, e.EventMeta, patch)
}

func (p *Processor) invoicePaid(ctx context.Context, e *InvoicePaymentSucceeded) (Outcome, error) {
	log := p.logger(ctx, e.EventMeta).With("invoice_id", e.InvoiceID)
	if e.SubscriptionID == "" {
		log.Infow("webhook_invoice_without_subscription")
		return OutcomeIgnored, nil
	}
	snap, outcome, err := p.fetch(ctx, e.EventMeta, e.SubscriptionID)
	if snap == nil {
		return outcome, err
	}
	meta := e.EventMeta
	if meta.CustomerID == "" {
		meta.CustomerID = snap.CustomerID
	}
	if meta.CustomerID == "" {
		log.Warnw("webhook_event_missing_customer")
		return OutcomeIgnored, nil
	}
	return p.applyByCustomer(ctx, log, meta, snapshotPatch(meta, snap))
}

func (p *Processor) invoiceFailed(ctx context.Context, e *InvoicePaymentFailed) (Outcome, error) {
	log := p.logger(ctx, e.EventMeta).With("invoice_id", e.InvoiceID)
	if e.CustomerID == "" {
		log.Warnw("webhook_event_missing_customer")
		return OutcomeIgnored, nil
	}
	patch := &models.BillingPatch{
		SubscriptionStatus: lo.ToPtr(types.SubscriptionStatusPastDue),
		IsPremium:          lo.ToPtr(false),
		EventID:            e.ID,
		EventAt:            e.CreatedAt,
	}
	return p.applyByCustomer(ctx, log, e.EventMeta, patch)
}

func (p *Processor) applyByCustomer(ctx context.Context, log *zap.SugaredLogger, meta EventMeta, patch *models.BillingPatch) (Outcome, error) {
	res, err := p.store.ApplyPatchByCustomer(ctx, meta.CustomerID, patch, p.opts)
	if errors.Is(err, billing.ErrRecordNotFound) {
		log.Warnw("webhook_customer_not_found")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return p.storeFailure(log, err)
	}
	return p.applied(log.With("user_id", res.Record.UserID), res)
}

// fetch loads the live subscription. A nil snapshot ends the handler with
// the returned outcome and error.
func (p *Processor) fetch(ctx context.Context, meta EventMeta, subscriptionID string) (*types.SubscriptionSnapshot, Outcome, error) {
	snap, err := p.subs.FetchSubscription(ctx, subscriptionID)
	if err == nil {
		return snap, "", nil
	}
	log := p.logger(ctx, meta).With("subscription_id", subscriptionID)
	if errors.Is(err, types.ErrProviderRejected) || errors.Is(err, types.ErrUnknownSubscriptionStatus) {
		log.Warnw("webhook_subscription_unusable", "error", err.Error())
		return nil, OutcomeIgnored, nil
	}
	log.Errorw("webhook_subscription_fetch_failed", "error", err.Error())
	return nil, OutcomeFailed, fmt.Errorf("%w: fetch subscription %s: %w", ErrRetryable, subscriptionID, err)
}

func (p *Processor) storeFailure(log *zap.SugaredLogger, err error) (Outcome, error) {
	log.Errorw("webhook_store_failed", "error", err.Error())
	return OutcomeFailed, fmt.Errorf("%w: %w", ErrRetryable, err)
}

func (p *Processor) applied(log *zap.SugaredLogger, res *billing.ApplyResult) (Outcome, error) {
	if res.Skipped {
		return OutcomeSkipped, nil
	}
	log.Infow("webhook_event_applied",
		"status", res.Record.SubscriptionStatus,
		"created", res.Created,
		"current_period_end", lo.FromPtr(res.Record.CurrentPeriodEnd))
	return OutcomeApplied, nil
}

func (p *Processor) logger(ctx context.Context, meta EventMeta) *zap.SugaredLogger {
	return logctx.FromCtx(ctx, p.log).With("event_id", meta.ID, "event_type", meta.Type, "customer_id", meta.CustomerID)
}

// snapshotPatch carries status, period end and the derived premium flag.
func snapshotPatch(meta EventMeta, snap *types.SubscriptionSnapshot) *models.BillingPatch {
	patch := &models.BillingPatch{
		SubscriptionStatus: lo.ToPtr(snap.Status),
		IsPremium:          lo.ToPtr(snap.Status.Entitled()),
		EventID:            meta.ID,
		EventAt:            meta.CreatedAt,
	}
	if snap.CurrentPeriodEnd > 0 {
		patch.CurrentPeriodEnd = lo.ToPtr(snap.CurrentPeriodEnd)
	}
	return patch
}
