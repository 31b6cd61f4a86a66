package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/studygenius/billing/internal/app/service/event_log"
	"github.com/studygenius/billing/internal/models"
	"github.com/studygenius/billing/internal/platform/dedupe"
	"github.com/studygenius/billing/pkg/logctx"
	"github.com/studygenius/billing/pkg/metrics"
)

// Verifier authenticates a raw webhook delivery.
type Verifier interface {
	Verify(payload []byte, signature string) (stripe.Event, error)
}

// Deduper remembers which events were already applied.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (dedupe.State, error)
	Complete(ctx context.Context, eventID string)
	Release(ctx context.Context, eventID string)
}

// Service is the entry point for webhook deliveries: verify, parse, apply.
type Service struct {
	verifier  Verifier
	processor *Processor
	dedupe    Deduper
	events    event_log.Recorder
	metrics   *metrics.BillingRecorder
	log       *zap.SugaredLogger
}

// NewService wires the delivery pipeline. dd may be nil.
func NewService(verifier Verifier, processor *Processor, dd Deduper, events event_log.Recorder, rec *metrics.BillingRecorder, log *zap.SugaredLogger) *Service {
	return &Service{verifier: verifier, processor: processor, dedupe: dd, events: events, metrics: rec, log: log}
}

// Handle processes one delivery. Verification and envelope errors wrap
// stripe_event.ErrInvalidSignature or stripe_event.ErrMalformedEnvelope;
// failures worth a redelivery wrap ErrRetryable.
func (s *Service) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	start := time.Now()
	log := logctx.FromCtx(ctx, s.log)

	raw, err := s.verifier.Verify(payload, signature)
	if err != nil {
		log.Warnw("webhook_rejected", "error", err.Error())
		s.metrics.ObserveWebhook("", string(OutcomeRejected), time.Since(start))
		return OutcomeRejected, err
	}
	ev, err := ParseEvent(raw)
	if err != nil {
		log.Warnw("webhook_malformed_envelope", "event_id", raw.ID, "event_type", raw.Type, "error", err.Error())
		s.metrics.ObserveWebhook(string(raw.Type), string(OutcomeRejected), time.Since(start))
		return OutcomeRejected, err
	}

	meta := ev.Meta()
	switch state := s.claim(ctx, log, meta); state {
	case dedupe.Done:
		log.Infow("webhook_event_duplicate", "event_id", meta.ID, "event_type", meta.Type)
		s.metrics.ObserveWebhook(meta.Type, string(OutcomeDuplicate), time.Since(start))
		return OutcomeDuplicate, nil
	case dedupe.InFlight:
		s.metrics.ObserveWebhook(meta.Type, string(OutcomeFailed), time.Since(start))
		return OutcomeFailed, fmt.Errorf("%w: event %s is being processed", ErrRetryable, meta.ID)
	}

	entry := s.logEntry(ctx, meta, ev, payload)
	received := *entry
	s.events.Save(ctx, &received)

	outcome, err := s.processor.Apply(ctx, ev)
	s.metrics.ObserveWebhook(meta.Type, string(outcome), time.Since(start))
	if s.dedupe != nil {
		if err != nil {
			s.dedupe.Release(ctx, meta.ID)
		} else {
			s.dedupe.Complete(ctx, meta.ID)
		}
	}

	result := map[string]any{"outcome": outcome}
	done := *entry
	done.Status = models.BillingEventLogStatusHandled
	if err != nil {
		result["error"] = err.Error()
		done.Status = models.BillingEventLogStatusHandleFailed
	}
	resBytes, _ := json.Marshal(result)
	done.Result = lo.ToPtr(datatypes.JSON(resBytes))
	done.EventTime = time.Now()
	s.events.Save(ctx, &done)

	if err != nil && !errors.Is(err, ErrRetryable) {
		err = errors.Join(ErrRetryable, err)
	}
	return outcome, err
}

// claim consults the deduper. Its failures never block processing: the
// handlers are idempotent and dedupe only saves provider round trips.
func (s *Service) claim(ctx context.Context, log *zap.SugaredLogger, meta EventMeta) dedupe.State {
	if s.dedupe == nil {
		return dedupe.Acquired
	}
	state, err := s.dedupe.Claim(ctx, meta.ID)
	if err != nil {
		log.Warnw("webhook_dedupe_unavailable", "event_id", meta.ID, "error", err.Error())
		return dedupe.Acquired
	}
	return state
}

func (s *Service) logEntry(ctx context.Context, meta EventMeta, ev Event, payload []byte) *models.BillingEventLog {
	var userID *string
	if c, ok := ev.(*CheckoutSessionCompleted); ok && c.UserID != "" {
		userID = lo.ToPtr(c.UserID)
	}
	return &models.BillingEventLog{
		EventID:    meta.ID,
		EventType:  meta.Type,
		CustomerID: lo.EmptyableToPtr(meta.CustomerID),
		UserID:     userID,
		TraceID:    logctx.TraceID(ctx),
		EventTime:  meta.CreatedAt,
		Data:       datatypes.JSON(payload),
		Status:     models.BillingEventLogStatusReceived,
	}
}
