package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/studygenius/billing/internal/models"
	"github.com/studygenius/billing/internal/platform/dedupe"
	"github.com/studygenius/billing/internal/platform/stripe/stripe_event"
	"github.com/studygenius/billing/pkg/config"
	"github.com/studygenius/billing/pkg/metrics"
	"github.com/studygenius/billing/pkg/types"
)

const testSecret = "whsec_service_test"

type captureRecorder struct {
	mu      sync.Mutex
	entries []models.BillingEventLog
}

func (r *captureRecorder) Save(_ context.Context, e *models.BillingEventLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
}

func newTestService(t *testing.T, store *memStore) (*Service, *captureRecorder) {
	cfg := &config.Config{}
	cfg.Stripe.WebhookSecret = testSecret
	v, err := stripe_event.NewVerifier(cfg)
	require.NoError(t, err)
	rec := &captureRecorder{}
	log := zap.NewNop().Sugar()
	p := NewProcessor(store, &stubFetcher{}, cfg, log)
	return NewService(v, p, nil, rec, metrics.NewBillingRecorder(prometheus.NewRegistry()), log), rec
}

func signed(payload string) ([]byte, string) {
	s := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return s.Payload, s.Header
}

func TestHandle_AppliesVerifiedEvent(t *testing.T) {
	store := newMemStore(activeRecord("uid_1", "cus_1"))
	svc, rec := newTestService(t, store)

	body, sig := signed(`{"id":"evt_1","object":"event","type":"invoice.payment_failed","created":1767225600,"data":{"object":{"id":"in_1","object":"invoice","customer":"cus_1"}}}`)
	out, err := svc.Handle(context.Background(), body, sig)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, out)
	require.Equal(t, types.SubscriptionStatusPastDue, store.copyOf("uid_1").SubscriptionStatus)

	require.Len(t, rec.entries, 2)
	require.Equal(t, models.BillingEventLogStatusReceived, rec.entries[0].Status)
	require.Equal(t, models.BillingEventLogStatusHandled, rec.entries[1].Status)
	require.Equal(t, "evt_1", rec.entries[1].EventID)
	require.Equal(t, "cus_1", *rec.entries[1].CustomerID)
	require.NotNil(t, rec.entries[1].Result)
}

func TestHandle_InvalidSignatureAppliesNothing(t *testing.T) {
	store := newMemStore(activeRecord("uid_1", "cus_1"))
	svc, rec := newTestService(t, store)

	body, _ := signed(`{"id":"evt_1","object":"event","type":"invoice.payment_failed","created":1767225600,"data":{"object":{"id":"in_1","customer":"cus_1"}}}`)
	_, err := svc.Handle(context.Background(), body, "t=1,v1=deadbeef")
	require.ErrorIs(t, err, stripe_event.ErrInvalidSignature)
	require.Zero(t, store.writes)
	require.Empty(t, rec.entries)
}

func TestHandle_UnknownTypeAcknowledged(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)

	body, sig := signed(`{"id":"evt_2","object":"event","type":"product.created","created":1767225600,"data":{"object":{"id":"prod_1"}}}`)
	out, err := svc.Handle(context.Background(), body, sig)
	require.NoError(t, err)
	require.Equal(t, OutcomeUnhandled, out)
}

func TestHandle_MalformedObject(t *testing.T) {
	svc, _ := newTestService(t, newMemStore())

	body, sig := signed(`{"id":"evt_3","object":"event","type":"customer.subscription.updated","created":1767225600,"data":{"object":{"id":42}}}`)
	_, err := svc.Handle(context.Background(), body, sig)
	require.ErrorIs(t, err, stripe_event.ErrMalformedEnvelope)
}

func TestHandle_StoreFailureIsRetryable(t *testing.T) {
	store := newMemStore(activeRecord("uid_1", "cus_1"))
	store.err = context.DeadlineExceeded
	svc, rec := newTestService(t, store)

	body, sig := signed(`{"id":"evt_4","object":"event","type":"invoice.payment_failed","created":1767225600,"data":{"object":{"id":"in_1","customer":"cus_1"}}}`)
	out, err := svc.Handle(context.Background(), body, sig)
	require.ErrorIs(t, err, ErrRetryable)
	require.Equal(t, OutcomeFailed, out)
	require.Equal(t, models.BillingEventLogStatusHandleFailed, rec.entries[len(rec.entries)-1].Status)
}

type memDeduper struct {
	mu     sync.Mutex
	states map[string]dedupe.State
	err    error
}

func (d *memDeduper) Claim(_ context.Context, id string) (dedupe.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return dedupe.Acquired, d.err
	}
	if st, ok := d.states[id]; ok {
		return st, nil
	}
	d.states[id] = dedupe.InFlight
	return dedupe.Acquired, nil
}

func (d *memDeduper) Complete(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[id] = dedupe.Done
}

func (d *memDeduper) Release(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.states, id)
}

func TestHandle_Dedupe(t *testing.T) {
	store := newMemStore(activeRecord("uid_1", "cus_1"))
	svc, _ := newTestService(t, store)
	dd := &memDeduper{states: map[string]dedupe.State{"evt_busy": dedupe.InFlight}}
	svc.dedupe = dd

	body, sig := signed(`{"id":"evt_5","object":"event","type":"invoice.payment_failed","created":1767225600,"data":{"object":{"id":"in_1","customer":"cus_1"}}}`)
	out, err := svc.Handle(context.Background(), body, sig)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, out)
	require.Equal(t, dedupe.Done, dd.states["evt_5"])

	out, err = svc.Handle(context.Background(), body, sig)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, out)
	require.Equal(t, 1, store.writes)

	body, sig = signed(`{"id":"evt_busy","object":"event","type":"invoice.payment_failed","created":1767225600,"data":{"object":{"id":"in_2","customer":"cus_1"}}}`)
	_, err = svc.Handle(context.Background(), body, sig)
	require.ErrorIs(t, err, ErrRetryable)
	require.Equal(t, 1, store.writes)
}

func TestHandle_DedupeReleasedOnFailure(t *testing.T) {
	store := newMemStore(activeRecord("uid_1", "cus_1"))
	store.err = context.DeadlineExceeded
	svc, _ := newTestService(t, store)
	dd := &memDeduper{states: map[string]dedupe.State{}}
	svc.dedupe = dd

	body, sig := signed(`{"id":"evt_6","object":"event","type":"invoice.payment_failed","created":1767225600,"data":{"object":{"id":"in_1","customer":"cus_1"}}}`)
	_, err := svc.Handle(context.Background(), body, sig)
	require.ErrorIs(t, err, ErrRetryable)
	_, claimed := dd.states["evt_6"]
	require.False(t, claimed)
}

func TestHandle_DedupeOutageDoesNotBlock(t *testing.T) {
	store := newMemStore(activeRecord("uid_1", "cus_1"))
	svc, _ := newTestService(t, store)
	svc.dedupe = &memDeduper{states: map[string]dedupe.State{}, err: context.DeadlineExceeded}

	body, sig := signed(`{"id":"evt_7","object":"event","type":"invoice.payment_failed","created":1767225600,"data":{"object":{"id":"in_1","customer":"cus_1"}}}`)
	out, err := svc.Handle(context.Background(), body, sig)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, out)
}
