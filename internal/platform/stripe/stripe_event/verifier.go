package stripe_event

import (
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/fx"

	"github.com/studygenius/billing/pkg/config"
)

var (
	ErrInvalidSignature  = errors.New("invalid stripe signature")
	ErrMalformedEnvelope = errors.New("malformed stripe event")
)

// Verifier authenticates webhook deliveries against the endpoint secret.
type Verifier struct {
	secret string
}

func NewVerifier(cfg *config.Config) (*Verifier, error) {
	if cfg.Stripe.WebhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret is not configured")
	}
	return &Verifier{secret: cfg.Stripe.WebhookSecret}, nil
}

// Verify checks the Stripe-Signature header and decodes the envelope.
func (v *Verifier) Verify(payload []byte, signature string) (stripe.Event, error) {
	if signature == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing header", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrTooOld):
			return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if event.ID == "" || event.Type == "" || event.Data == nil {
		return stripe.Event{}, fmt.Errorf("%w: missing id, type or data", ErrMalformedEnvelope)
	}
	return event, nil
}

var Module = fx.Options(
	fx.Provide(NewVerifier),
)
