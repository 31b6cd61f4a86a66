package webhook

import (
	"go.uber.org/fx"

	"github.com/studygenius/billing/internal/platform/dedupe"
	"github.com/studygenius/billing/internal/platform/stripe/stripe_api"
	"github.com/studygenius/billing/internal/platform/stripe/stripe_event"
)

var Module = fx.Options(
	fx.Provide(
		func(c *stripe_api.Client) SubscriptionFetcher { return c },
		func(v *stripe_event.Verifier) Verifier { return v },
		func(s *dedupe.Store) Deduper { return s },
		NewProcessor,
		NewService,
	),
)
