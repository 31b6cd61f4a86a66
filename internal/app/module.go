package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/studygenius/billing/internal/app/api/server"
	"github.com/studygenius/billing/internal/app/service/access"
	"github.com/studygenius/billing/internal/app/service/billing"
	"github.com/studygenius/billing/internal/app/service/checkout"
	"github.com/studygenius/billing/internal/app/service/event_log"
	"github.com/studygenius/billing/internal/app/service/statistics"
	"github.com/studygenius/billing/internal/app/service/webhook"
	"github.com/studygenius/billing/internal/platform/db"
	"github.com/studygenius/billing/internal/platform/dedupe"
	"github.com/studygenius/billing/internal/platform/firebase"
	"github.com/studygenius/billing/internal/platform/stripe/stripe_api"
	"github.com/studygenius/billing/internal/platform/stripe/stripe_event"
	"github.com/studygenius/billing/pkg/config"
	"github.com/studygenius/billing/pkg/logger"
	"github.com/studygenius/billing/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 35 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	metrics.Module,
	stripe_api.Module,
	stripe_event.Module,
	firebase.Module,
	dedupe.Module,
	server.Module,
	billing.Module,
	access.Module,
	event_log.Module,
	webhook.Module,
	checkout.Module,
	statistics.Module,
)
