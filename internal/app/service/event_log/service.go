package event_log

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studygenius/billing/internal/models"
	"github.com/studygenius/billing/pkg/config"
	"github.com/studygenius/billing/pkg/logctx"
)

// Recorder receives webhook audit entries.
type Recorder interface {
	Save(ctx context.Context, entry *models.BillingEventLog)
}

type Service struct {
	db      *gorm.DB
	log     *zap.SugaredLogger
	enabled bool
}

func New(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, enabled: cfg.Billing.EventLogEnabled}
}

// Save asynchronously persists a webhook event log entry. Nil input and a
// disabled log are ignored.
func (s *Service) Save(ctx context.Context, entry *models.BillingEventLog) {
	if !s.enabled || entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.Must(uuid.NewV7()).String()
	}
	// the request context is canceled once the response is written
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save billing event log: %v", err)
		}
	}()
}

var Module = fx.Options(
	fx.Provide(
		New,
		func(s *Service) Recorder { return s },
	),
)
