package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studygenius/billing/internal/app/service/access"
	"github.com/studygenius/billing/internal/models"
	"github.com/studygenius/billing/pkg/types"
)

type StatisticType string

const (
	StatisticTypeStatusCount           StatisticType = "status_count"
	StatisticTypePremiumCount          StatisticType = "premium_count"
	StatisticTypeGracePeriodCount      StatisticType = "grace_period_count"
	StatisticTypeDailyNewCustomerCount StatisticType = "daily_new_customer_count"
	StatisticTypeDailyEventCount       StatisticType = "daily_event_count"
)

// recordStatistics read user_billing and accept record filters. The event
// statistic reads the audit log and ignores them.
var recordStatistics = []StatisticType{
	StatisticTypeStatusCount,
	StatisticTypePremiumCount,
	StatisticTypeGracePeriodCount,
	StatisticTypeDailyNewCustomerCount,
}

type BillingStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type BillingStatisticRequest struct {
	Filters   []*types.CommonFilter       `json:"filters"`
	DataItems []*BillingStatisticDataItem `json:"data_items"`
}

// Build composes the WHERE clause from the request filters.
func (f *BillingStatisticRequest) Build(builder clause.Builder) {
	if f == nil || len(f.Filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, filter := range f.Filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		filter.Build(builder)
	}
}

type BillingStatisticResponseDataItem struct {
	Date  string `json:"date,omitempty"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type BillingStatisticResponse struct {
	DataItems map[StatisticType][]BillingStatisticResponseDataItem `json:"data_items"`
}

// Service provides billing statistics for operators.
type Service struct {
	db        *gorm.DB
	evaluator *access.Evaluator
}

func New(db *gorm.DB, evaluator *access.Evaluator) *Service {
	return &Service{db: db, evaluator: evaluator}
}

func (s *Service) records(ctx context.Context, request *BillingStatisticRequest) *gorm.DB {
	return s.db.WithContext(ctx).Table(models.UserBilling{}.TableName()).
		Where(clause.Where{Exprs: []clause.Expression{request}})
}

func (s *Service) statusCountQuery(ctx context.Context, request *BillingStatisticRequest) *gorm.DB {
	return s.records(ctx, request).
		Select("subscription_status as label, count(*) as value").
		Group("subscription_status").
		Order("label")
}

// premiumCountQuery counts with the same rule as access.HasPremiumAccess.
func (s *Service) premiumCountQuery(ctx context.Context, request *BillingStatisticRequest, now time.Time) *gorm.DB {
	return s.records(ctx, request).
		Select("count(*) as value").
		Where("subscription_status IN ? OR (subscription_status = ? AND current_period_end > ?)",
			[]types.SubscriptionStatus{types.SubscriptionStatusActive, types.SubscriptionStatusTrialing},
			types.SubscriptionStatusCanceled, now.UnixMilli())
}

func (s *Service) gracePeriodCountQuery(ctx context.Context, request *BillingStatisticRequest, now time.Time) *gorm.DB {
	return s.records(ctx, request).
		Select("count(*) as value").
		Where("subscription_status = ? AND current_period_end > ?", types.SubscriptionStatusCanceled, now.UnixMilli())
}

func (s *Service) dailyNewCustomerCountQuery(ctx context.Context, request *BillingStatisticRequest) *gorm.DB {
	return s.records(ctx, request).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, count(*) as value").
		Where("customer_id IS NOT NULL").
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
}

func (s *Service) dailyEventCountQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(models.BillingEventLog{}.TableName()).
		Select("TO_CHAR(event_time, 'YYYY-MM-DD') as date, event_type as label, count(*) as value").
		Where("status = ?", models.BillingEventLogStatusReceived).
		Group("TO_CHAR(event_time, 'YYYY-MM-DD')").
		Group("event_type").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
}

func (s *Service) getBillingStatistic(ctx context.Context, request *BillingStatisticRequest, dataItem *BillingStatisticDataItem) ([]BillingStatisticResponseDataItem, error) {
	var q *gorm.DB
	switch dataItem.ID {
	case StatisticTypeStatusCount:
		q = s.statusCountQuery(ctx, request)
	case StatisticTypePremiumCount:
		q = s.premiumCountQuery(ctx, request, s.evaluator.Now())
	case StatisticTypeGracePeriodCount:
		q = s.gracePeriodCountQuery(ctx, request, s.evaluator.Now())
	case StatisticTypeDailyNewCustomerCount:
		q = s.dailyNewCustomerCountQuery(ctx, request)
	case StatisticTypeDailyEventCount:
		q = s.dailyEventCountQuery(ctx)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
	var results []BillingStatisticResponseDataItem
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetBillingStatistic computes every requested data item concurrently.
func (s *Service) GetBillingStatistic(ctx context.Context, request *BillingStatisticRequest) (*BillingStatisticResponse, error) {
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []BillingStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *BillingStatisticDataItem) {
			defer wg.Done()
			res, err := s.getBillingStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []BillingStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[StatisticType][]BillingStatisticResponseDataItem)
	for i := 0; i < len(request.DataItems); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &BillingStatisticResponse{DataItems: results}, nil
}

// Validate rejects unknown data items before any query runs.
func (r *BillingStatisticRequest) Validate() error {
	if len(r.DataItems) == 0 {
		return fmt.Errorf("data_items is required")
	}
	for _, di := range r.DataItems {
		if di == nil || (!lo.Contains(recordStatistics, di.ID) && di.ID != StatisticTypeDailyEventCount) {
			return fmt.Errorf("invalid data item id")
		}
	}
	return types.ValidateFilters(r.Filters, models.UserBillingFilterColumns)
}

var Module = fx.Options(
	fx.Provide(New),
)
