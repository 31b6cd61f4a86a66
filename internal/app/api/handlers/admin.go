package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/studygenius/billing/internal/app/service/access"
	"github.com/studygenius/billing/internal/app/service/billing"
	"github.com/studygenius/billing/internal/app/service/statistics"
	"github.com/studygenius/billing/internal/models"
	"github.com/studygenius/billing/pkg/response"
	"github.com/studygenius/billing/pkg/types"
)

type BillingRecordScanner interface {
	Scan(ctx context.Context, req *billing.ScanRequest) (*billing.ScanResponse, error)
}

type ListBillingRecordsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// BillingRecordItem is a stored record annotated with the access decision.
type BillingRecordItem struct {
	UserID             string                   `json:"user_id"`
	CustomerID         *string                  `json:"customer_id"`
	SubscriptionID     *string                  `json:"subscription_id"`
	SubscriptionStatus types.SubscriptionStatus `json:"subscription_status"`
	PlanInterval       *types.PlanInterval      `json:"plan_interval"`
	CurrentPeriodEnd   *int64                   `json:"current_period_end"`
	IsPremiumCached    bool                     `json:"is_premium_cached"`
	HasAccess          bool                     `json:"has_access"`
	LastEventID        string                   `json:"last_event_id"`
	LastEventAt        *time.Time               `json:"last_event_at"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

func toBillingRecordItem(m *models.UserBilling, now time.Time) *BillingRecordItem {
	return &BillingRecordItem{
		UserID:             m.UserID,
		CustomerID:         m.CustomerID,
		SubscriptionID:     m.SubscriptionID,
		SubscriptionStatus: m.SubscriptionStatus,
		PlanInterval:       m.PlanInterval,
		CurrentPeriodEnd:   m.CurrentPeriodEnd,
		IsPremiumCached:    m.IsPremium,
		HasAccess:          access.HasPremiumAccess(m, now),
		LastEventID:        m.LastEventID,
		LastEventAt:        m.LastEventAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

type ListBillingRecordsResponse struct {
	Items []*BillingRecordItem `json:"items"`
	Total int64                `json:"total"`
}

// @Summary      List Billing Records (Admin)
// @Description  Retrieves a paginated and filterable list of billing records, each with the current access decision.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminKey
// @Param        request body ListBillingRecordsRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListBillingRecords
// @Router       /api/v1/admin/list_billing_records [post]
func ApiListBillingRecords(store BillingRecordScanner, evaluator *access.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListBillingRecordsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		scanReq := &billing.ScanRequest{Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder}
		res, err := store.Scan(c.Request.Context(), scanReq)
		if errors.Is(err, types.ErrInvalidFilter) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		now := evaluator.Now()
		items := lo.Map(res.Items, func(it *models.UserBilling, _ int) *BillingRecordItem { return toBillingRecordItem(it, now) })
		c.JSON(http.StatusOK, response.OKT(&ListBillingRecordsResponse{Items: items, Total: res.Total}))
	}
}

// @Summary      Get Billing Statistics (Admin)
// @Description  Counts per subscription status, premium users now, grace period users, new customers and webhook events.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     AdminKey
// @Param        request body statistics.BillingStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespBillingStatistic
// @Router       /api/v1/admin/get_billing_statistic [post]
func ApiGetBillingStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.BillingStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetBillingStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminBillingRoutes(r gin.IRouter, store BillingRecordScanner, evaluator *access.Evaluator, stats *statistics.Service) {
	r.POST("/list_billing_records", ApiListBillingRecords(store, evaluator))
	r.POST("/get_billing_statistic", ApiGetBillingStatistic(stats))
}
