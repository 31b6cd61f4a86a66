package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	mw "github.com/studygenius/billing/internal/app/api/middleware"
	"github.com/studygenius/billing/internal/app/service/access"
	"github.com/studygenius/billing/internal/app/service/billing"
	"github.com/studygenius/billing/internal/models"
	"github.com/studygenius/billing/pkg/response"
	"github.com/studygenius/billing/pkg/types"
)

type BillingRecordReader interface {
	Get(ctx context.Context, userID string) (*models.UserBilling, error)
}

// AccessView is the billing state of a user with the access decision taken
// at EvaluatedAt.
type AccessView struct {
	UserID             string                   `json:"user_id"`
	SubscriptionStatus types.SubscriptionStatus `json:"subscription_status"`
	PlanInterval       *types.PlanInterval      `json:"plan_interval"`
	CurrentPeriodEnd   *int64                   `json:"current_period_end"`
	IsPremium          bool                     `json:"is_premium"`
	EvaluatedAt        time.Time                `json:"evaluated_at"`
}

func toAccessView(rec *models.UserBilling, premium bool, at time.Time) *AccessView {
	return &AccessView{
		UserID:             rec.UserID,
		SubscriptionStatus: rec.SubscriptionStatus,
		PlanInterval:       rec.PlanInterval,
		CurrentPeriodEnd:   rec.CurrentPeriodEnd,
		IsPremium:          premium,
		EvaluatedAt:        at,
	}
}

// @Summary      Get Premium Access
// @Description  Returns the caller's billing state and whether premium access is granted right now.
// @Tags         Billing
// @Produce      json
// @Security     FirebaseAuth
// @Success      200  {object}  handlers.RespAccess
// @Router       /api/v1/billing/access [get]
func ApiGetAccess(store BillingRecordReader, evaluator *access.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := mw.UserID(c)
		rec, err := store.Get(c.Request.Context(), uid)
		if err != nil && !errors.Is(err, billing.ErrRecordNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		now := evaluator.Now()
		premium := access.HasPremiumAccess(rec, now)
		if rec == nil {
			rec = &models.UserBilling{UserID: uid, SubscriptionStatus: types.SubscriptionStatusFree}
		}
		c.JSON(http.StatusOK, response.OKT(toAccessView(rec, premium, now)))
	}
}

func RegisterBillingAccessRoutes(r gin.IRouter, store BillingRecordReader, evaluator *access.Evaluator) {
	r.GET("/access", ApiGetAccess(store, evaluator))
}
