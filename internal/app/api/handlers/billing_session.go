package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/studygenius/billing/internal/app/api/middleware"
	"github.com/studygenius/billing/internal/app/service/checkout"
	"github.com/studygenius/billing/pkg/logctx"
)

type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, id checkout.Identity, req *checkout.CreateCheckoutRequest) (*checkout.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, id checkout.Identity, returnURL string) (*checkout.PortalSession, error)
}

type CreatePortalSessionRequest struct {
	ReturnURL string `json:"returnUrl"`
}

func sessionError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": gin.H{"message": msg}})
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, out any) error {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func identity(c *gin.Context) checkout.Identity {
	return checkout.Identity{UserID: mw.UserID(c), Email: mw.UserEmail(c)}
}

// @Summary      Create Checkout Session
// @Description  Creates a Stripe subscription checkout session for the authenticated user. A priceId wins over a named plan.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Security     FirebaseAuth
// @Param        request body checkout.CreateCheckoutRequest true "Price or plan"
// @Success      200  {object}  checkout.CheckoutSession
// @Failure      400  {object}  handlers.RespSessionError
// @Failure      401  {object}  handlers.RespSessionError
// @Failure      500  {object}  handlers.RespSessionError
// @Router       /api/create-checkout-session [post]
func ApiCreateCheckoutSession(svc CheckoutService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkout.CreateCheckoutRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			sessionError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		out, err := svc.CreateCheckoutSession(c.Request.Context(), identity(c), &req)
		if err != nil {
			if errors.Is(err, checkout.ErrMissingPlan) {
				sessionError(c, http.StatusBadRequest, `Missing priceId or plan in request. (expected priceId or plan: "basic" | "pro")`)
				return
			}
			logctx.FromGin(c, log).Errorw("checkout_session_failed", "error", err.Error())
			sessionError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary      Create Billing Portal Session
// @Description  Creates a Stripe billing portal session for the authenticated user's customer.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Security     FirebaseAuth
// @Param        request body handlers.CreatePortalSessionRequest false "Return URL"
// @Success      200  {object}  checkout.PortalSession
// @Failure      400  {object}  handlers.RespSessionError
// @Failure      401  {object}  handlers.RespSessionError
// @Failure      500  {object}  handlers.RespSessionError
// @Router       /api/create-portal-session [post]
func ApiCreatePortalSession(svc CheckoutService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreatePortalSessionRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			sessionError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		out, err := svc.CreatePortalSession(c.Request.Context(), identity(c), req.ReturnURL)
		if err != nil {
			if errors.Is(err, checkout.ErrNoCustomer) {
				sessionError(c, http.StatusBadRequest, "No Stripe customer found. Please subscribe first.")
				return
			}
			logctx.FromGin(c, log).Errorw("portal_session_failed", "error", err.Error())
			sessionError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func RegisterBillingSessionRoutes(r gin.IRouter, svc CheckoutService, log *zap.SugaredLogger) {
	r.POST("/create-checkout-session", ApiCreateCheckoutSession(svc, log))
	r.POST("/create-portal-session", ApiCreatePortalSession(svc, log))
}
