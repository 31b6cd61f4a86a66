package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studygenius/billing/internal/app/service/webhook"
	"github.com/studygenius/billing/internal/platform/stripe/stripe_event"
	"github.com/studygenius/billing/pkg/logctx"
)

const maxWebhookBodyBytes = 1 << 20

type WebhookService interface {
	Handle(ctx context.Context, payload []byte, signature string) (webhook.Outcome, error)
}

// @Summary      Stripe Webhook
// @Description  Receives signed Stripe events and reconciles them into billing records. The raw body must be passed through unmodified for signature verification.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Stripe signature header"
// @Param        payload body object true "Stripe event"
// @Success      200  {object}  handlers.RespWebhookReceived
// @Failure      400  {object}  handlers.RespWebhookError
// @Failure      500  {object}  handlers.RespWebhookError
// @Router       /api/webhook [post]
func ApiStripeWebhook(svc WebhookService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		outcome, err := svc.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			if errors.Is(err, stripe_event.ErrInvalidSignature) || errors.Is(err, stripe_event.ErrMalformedEnvelope) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			logctx.FromGin(c, log).Errorw("webhook_handle_error", "outcome", outcome, "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook handler failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func RegisterBillingWebhookRoutes(r gin.IRouter, svc WebhookService, log *zap.SugaredLogger) {
	r.POST("/webhook", ApiStripeWebhook(svc, log))
}
