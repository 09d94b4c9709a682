package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
	"github.com/sprintline/sprintline/internal/observability/logger"
)

type paymentWebhookEvent struct {
	Type              string `json:"type"`
	CheckoutSessionID string `json:"checkout_session_id"`
	PaymentIntentID   string `json:"payment_intent_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
}

// HandlePaymentWebhook ingests checkout confirmations. Redeliveries
// resolve through the idempotent paths and return 200 so the provider
// stops retrying.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	var event paymentWebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil || event.CheckoutSessionID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}
	if event.Type != "" && event.Type != "checkout.completed" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ctx := c.Request.Context()

	// A pre-account purchase completes here; an account-holder's
	// checkout activates the enrollment. Sessions unknown to one side
	// pass through to the other.
	if _, err := s.purchaseSvc.Complete(ctx, event.CheckoutSessionID); err != nil {
		if !errors.Is(err, enrollmentdomain.ErrPendingPurchaseNotFound) {
			AbortWithError(c, err)
			return
		}
	} else {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	_, err := s.enrollmentSvc.Activate(ctx, enrollmentdomain.ActivateRequest{
		CheckoutSessionID: event.CheckoutSessionID,
		PaymentIntentID:   event.PaymentIntentID,
		AmountPaid:        event.Amount,
		Currency:          event.Currency,
	})
	if err != nil {
		if errors.Is(err, enrollmentdomain.ErrEnrollmentNotFound) {
			logger.FromContext(ctx).Warn("webhook for unknown checkout session",
				zap.String("checkout_session_id", event.CheckoutSessionID))
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
