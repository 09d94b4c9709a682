package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
)

type createPendingPurchaseRequest struct {
	Email             string            `json:"email"`
	CheckoutSessionID string            `json:"checkout_session_id"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	LocalProgress     datatypes.JSONMap `json:"local_progress"`
}

// CreatePendingPurchase captures a checkout that starts before the
// buyer has an account, including any client-side checklist state.
func (s *Server) CreatePendingPurchase(c *gin.Context) {
	var req createPendingPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	purchase, err := s.purchaseSvc.Create(c.Request.Context(), enrollmentdomain.CreatePendingPurchaseRequest{
		Email:             req.Email,
		CheckoutSessionID: req.CheckoutSessionID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		LocalProgress:     req.LocalProgress,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchase)
}
