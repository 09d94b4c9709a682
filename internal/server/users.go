package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	userdomain "github.com/sprintline/sprintline/internal/user/domain"
)

type createUserRequest struct {
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
}

func (s *Server) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.userSvc.Create(c.Request.Context(), userdomain.CreateUserRequest{
		ExternalID: req.ExternalID,
		Email:      req.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, created)
}

func (s *Server) GetCurrentUser(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, resolved)
}
