package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	enrollmentdomain "github.com/sprintline/sprintline/internal/enrollment/domain"
)

type createEnrollmentRequest struct {
	CohortSlug        string `json:"cohort_slug"`
	CheckoutSessionID string `json:"checkout_session_id"`
}

func (s *Server) CreatePendingEnrollment(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	var req createEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CheckoutSessionID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	cohortSlug := strings.TrimSpace(req.CohortSlug)
	if cohortSlug == "" {
		AbortWithError(c, invalidRequestError())
		return
	}
	cohort, err := s.cohortRepo.FindBySlug(c.Request.Context(), s.db, cohortSlug)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if cohort == nil {
		AbortWithError(c, enrollmentdomain.ErrCohortNotFound)
		return
	}

	created, err := s.enrollmentSvc.CreatePending(c.Request.Context(), enrollmentdomain.CreatePendingRequest{
		UserID:            resolved.ID,
		CohortID:          cohort.ID,
		CheckoutSessionID: req.CheckoutSessionID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

func (s *Server) GetCurrentEnrollment(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	enrollment, err := s.enrollmentSvc.GetCurrentByUser(c.Request.Context(), resolved.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollment)
}

func (s *Server) enrollmentIDParam(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return 0, false
	}
	return id, true
}

// ownedEnrollment loads the enrollment and enforces record ownership.
func (s *Server) ownedEnrollment(c *gin.Context) (*enrollmentdomain.Enrollment, bool) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return nil, false
	}
	id, ok := s.enrollmentIDParam(c)
	if !ok {
		return nil, false
	}

	enrollment, err := s.enrollmentSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if enrollment.UserID != resolved.ID {
		AbortWithError(c, enrollmentdomain.ErrEnrollmentNotFound)
		return nil, false
	}
	return enrollment, true
}

func (s *Server) MarkEnrollmentCompleted(c *gin.Context) {
	enrollment, ok := s.ownedEnrollment(c)
	if !ok {
		return
	}

	updated, err := s.enrollmentSvc.MarkCompleted(c.Request.Context(), enrollment.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) ApplyEnrollmentCredit(c *gin.Context) {
	enrollment, ok := s.ownedEnrollment(c)
	if !ok {
		return
	}

	updated, err := s.enrollmentSvc.ApplyCredit(c.Request.Context(), enrollment.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
