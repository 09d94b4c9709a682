package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	checklistdomain "github.com/sprintline/sprintline/internal/checklist/domain"
)

type checklistItemRequest struct {
	Day    *int   `json:"day"`
	ItemID string `json:"item_id"`
}

func (s *Server) bindChecklistItem(c *gin.Context) (*checklistItemRequest, bool) {
	var req checklistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Day == nil || req.ItemID == "" {
		AbortWithError(c, invalidRequestError())
		return nil, false
	}
	return &req, true
}

func (s *Server) ToggleChecklistItem(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	req, ok := s.bindChecklistItem(c)
	if !ok {
		return
	}

	result, err := s.checklistSvc.Toggle(c.Request.Context(), resolved.ID, *req.Day, req.ItemID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) CompleteChecklistItem(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	req, ok := s.bindChecklistItem(c)
	if !ok {
		return
	}

	if err := s.checklistSvc.Complete(c.Request.Context(), resolved.ID, *req.Day, req.ItemID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, checklistdomain.ToggleResult{ItemID: req.ItemID, Day: *req.Day, Completed: true})
}

func (s *Server) UncompleteChecklistItem(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	req, ok := s.bindChecklistItem(c)
	if !ok {
		return
	}

	if err := s.checklistSvc.Uncomplete(c.Request.Context(), resolved.ID, *req.Day, req.ItemID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, checklistdomain.ToggleResult{ItemID: req.ItemID, Day: *req.Day, Completed: false})
}

func (s *Server) GetChecklistOverview(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	overview, err := s.checklistSvc.Overview(c.Request.Context(), resolved.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": overview})
}

func (s *Server) GetChecklistDay(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	summary, err := s.checklistSvc.Summary(c.Request.Context(), resolved.ID, day)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
