package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	progressdomain "github.com/sprintline/sprintline/internal/progress/domain"
)

func (s *Server) dayParam(c *gin.Context) (int, bool) {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return 0, false
	}
	return day, true
}

func (s *Server) markDayFlag(c *gin.Context, mark func(ctx *gin.Context, userID snowflake.ID, day int) (*progressdomain.MarkResult, error)) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	day, ok := s.dayParam(c)
	if !ok {
		return
	}

	result, err := mark(c, resolved.ID, day)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) MarkTrainingWatched(c *gin.Context) {
	s.markDayFlag(c, func(c *gin.Context, userID snowflake.ID, day int) (*progressdomain.MarkResult, error) {
		return s.progressSvc.MarkTrainingWatched(c.Request.Context(), userID, day)
	})
}

func (s *Server) MarkWorksheetCompleted(c *gin.Context) {
	s.markDayFlag(c, func(c *gin.Context, userID snowflake.ID, day int) (*progressdomain.MarkResult, error) {
		return s.progressSvc.MarkWorksheetCompleted(c.Request.Context(), userID, day)
	})
}

func (s *Server) MarkProgressPosted(c *gin.Context) {
	s.markDayFlag(c, func(c *gin.Context, userID snowflake.ID, day int) (*progressdomain.MarkResult, error) {
		return s.progressSvc.MarkProgressPosted(c.Request.Context(), userID, day)
	})
}

func (s *Server) GetDayProgress(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	day, ok := s.dayParam(c)
	if !ok {
		return
	}

	row, err := s.progressSvc.GetByUserAndDay(c.Request.Context(), resolved.ID, day)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) ListProgress(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	rows, err := s.progressSvc.ListByUser(c.Request.Context(), resolved.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": rows})
}

func (s *Server) GetCurrentDay(c *gin.Context) {
	resolved, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	day, row, err := s.progressSvc.CurrentDayProgress(c.Request.Context(), resolved.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current_day": day, "progress": row})
}
