package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sprintline/sprintline/internal/usercontext"
	userdomain "github.com/sprintline/sprintline/internal/user/domain"
)

// HeaderAuthSubject carries the already-authenticated external subject.
// Authentication itself happens upstream; an unknown subject is a hard
// failure for everything behind this middleware.
const HeaderAuthSubject = "X-Auth-Subject"

func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := strings.TrimSpace(c.GetHeader(HeaderAuthSubject))
		if subject == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		resolved, err := s.userSvc.Resolve(c.Request.Context(), subject)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Request = c.Request.WithContext(usercontext.WithUser(c.Request.Context(), resolved))
		c.Next()
	}
}

func currentUser(c *gin.Context) (userdomain.User, bool) {
	return usercontext.UserFromContext(c.Request.Context())
}
