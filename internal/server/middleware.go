package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/numericalz/practicehub/internal/actorcontext"
	userdomain "github.com/numericalz/practicehub/internal/user/domain"
)

// HeaderUser carries the acting user's id. Session mechanics live in the
// perimeter proxy; the API trusts this header once the perimeter has
// authenticated the request.
const HeaderUser = "X-User-ID"

// ActorRequired resolves the acting user and stores the actor snapshot on
// the request context. Unknown or deactivated users are rejected.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUser))
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actingUser, err := s.userSvc.GetByID(c.Request.Context(), userdomain.GetUserRequest{ID: userID})
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !actingUser.IsActive {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := actorcontext.WithActor(c.Request.Context(), actorcontext.Actor{
			ID:    actingUser.ID,
			Name:  actingUser.Name,
			Email: actingUser.Email,
			Role:  string(actingUser.Role),
		})
		ctx = actorcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = actorcontext.WithUserAgent(ctx, c.Request.UserAgent())
		if requestID := strings.TrimSpace(c.GetHeader("X-Request-ID")); requestID != "" {
			ctx = actorcontext.WithRequestID(ctx, requestID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requireAuthz enforces the role policy for one object/action pair using
// the actor placed on the context by ActorRequired.
func (s *Server) requireAuthz(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorcontext.ActorFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if err := s.authzSvc.Authorize(c.Request.Context(), actor.ID.String(), actor.Role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
