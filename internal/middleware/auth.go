package middleware

import (
	"context"
	"strings"

	"civiceye/internal/apperror"
	"civiceye/internal/models"
	"civiceye/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CheckUserKey   = "user"
	SessionUserKey = "user_id"
)

type ctxKey struct{}

// WithUser returns a context carrying the caller.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the caller stored by LoadUser, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*models.User)
	return u, ok && u != nil
}

// CurrentUser returns the authenticated user of the request or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

func setUser(c *gin.Context, u *models.User) {
	c.Set(CheckUserKey, u)
	c.Request = c.Request.WithContext(WithUser(c.Request.Context(), u))
}

// LoadUser resolves the caller from a bearer token or, failing that, the
// session cookie. A bad bearer token is rejected outright; a stale session is
// cleared and the request continues anonymously.
func LoadUser(authSvc *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				AbortWithError(c, apperror.Unauthorized("authorization header must be a bearer token"))
				return
			}
			u, err := authSvc.UserFromToken(c.Request.Context(), strings.TrimSpace(token))
			if err != nil {
				AbortWithError(c, err)
				return
			}
			setUser(c, u)
			c.Next()
			return
		}

		session := sessions.Default(c)
		if userID, ok := session.Get(SessionUserKey).(string); ok && userID != "" {
			u, err := authSvc.GetUser(c.Request.Context(), userID)
			switch {
			case err == nil:
				setUser(c, u)
			case apperror.Is(err, apperror.KindNotFound):
				session.Delete(SessionUserKey)
				_ = session.Save()
			default:
				AbortWithError(c, err)
				return
			}
		}
		c.Next()
	}
}

// AuthRequired ensures a user is logged in.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			AbortWithError(c, apperror.Unauthorized("login required"))
			return
		}
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			AbortWithError(c, apperror.Unauthorized("login required"))
			return
		}
		if !u.IsAdmin() {
			AbortWithError(c, apperror.Forbidden("administrator access required"))
			return
		}
		c.Next()
	}
}
