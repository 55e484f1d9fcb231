package middleware

import (
	"errors"

	"civiceye/internal/apperror"
	"civiceye/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type errorBody struct {
	Error *apperror.Error `json:"error"`
}

// AbortWithError renders err as {"error": {"code", "message", "details"}}.
// Internal errors are logged with request context and replaced by an opaque
// message.
func AbortWithError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.Kind == apperror.KindInternal {
		logger.Log.WithFields(logrus.Fields{
			"request_id": c.GetString(RequestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
		}).WithError(err).Error("Request failed")
		appErr = apperror.Internal(nil)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(apperror.HTTPStatus(appErr.Kind), errorBody{Error: appErr})
}

func toAppError(err error) *apperror.Error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.Internal(err)
}
