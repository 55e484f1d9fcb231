package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"civiceye/internal/apperror"
	"civiceye/internal/middleware"
	"civiceye/internal/models"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 1 << 20

// bindStrict decodes a JSON body into dst, rejecting unknown fields and
// trailing data.
func bindStrict(c *gin.Context, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation("request body is required")
		}
		return apperror.Validation("invalid request body").WithDetails(map[string]string{"reason": err.Error()})
	}
	if dec.More() {
		return apperror.Validation("request body must contain a single JSON object")
	}
	return nil
}

func respondError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

// mustUser is only used behind AuthRequired.
func mustUser(c *gin.Context) *models.User {
	return c.MustGet(middleware.CheckUserKey).(*models.User)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation(key + " must be an integer")
	}
	return n, nil
}
