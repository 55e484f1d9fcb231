package handlers

import (
	"net/http"

	"civiceye/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	auth  *services.AuthService
	stats *services.StatsService
}

func NewUserHandler(a *services.AuthService, s *services.StatsService) *UserHandler {
	return &UserHandler{auth: a, stats: s}
}

func (h *UserHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, mustUser(c))
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	user := mustUser(c)

	var in services.UpdateProfileInput
	if err := bindStrict(c, &in); err != nil {
		respondError(c, err)
		return
	}

	updated, err := h.auth.UpdateProfile(c.Request.Context(), user.ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *UserHandler) Stats(c *gin.Context) {
	stats, err := h.stats.UserStats(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
