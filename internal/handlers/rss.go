package handlers

import (
	"net/http"

	"civiceye/internal/services"

	"github.com/gin-gonic/gin"
)

// CityUpdatesHandler serves the read-only city news panel.
type CityUpdatesHandler struct {
	updates *services.CityUpdatesService
}

func NewCityUpdatesHandler(u *services.CityUpdatesService) *CityUpdatesHandler {
	return &CityUpdatesHandler{updates: u}
}

func (h *CityUpdatesHandler) List(c *gin.Context) {
	items, err := h.updates.Latest(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=60")
	c.JSON(http.StatusOK, gin.H{"updates": items})
}

func (h *CityUpdatesHandler) Read(c *gin.Context) {
	article, err := h.updates.Read(c.Request.Context(), c.Query("link"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}
