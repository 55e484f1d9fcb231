package handlers

import (
	"net/http"

	"civiceye/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the routes behind AdminRequired.
type AdminHandler struct {
	grievances *services.GrievanceService
	feedback   *services.FeedbackService
	stats      *services.StatsService
}

func NewAdminHandler(g *services.GrievanceService, f *services.FeedbackService, s *services.StatsService) *AdminHandler {
	return &AdminHandler{grievances: g, feedback: f, stats: s}
}

func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	admin := mustUser(c)

	var in services.SetStatusInput
	if err := bindStrict(c, &in); err != nil {
		respondError(c, err)
		return
	}

	g, err := h.grievances.SetStatus(c.Request.Context(), admin.ID, c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *AdminHandler) ListFeedback(c *gin.Context) {
	rows, err := h.feedback.ListForAdmin(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": rows})
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.stats.GlobalStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
