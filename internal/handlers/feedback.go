package handlers

import (
	"net/http"

	"civiceye/internal/middleware"
	"civiceye/internal/services"

	"github.com/gin-gonic/gin"
)

type FeedbackHandler struct {
	feedback *services.FeedbackService
}

func NewFeedbackHandler(f *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: f}
}

// Submit accepts anonymous feedback; a logged in caller is recorded as the
// submitter.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var in services.SubmitFeedbackInput
	if err := bindStrict(c, &in); err != nil {
		respondError(c, err)
		return
	}

	var userID string
	if u := middleware.CurrentUser(c); u != nil {
		userID = u.ID
	}

	f, err := h.feedback.Submit(c.Request.Context(), c.Param("id"), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *FeedbackHandler) Public(c *gin.Context) {
	rows, err := h.feedback.ListPublic(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": rows})
}
