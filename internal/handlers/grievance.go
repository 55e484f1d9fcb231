package handlers

import (
	"net/http"
	"strings"

	"civiceye/internal/apperror"
	"civiceye/internal/models"
	"civiceye/internal/services"
	"civiceye/internal/store"
	"civiceye/internal/utils"

	"github.com/gin-gonic/gin"
)

const maxPageSize = 200

type GrievanceHandler struct {
	grievances *services.GrievanceService
}

func NewGrievanceHandler(g *services.GrievanceService) *GrievanceHandler {
	return &GrievanceHandler{grievances: g}
}

func (h *GrievanceHandler) Create(c *gin.Context) {
	user := mustUser(c)

	var in services.CreateGrievanceInput
	if err := bindStrict(c, &in); err != nil {
		respondError(c, err)
		return
	}

	g, err := h.grievances.Create(c.Request.Context(), user.ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// parseFilter reads status, category, priority, from, to, order, limit and
// offset from the query string.
func parseFilter(c *gin.Context) (store.GrievanceFilter, error) {
	f := store.GrievanceFilter{
		Status:   models.GrievanceStatus(c.Query("status")),
		Category: models.Category(c.Query("category")),
		Priority: models.Priority(c.Query("priority")),
	}

	switch strings.ToLower(c.DefaultQuery("order", "desc")) {
	case "asc":
		f.Ascending = true
	case "desc":
	default:
		return f, apperror.Validation("order must be asc or desc")
	}

	if raw := c.Query("from"); raw != "" {
		from, err := utils.ParseDateParam(raw, nil)
		if err != nil {
			return f, apperror.Validation("from is not a recognisable date")
		}
		f.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := utils.ParseDateParam(raw, nil)
		if err != nil {
			return f, apperror.Validation("to is not a recognisable date")
		}
		f.To = &to
	}

	var err error
	if f.Limit, err = queryInt(c, "limit", 0); err != nil {
		return f, err
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset, err = queryInt(c, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

// List shows citizens their own grievances. Admins see everything and may
// narrow by creator_id.
func (h *GrievanceHandler) List(c *gin.Context) {
	user := mustUser(c)

	f, err := parseFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if user.IsAdmin() {
		f.CreatorID = c.Query("creator_id")
	} else {
		f.CreatorID = user.ID
	}

	rows, err := h.grievances.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grievances": rows, "count": len(rows)})
}

// visible loads a grievance the caller may see. Other citizens' grievances
// are reported as missing.
func (h *GrievanceHandler) visible(c *gin.Context, detail bool) (*models.Grievance, bool) {
	user := mustUser(c)
	load := h.grievances.Get
	if detail {
		load = h.grievances.GetDetail
	}

	g, err := load(c.Request.Context(), c.Param("id"))
	if err == nil && !user.IsAdmin() && g.UserID != user.ID {
		err = apperror.NotFound("grievance")
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return g, true
}

func (h *GrievanceHandler) Get(c *gin.Context) {
	g, ok := h.visible(c, true)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GrievanceHandler) History(c *gin.Context) {
	g, ok := h.visible(c, false)
	if !ok {
		return
	}
	rows, err := h.grievances.History(c.Request.Context(), g.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": rows})
}

// MapPins is public and exposes no creator information.
func (h *GrievanceHandler) MapPins(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	pins, err := h.grievances.MapPins(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pins": pins})
}
