package handlers

import (
	"net/http"

	"civiceye/internal/apperror"
	"civiceye/internal/middleware"
	"civiceye/internal/models"
	"civiceye/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(a *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: a}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token,omitempty"`
}

// startSession stores the user id in the cookie session and, when bearer
// tokens are enabled, returns a token as well.
func (h *AuthHandler) startSession(c *gin.Context, status int, u *models.User) {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, u.ID)
	if err := session.Save(); err != nil {
		respondError(c, apperror.Internal(err))
		return
	}

	token, err := h.auth.IssueToken(u)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, authResponse{User: u, Token: token})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := bindStrict(c, &in); err != nil {
		respondError(c, err)
		return
	}

	u, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.startSession(c, http.StatusCreated, u)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var in loginRequest
	if err := bindStrict(c, &in); err != nil {
		respondError(c, err)
		return
	}

	u, err := h.auth.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.startSession(c, http.StatusOK, u)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, apperror.Internal(err))
		return
	}
	c.Status(http.StatusNoContent)
}
