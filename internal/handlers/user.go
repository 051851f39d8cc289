package handlers

import (
	"net/http"
	"time"

	"threadspire/internal/auth"
	"threadspire/internal/middleware"
	"threadspire/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	profiles  *services.ProfileService
	jwtSecret string
}

func NewUserHandler(svc *services.Services, jwtSecret string) *UserHandler {
	return &UserHandler{profiles: svc.Profiles, jwtSecret: jwtSecret}
}

// Login exchanges a token issued by the identity provider for a session
// cookie, so browser pages do not need to carry the bearer header.
func (h *UserHandler) Login(c *gin.Context) {
	var body struct {
		Token string `json:"token" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	userID, err := auth.ParseToken(h.jwtSecret, body.Token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "invalid_token", "message": err.Error()}})
		return
	}
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, userID)
	if err := session.Save(); err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID})
}

func (h *UserHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Token issues a short lived bearer token for the current session user.
func (h *UserHandler) Token(c *gin.Context) {
	userID, _ := auth.UserID(c.Request.Context())
	token, err := auth.IssueToken(h.jwtSecret, userID, time.Hour)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": 3600})
}

func (h *UserHandler) Profile(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var in services.ProfileInput
	if !bindJSON(c, &in) {
		return
	}
	p, err := h.profiles.Upsert(c.Request.Context(), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
