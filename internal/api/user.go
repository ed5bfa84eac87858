package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/internal/service"
	"voice-beyond/companion/internal/session"
)

// UserHandler exposes the active profile
type UserHandler struct {
	users    *service.UserService
	sessions *session.Manager
}

func NewUserHandler(users *service.UserService, sessions *session.Manager) *UserHandler {
	return &UserHandler{users: users, sessions: sessions}
}

// Me returns the active user; guest is reported when nobody is signed in
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Current(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	currentSession(c, h.sessions).SetUser(user)
	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"ownerId": models.OwnerID(user),
		"guest":   user == nil,
	})
}

// Logout clears the stored profile
func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	currentSession(c, h.sessions).SetUser(nil)
	c.Status(http.StatusNoContent)
}
