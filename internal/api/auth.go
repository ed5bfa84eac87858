package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/internal/service"
	"voice-beyond/companion/internal/session"
	"voice-beyond/companion/pkg/logger"
)

// AuthHandler signs users in and out
type AuthHandler struct {
	users    *service.UserService
	sessions *session.Manager
	logger   *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *service.UserService, sessions *session.Manager, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, logger: logger}
}

// Guest signs in the built-in demo profile
func (h *AuthHandler) Guest(c *gin.Context) {
	user, err := h.users.MockLogin(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	currentSession(c, h.sessions).SetUser(user)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Login authenticates against the companion backend
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.FromGin(c, h.logger).Warn("Error binding JSON for login", "error", err.Error())
		badRequest(c, err)
		return
	}

	user, err := h.users.Login(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	currentSession(c, h.sessions).SetUser(user)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Register creates a backend account and signs it in
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.FromGin(c, h.logger).Warn("Error binding JSON for register", "error", err.Error())
		badRequest(c, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	currentSession(c, h.sessions).SetUser(user)
	c.JSON(http.StatusCreated, gin.H{"user": user})
}
