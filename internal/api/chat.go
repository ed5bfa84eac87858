package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-beyond/companion/internal/service"
	"voice-beyond/companion/internal/session"
)

type selectRequest struct {
	CharacterID string `json:"characterId"`
}

type sendRequest struct {
	Message string `json:"message"`
}

// ChatHandler runs chat turns for HTTP and websocket clients
type ChatHandler struct {
	orchestrator *session.Orchestrator
	sessions     *session.Manager
	users        *service.UserService
}

func NewChatHandler(orchestrator *session.Orchestrator, sessions *session.Manager, users *service.UserService) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator, sessions: sessions, users: users}
}

// SelectCharacter opens a character; an empty id takes the pending selection
func (h *ChatHandler) SelectCharacter(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	s := currentSession(c, h.sessions)
	snap, err := h.selectCharacter(c.Request.Context(), s, req.CharacterID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SendMessage runs one turn. The turn outlives a dropped connection.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := currentSession(c, h.sessions)
	result, err := h.orchestrator.Send(context.WithoutCancel(c.Request.Context()), s, req.Message)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"turn":       result,
		"transcript": s.Transcript(),
	})
}

// Transcript returns the session's character, transcript and input state
func (h *ChatHandler) Transcript(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c, h.sessions).Snapshot())
}

// Send implements the websocket chat command.
func (h *ChatHandler) Send(ctx context.Context, sessionID, text string) error {
	s, _ := h.sessions.Get(sessionID)
	_, err := h.orchestrator.Send(ctx, s, text)
	return err
}

// Select implements the websocket select command.
func (h *ChatHandler) Select(ctx context.Context, sessionID, characterID string) error {
	s, _ := h.sessions.Get(sessionID)
	_, err := h.selectCharacter(ctx, s, characterID)
	return err
}

func (h *ChatHandler) selectCharacter(ctx context.Context, s *session.Session, characterID string) (session.Snapshot, error) {
	user, err := h.users.Current(ctx)
	if err != nil {
		return session.Snapshot{}, err
	}
	s.SetUser(user)
	return h.orchestrator.SelectCharacter(ctx, s, characterID)
}
