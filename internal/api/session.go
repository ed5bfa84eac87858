package api

import (
	"github.com/gin-gonic/gin"

	"voice-beyond/companion/internal/session"
	apperrors "voice-beyond/companion/pkg/errors"
)

// SessionHeader carries the chat session id between the UI and the server.
const SessionHeader = "X-Session-ID"

// currentSession returns the caller's session, creating one when the header
// is missing or unknown, and echoes its id back.
func currentSession(c *gin.Context, sessions *session.Manager) *session.Session {
	s, _ := sessions.Get(c.GetHeader(SessionHeader))
	c.Header(SessionHeader, s.ID)
	return s
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(apperrors.NewValidationError(apperrors.CodeValidation, "Invalid request format").WithCause(err))
}
