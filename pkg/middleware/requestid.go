package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Key types for context values
type contextKey string

const (
	// RequestIDKey is the key for request ID values in contexts
	RequestIDKey contextKey = "requestID"
	// SessionIDKey is the key for chat session ID values in contexts
	SessionIDKey contextKey = "sessionID"

	RequestIDHeader = "X-Request-ID"
	SessionIDHeader = "X-Session-ID"
)

// RequestIDMiddleware adds a unique request ID to each request
// and sets it in both the context and response headers
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
			c.Request.Header.Set(RequestIDHeader, requestID)
		}

		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Header(RequestIDHeader, requestID)
		c.Set("requestID", requestID)

		c.Next()
	}
}

// SessionIDMiddleware makes sure every API request names a chat session.
// A missing id is generated and echoed so the UI can keep using it.
func SessionIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionIDHeader)
		if sessionID == "" {
			sessionID = uuid.New().String()
			c.Request.Header.Set(SessionIDHeader, sessionID)
		}

		ctx := context.WithValue(c.Request.Context(), SessionIDKey, sessionID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(SessionIDHeader, sessionID)
		c.Set("sessionID", sessionID)

		c.Next()
	}
}

// GetRequestID extracts the request ID from a context
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetSessionID extracts the chat session ID from a context
func GetSessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}
