package ai

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"voice-beyond/companion/internal/models"
)

// DefaultReply is used when the backend answers without reply text.
const DefaultReply = "I'm here to listen."

// ChatMetadata describes the active character to the backend.
type ChatMetadata struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Personality  string `json:"personality"`
	Topics       string `json:"topics"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message     string        `json:"message"`
	CharacterID *string       `json:"character_id"`
	Metadata    *ChatMetadata `json:"metadata,omitempty"`
}

// NewChatRequest builds a chat request; character may be nil.
func NewChatRequest(message string, character *models.Character) ChatRequest {
	req := ChatRequest{Message: message}
	if character != nil {
		id := character.ID
		req.CharacterID = &id
		req.Metadata = &ChatMetadata{
			Name:         character.Name,
			Relationship: character.Relationship,
			Personality:  character.Personality,
			Topics:       character.Topics,
		}
	}
	return req
}

// ChatResponse accepts both reply field names the backend has used.
type ChatResponse struct {
	Reply    string `json:"reply"`
	Response string `json:"response"`
}

// Text picks reply, then response, then the default.
func (r ChatResponse) Text() string {
	if r.Reply != "" {
		return r.Reply
	}
	if r.Response != "" {
		return r.Response
	}
	return DefaultReply
}

// FlexibleID decodes an id sent either as a JSON number or a string.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*id = FlexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = FlexibleID(n.String())
	return nil
}

// BackendUser is the user object returned by login and register.
type BackendUser struct {
	ID       FlexibleID `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email,omitempty"`
}

// AuthResponse is returned by POST /login and POST /register.
type AuthResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    BackendUser `json:"user"`
}

// HealthInfo is the body of GET /health.
type HealthInfo struct {
	Status     string `json:"status"`
	AIProvider string `json:"ai_provider,omitempty"`
}

// VoiceInfo is returned by GET /character-voice/{id}.
type VoiceInfo struct {
	Success bool   `json:"success"`
	VoiceID string `json:"voice_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// GenerateVoiceRequest is the body of POST /generate-voice.
type GenerateVoiceRequest struct {
	CharacterID string `json:"character_id"`
	Text        string `json:"text"`
}

// GenerateVoiceResponse carries the synthesized audio location.
type GenerateVoiceResponse struct {
	Success     bool   `json:"success"`
	AudioURL    string `json:"audio_url"`
	DownloadURL string `json:"download_url"`
}

// URL picks audio_url, then download_url.
func (r GenerateVoiceResponse) URL() string {
	if r.AudioURL != "" {
		return r.AudioURL
	}
	return r.DownloadURL
}

// UploadResult is the free-form acknowledgement of an upload endpoint.
type UploadResult map[string]any

// FilePart is one file attached to a multipart upload.
type FilePart struct {
	Filename string
	Content  io.Reader
}
