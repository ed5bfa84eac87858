package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voice-beyond/companion/internal/models"
	apperrors "voice-beyond/companion/pkg/errors"
	"voice-beyond/companion/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(ClientConfig{
		BaseURL:     srv.URL + "/api",
		ChatTimeout: 2 * time.Second,
	}, nil, logger.Nop())
	return c, srv
}

func TestChatSendsCharacterMetadata(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hi", body["message"])
		assert.Equal(t, "char_1", body["character_id"])
		meta := body["metadata"].(map[string]any)
		assert.Equal(t, "Mom", meta["name"])
		assert.Equal(t, "Mother", meta["relationship"])

		w.Write([]byte(`{"reply":"Hi sweetheart"}`))
	})

	text, err := c.Chat(context.Background(), NewChatRequest("hi", &models.Character{
		ID: "char_1", Name: "Mom", Relationship: "Mother", Personality: "warm",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Hi sweetheart", text)
}

func TestChatWithoutCharacter(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		v, ok := body["character_id"]
		assert.True(t, ok)
		assert.Nil(t, v)
		_, ok = body["metadata"]
		assert.False(t, ok)
		w.Write([]byte(`{"response":"legacy field"}`))
	})

	text, err := c.Chat(context.Background(), NewChatRequest("hi", nil))
	require.NoError(t, err)
	assert.Equal(t, "legacy field", text)
}

func TestChatEmptyBodyUsesDefault(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	text, err := c.Chat(context.Background(), NewChatRequest("hi", nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultReply, text)
}

func TestChatErrorStatusUsesDetail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"model overloaded"}`))
	})
	_, err := c.Chat(context.Background(), NewChatRequest("hi", nil))
	require.Error(t, err)
	assert.True(t, apperrors.IsNetwork(err))
	assert.Equal(t, "model overloaded", apperrors.GetErrorMessage(err))
}

func TestChatMalformedBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	})
	_, err := c.Chat(context.Background(), NewChatRequest("hi", nil))
	assert.True(t, apperrors.IsNetwork(err))
}

func TestChatTimeoutIsDistinct(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(ClientConfig{BaseURL: srv.URL, ChatTimeout: 50 * time.Millisecond}, nil, logger.Nop())
	_, err := c.Chat(context.Background(), NewChatRequest("hi", nil))
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
	assert.Equal(t, TimeoutMessage, apperrors.GetErrorMessage(err))
}

func TestUnreachableBackend(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1/api"}, nil, logger.Nop())
	_, err := c.Chat(context.Background(), NewChatRequest("hi", nil))
	assert.True(t, apperrors.IsNetwork(err))
}

func TestBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Write([]byte(`{"status":"ok","ai_provider":"ollama"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, func(context.Context) string { return "tok-123" }, logger.Nop())
	info, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ollama", info.AIProvider)
}

func TestLoginDecodesNumericUserID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login", r.URL.Path)
		w.Write([]byte(`{"message":"login successful","token":"jwt","user":{"id":7,"username":"alex"}}`))
	})
	out, err := c.Login(context.Background(), "alex", "pw")
	require.NoError(t, err)
	assert.Equal(t, FlexibleID("7"), out.User.ID)
	assert.Equal(t, "jwt", out.Token)
}

func TestLoginRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid credentials"}`))
	})
	_, err := c.Login(context.Background(), "alex", "bad")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	assert.Equal(t, "invalid credentials", apperrors.GetErrorMessage(err))
}

func TestRegisterValidation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"username or email already exists"}`))
	})
	_, err := c.Register(context.Background(), "alex", "a@b.c", "pw")
	assert.True(t, apperrors.IsValidation(err))
}

func TestUploadVoiceMultipart(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload-voice", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "char_1", r.FormValue("character_id"))
		assert.Equal(t, "Mom", r.FormValue("character_name"))

		f, hdr, err := r.FormFile("voice_file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "sample.wav", hdr.Filename)
		assert.Equal(t, "RIFF", string(data))

		w.Write([]byte(`{"success":true}`))
	})

	res, err := c.UploadVoice(context.Background(), "char_1", "Mom", FilePart{
		Filename: "sample.wav",
		Content:  strings.NewReader("RIFF"),
	})
	require.NoError(t, err)
	assert.Equal(t, true, res["success"])
}

func TestCloneVoiceOptionalParts(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("audio")
		assert.NoError(t, err)
		_, _, err = r.FormFile("model")
		assert.Error(t, err)
		assert.Empty(t, r.FormValue("character_id"))
		w.Write([]byte(`{"success":true}`))
	})
	_, err := c.CloneVoice(context.Background(), FilePart{Filename: "a.wav", Content: strings.NewReader("x")}, nil, "")
	require.NoError(t, err)
}

func TestUploadModelMultipart(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload-model", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "char_1", r.FormValue("character_id"))

		f, hdr, err := r.FormFile("model_file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "sam.pth", hdr.Filename)
		assert.Equal(t, "weights", string(data))

		w.Write([]byte(`{"success":true,"model_id":"m_1"}`))
	})

	res, err := c.UploadModel(context.Background(), "char_1", FilePart{
		Filename: "sam.pth",
		Content:  strings.NewReader("weights"),
	})
	require.NoError(t, err)
	assert.Equal(t, "m_1", res["model_id"])
}

func TestCloneVoiceWithModelAndCharacter(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/clone-voice", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "char_1", r.FormValue("character_id"))

		_, hdr, err := r.FormFile("model")
		require.NoError(t, err)
		assert.Equal(t, "sam.pth", hdr.Filename)
		w.Write([]byte(`{"success":true}`))
	})

	model := &FilePart{Filename: "sam.pth", Content: strings.NewReader("weights")}
	res, err := c.CloneVoice(context.Background(), FilePart{Filename: "a.wav", Content: strings.NewReader("x")}, model, "char_1")
	require.NoError(t, err)
	assert.Equal(t, true, res["success"])
}

func TestUploadModelServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model rejected"}`))
	})

	_, err := c.UploadModel(context.Background(), "char_1", FilePart{Filename: "m.pth", Content: strings.NewReader("x")})
	require.Error(t, err)
}

func TestGenerateVoiceURLs(t *testing.T) {
	body := `{"audio_url":"/api/audio/1.wav"}`
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req GenerateVoiceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "char_1", req.CharacterID)
		w.Write([]byte(body))
	})

	u, err := c.GenerateVoice(context.Background(), "char_1", "hello")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/api/audio/1.wav", u)

	body = `{"download_url":"https://cdn.example.com/2.wav"}`
	u, err = c.GenerateVoice(context.Background(), "char_1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/2.wav", u)

	body = `{"success":true}`
	_, err = c.GenerateVoice(context.Background(), "char_1", "hello")
	assert.True(t, apperrors.IsNetwork(err))
	assert.Equal(t, "No audio URL returned", apperrors.GetErrorMessage(err))
}

func TestCharacterVoiceNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/character-voice/char_9", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.CharacterVoice(context.Background(), "char_9")
	assert.Error(t, err)
}
