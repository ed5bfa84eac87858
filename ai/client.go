package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "voice-beyond/companion/pkg/errors"
	"voice-beyond/companion/pkg/logger"
)

// TimeoutMessage is shown when the backend does not answer a chat in time.
const TimeoutMessage = "AI is taking too long. Please try a shorter message."

// TokenSource returns the bearer token for a request, or "" for none.
type TokenSource func(ctx context.Context) string

// ClientConfig configures the backend client.
type ClientConfig struct {
	BaseURL        string
	ChatTimeout    time.Duration
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Client talks to the companion backend.
// Deadlines come from contexts, so the underlying http.Client has no timeout.
type Client struct {
	client         *http.Client
	baseURL        string
	chatTimeout    time.Duration
	requestTimeout time.Duration
	tokens         TokenSource
	log            *logger.Logger
}

// NewClient creates a backend client. tokens may be nil.
func NewClient(cfg ClientConfig, tokens TokenSource, log *logger.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 300 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	return &Client{
		client:         httpClient,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		chatTimeout:    cfg.ChatTimeout,
		requestTimeout: cfg.RequestTimeout,
		tokens:         tokens,
		log:            log.WithComponent("backend"),
	}
}

// BaseURL returns the API root every endpoint hangs off.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveURL turns a possibly relative URL returned by the backend into an absolute one.
func (c *Client) ResolveURL(ref string) (string, error) {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var info HealthInfo
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var out AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return nil, authError(err, "Login failed")
	}
	return &out, nil
}

// Register creates an account and returns its session token.
func (c *Client) Register(ctx context.Context, username, email, password string) (*AuthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var out AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, authError(err, "Registration failed")
	}
	return &out, nil
}

// Chat asks the backend for a companion reply, bounded by the chat timeout.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	var out ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat", req, &out); err != nil {
		return "", err
	}
	return out.Text(), nil
}

// CharacterVoice reports whether the backend holds a cloned voice for a character.
func (c *Client) CharacterVoice(ctx context.Context, characterID string) (*VoiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var info VoiceInfo
	if err := c.doJSON(ctx, http.MethodGet, "/character-voice/"+url.PathEscape(characterID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GenerateVoice synthesizes text in a character's cloned voice and returns an absolute audio URL.
func (c *Client) GenerateVoice(ctx context.Context, characterID, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var out GenerateVoiceResponse
	err := c.doJSON(ctx, http.MethodPost, "/generate-voice", GenerateVoiceRequest{
		CharacterID: characterID,
		Text:        text,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.URL() == "" {
		return "", apperrors.NewNetworkError("No audio URL returned", nil)
	}
	return c.ResolveURL(out.URL())
}

// UploadVoice sends a voice sample for a character.
func (c *Client) UploadVoice(ctx context.Context, characterID, characterName string, sample FilePart) (UploadResult, error) {
	return c.upload(ctx, "/upload-voice", map[string]string{
		"character_id":   characterID,
		"character_name": characterName,
	}, map[string]FilePart{"voice_file": sample})
}

// UploadModel sends a trained voice model for a character.
func (c *Client) UploadModel(ctx context.Context, characterID string, model FilePart) (UploadResult, error) {
	return c.upload(ctx, "/upload-model", map[string]string{
		"character_id": characterID,
	}, map[string]FilePart{"model_file": model})
}

// CloneVoice submits audio, optionally with a model and a character to attach the result to.
func (c *Client) CloneVoice(ctx context.Context, audio FilePart, model *FilePart, characterID string) (UploadResult, error) {
	fields := map[string]string{}
	if characterID != "" {
		fields["character_id"] = characterID
	}
	files := map[string]FilePart{"audio": audio}
	if model != nil {
		files["model"] = *model
	}
	return c.upload(ctx, "/clone-voice", fields, files)
}

func (c *Client) upload(ctx context.Context, path string, fields map[string]string, files map[string]FilePart) (UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, part := range files {
		w, err := writer.CreateFormFile(name, part.Filename)
		if err != nil {
			return nil, fmt.Errorf("error creating form file: %w", err)
		}
		if _, err := io.Copy(w, part.Content); err != nil {
			return nil, fmt.Errorf("error writing %s: %w", name, err)
		}
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("error writing form field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("error closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("error creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out UploadResult
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(ctx, req, out)
}

func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return classify(ctx, err, req.URL.Path)
	}
	defer resp.Body.Close()

	c.log.Debug("backend call",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return classify(ctx, err, req.URL.Path)
		}
		return apperrors.NewNetworkError("malformed response from "+req.URL.Path, err)
	}
	return nil
}

// classify separates a deadline from every other transport failure.
func classify(ctx context.Context, err error, path string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(TimeoutMessage, err)
	}
	return apperrors.NewNetworkError("backend unreachable ("+path+")", err)
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	_ = json.Unmarshal(data, &body)

	message := body.Detail
	if message == "" {
		message = body.Error
	}
	if message == "" {
		message = fmt.Sprintf("API error: %d", resp.StatusCode)
	}
	return apperrors.NewNetworkError(message, nil).WithDetails(map[string]any{
		"status": resp.StatusCode,
	})
}

// authError maps rejected credentials onto client-side error kinds.
func authError(err error, fallback string) error {
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.CodeNetwork {
		return err
	}
	details, _ := appErr.Details.(map[string]any)
	status, _ := details["status"].(int)
	message := appErr.Message
	if strings.HasPrefix(message, "API error:") {
		message = fallback
	}
	switch status {
	case http.StatusBadRequest:
		return apperrors.NewValidationError(apperrors.CodeValidation, message)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.NewUnauthorizedError(message)
	}
	return err
}
