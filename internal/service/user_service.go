package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voice-beyond/companion/ai"
	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/internal/notify"
	"voice-beyond/companion/internal/store"
	apperrors "voice-beyond/companion/pkg/errors"
	"voice-beyond/companion/pkg/jwt"
	"voice-beyond/companion/pkg/logger"
)

const (
	mockUserName    = "Alex Johnson"
	mockUserEmail   = "alex.johnson@gmail.com"
	mockUserPicture = "https://via.placeholder.com/100/b57edc/ffffff?text=AJ"

	msgWelcome = "Welcome to Voice Beyond!"
)

// AuthClient exchanges credentials with the backend.
type AuthClient interface {
	Login(ctx context.Context, username, password string) (*ai.AuthResponse, error)
	Register(ctx context.Context, username, email, password string) (*ai.AuthResponse, error)
}

// UserService manages the active user profile and its session token.
type UserService struct {
	store    store.Store
	auth     AuthClient
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewUserService creates a user service. auth may be nil in offline mode,
// in which case only the mock login works.
func NewUserService(s store.Store, auth AuthClient, notifier Notifier, log *logger.Logger) *UserService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &UserService{
		store:    s,
		auth:     auth,
		notifier: notifier,
		log:      log.WithComponent("users"),
		now:      time.Now,
	}
}

// Current returns the active user, or nil when nobody is signed in.
// A stored token that has expired ends the session.
func (s *UserService) Current(ctx context.Context) (*models.User, error) {
	var u models.User
	found, err := store.GetJSON(ctx, s.store, store.KeyUser, &u)
	if apperrors.IsMalformedState(err) {
		s.log.Warn("discarding malformed user profile", "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !found || u.ID == "" {
		return nil, nil
	}

	token, hasToken, err := store.GetString(ctx, s.store, store.KeyToken)
	if err != nil {
		return nil, err
	}
	if hasToken && token != "" {
		if _, err := jwt.CheckExpiry(token, s.now()); errors.Is(err, jwt.ErrExpiredToken) {
			s.log.Info("stored session expired", "user_id", u.ID)
			if err := s.Logout(ctx); err != nil {
				return nil, err
			}
			return nil, nil
		}
	}
	return &u, nil
}

// Token returns the stored session token, or "" when there is none.
func (s *UserService) Token(ctx context.Context) string {
	token, _, err := store.GetString(ctx, s.store, store.KeyToken)
	if err != nil {
		s.log.LogError(err, "failed to read session token")
		return ""
	}
	return token
}

// MockLogin signs in the built-in demo profile.
func (s *UserService) MockLogin(ctx context.Context) (*models.User, error) {
	now := s.now()
	u := models.User{
		ID:        fmt.Sprintf("user_%d", now.UnixMilli()),
		Name:      mockUserName,
		Email:     mockUserEmail,
		Picture:   mockUserPicture,
		LoginTime: now.UTC(),
	}
	if err := s.store.Delete(ctx, store.KeyToken); err != nil {
		return nil, fmt.Errorf("clear token: %w", err)
	}
	if err := store.SetJSON(ctx, s.store, store.KeyUser, u); err != nil {
		return nil, err
	}
	s.log.Info("mock login", "user_id", u.ID)
	s.notify(notify.LevelSuccess, msgWelcome)
	return &u, nil
}

// Login authenticates against the backend and stores the session.
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, apperrors.NewValidationError(apperrors.CodeValidation, "Username and password are required")
	}
	if s.auth == nil {
		return nil, apperrors.NewNetworkError("Login is unavailable in offline mode", nil)
	}
	resp, err := s.auth.Login(ctx, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		return nil, err
	}
	return s.storeSession(ctx, resp, req.Username)
}

// Register creates a backend account and stores the session.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, apperrors.NewValidationError(apperrors.CodeValidation, "Username and password are required")
	}
	if s.auth == nil {
		return nil, apperrors.NewNetworkError("Registration is unavailable in offline mode", nil)
	}
	resp, err := s.auth.Register(ctx, strings.TrimSpace(req.Username), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return nil, err
	}
	return s.storeSession(ctx, resp, req.Username)
}

// Logout clears the active user and token.
func (s *UserService) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, store.KeyToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if err := s.store.Delete(ctx, store.KeyUser); err != nil {
		return fmt.Errorf("clear user: %w", err)
	}
	return nil
}

func (s *UserService) storeSession(ctx context.Context, resp *ai.AuthResponse, username string) (*models.User, error) {
	if resp.Token == "" {
		return nil, apperrors.NewNetworkError("Backend returned no session token", nil)
	}
	name := resp.User.Username
	if name == "" {
		name = strings.TrimSpace(username)
	}
	u := models.User{
		ID:        string(resp.User.ID),
		Name:      name,
		Email:     resp.User.Email,
		LoginTime: s.now().UTC(),
	}
	if u.ID == "" {
		u.ID = "user_" + name
	}

	if err := s.store.Set(ctx, store.KeyToken, []byte(resp.Token)); err != nil {
		return nil, fmt.Errorf("write token: %w", err)
	}
	if err := store.SetJSON(ctx, s.store, store.KeyUser, u); err != nil {
		return nil, err
	}
	s.log.Info("signed in", "user_id", u.ID)
	s.notify(notify.LevelSuccess, msgWelcome)
	return &u, nil
}

func (s *UserService) notify(level notify.Level, message string) {
	if s.notifier != nil {
		s.notifier.Notify(level, message)
	}
}
