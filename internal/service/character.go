package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"voice-beyond/companion/ai"
	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/internal/notify"
	"voice-beyond/companion/internal/store"
	apperrors "voice-beyond/companion/pkg/errors"
	"voice-beyond/companion/pkg/logger"
)

const (
	characterIDPrefix = "char_"

	msgCharacterNotFound = "Character not found"
	msgVoiceUploadFailed = "Voice upload failed, but character created successfully"
	msgUploadingVoice    = "Uploading voice sample..."
)

// Notifier raises user-visible notices.
type Notifier interface {
	Notify(level notify.Level, message string) notify.Notice
}

// VoiceUploader sends a voice sample to the backend.
type VoiceUploader interface {
	UploadVoice(ctx context.Context, characterID, characterName string, sample ai.FilePart) (ai.UploadResult, error)
}

// BackendStatus reports the cached result of the startup health probe.
type BackendStatus interface {
	BackendConnected() bool
}

// CharacterService manages the character roster kept in the local store.
type CharacterService struct {
	store       store.Store
	transcripts *TranscriptManager
	uploader    VoiceUploader
	backend     BackendStatus
	notifier    Notifier
	log         *logger.Logger

	// serialises roster read-modify-write cycles within this process
	mu sync.Mutex
}

func NewCharacterService(s store.Store, transcripts *TranscriptManager, uploader VoiceUploader, backend BackendStatus, notifier Notifier, log *logger.Logger) *CharacterService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &CharacterService{
		store:       s,
		transcripts: transcripts,
		uploader:    uploader,
		backend:     backend,
		notifier:    notifier,
		log:         log.WithComponent("characters"),
	}
}

// List returns the characters owned by ownerID in creation order.
func (s *CharacterService) List(ctx context.Context, ownerID string) ([]models.Character, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Character, 0, len(all))
	for _, c := range all {
		if c.UserID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Get returns one character by id.
func (s *CharacterService) Get(ctx context.Context, id string) (*models.Character, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(all, id)
	if i < 0 {
		return nil, apperrors.NewNotFoundError(msgCharacterNotFound)
	}
	c := all[i]
	return &c, nil
}

// Create validates input and appends a new character owned by owner (or the
// guest profile). When a sample is given and the backend is connected the
// sample is uploaded; an upload failure keeps the character without a voice.
func (s *CharacterService) Create(ctx context.Context, owner *models.User, in models.CharacterInput, sample *ai.FilePart) (*models.Character, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c := models.Character{
		ID:        characterIDPrefix + ulid.Make().String(),
		CreatedAt: time.Now().UTC(),
		UserID:    models.OwnerID(owner),
	}
	c.Apply(in)

	if sample != nil {
		c.HasVoiceModel = s.tryUpload(ctx, c, *sample)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	all = append(all, c)
	if err := s.saveAll(ctx, all); err != nil {
		return nil, err
	}

	s.log.Info("character created", "character_id", c.ID, "user_id", c.UserID, "has_voice_model", c.HasVoiceModel)
	s.notify(notify.LevelSuccess, fmt.Sprintf("%s has been created successfully!", c.Name))
	return &c, nil
}

func (s *CharacterService) tryUpload(ctx context.Context, c models.Character, sample ai.FilePart) bool {
	if s.uploader == nil || s.backend == nil || !s.backend.BackendConnected() {
		s.log.Info("skipping voice upload, backend not connected", "character_id", c.ID)
		return false
	}
	s.notify(notify.LevelInfo, msgUploadingVoice)
	if _, err := s.uploader.UploadVoice(ctx, c.ID, c.Name, sample); err != nil {
		s.log.LogError(err, "voice upload failed", "character_id", c.ID)
		s.notify(notify.LevelWarning, msgVoiceUploadFailed)
		return false
	}
	return true
}

// Update overwrites the editable fields. Identity, owner, creation time and
// the voice flag are kept.
func (s *CharacterService) Update(ctx context.Context, id string, in models.CharacterInput) (*models.Character, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(c *models.Character) {
		c.Apply(in)
	})
}

// SetVoiceModel flips the voice flag of a character.
func (s *CharacterService) SetVoiceModel(ctx context.Context, id string, has bool) error {
	_, err := s.mutate(ctx, id, func(c *models.Character) {
		c.HasVoiceModel = has
	})
	return err
}

// UploadVoice uploads a sample for an existing character and marks it as
// having a voice model on success.
func (s *CharacterService) UploadVoice(ctx context.Context, id string, sample ai.FilePart) (*models.Character, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, apperrors.NewNetworkError("Voice upload is unavailable in offline mode", nil)
	}
	if _, err := s.uploader.UploadVoice(ctx, c.ID, c.Name, sample); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(c *models.Character) {
		c.HasVoiceModel = true
	})
}

// Delete removes the character and its transcript.
func (s *CharacterService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll(ctx)
	if err != nil {
		return err
	}
	i := indexOf(all, id)
	if i < 0 {
		s.notify(notify.LevelError, msgCharacterNotFound)
		return apperrors.NewNotFoundError(msgCharacterNotFound)
	}
	name := all[i].Name
	all = append(all[:i], all[i+1:]...)
	if err := s.saveAll(ctx, all); err != nil {
		return err
	}
	if err := s.transcripts.Delete(ctx, id); err != nil {
		return err
	}

	pending, found, err := store.GetString(ctx, s.store, store.KeyPendingCharacter)
	if err == nil && found && pending == id {
		_ = s.store.Delete(ctx, store.KeyPendingCharacter)
	}

	s.log.Info("character deleted", "character_id", id)
	s.notify(notify.LevelSuccess, fmt.Sprintf("%s has been deleted successfully.", name))
	return nil
}

// SetPendingSelection records the character the next chat session opens with.
func (s *CharacterService) SetPendingSelection(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Set(ctx, store.KeyPendingCharacter, []byte(id))
}

// TakePendingSelection reads and clears the pending selection.
func (s *CharacterService) TakePendingSelection(ctx context.Context) (string, bool, error) {
	return s.take(ctx, store.KeyPendingCharacter)
}

// SetPendingEdit records the character the edit form opens with.
func (s *CharacterService) SetPendingEdit(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Set(ctx, store.KeyPendingEdit, []byte(id))
}

// TakePendingEdit reads and clears the pending edit.
func (s *CharacterService) TakePendingEdit(ctx context.Context) (string, bool, error) {
	return s.take(ctx, store.KeyPendingEdit)
}

func (s *CharacterService) take(ctx context.Context, key string) (string, bool, error) {
	id, found, err := store.GetString(ctx, s.store, key)
	if err != nil || !found {
		return "", false, err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

func (s *CharacterService) mutate(ctx context.Context, id string, fn func(*models.Character)) (*models.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(all, id)
	if i < 0 {
		return nil, apperrors.NewNotFoundError(msgCharacterNotFound)
	}
	fn(&all[i])
	if err := s.saveAll(ctx, all); err != nil {
		return nil, err
	}
	c := all[i]
	return &c, nil
}

func (s *CharacterService) loadAll(ctx context.Context) ([]models.Character, error) {
	var all []models.Character
	_, err := store.GetJSON(ctx, s.store, store.KeyCharacters, &all)
	if apperrors.IsMalformedState(err) {
		s.log.Warn("discarding malformed character roster", "error", err)
		return []models.Character{}, nil
	}
	if err != nil {
		return nil, err
	}
	return all, nil
}

func (s *CharacterService) saveAll(ctx context.Context, all []models.Character) error {
	if all == nil {
		all = []models.Character{}
	}
	return store.SetJSON(ctx, s.store, store.KeyCharacters, all)
}

func (s *CharacterService) notify(level notify.Level, message string) {
	if s.notifier != nil {
		s.notifier.Notify(level, message)
	}
}

func indexOf(all []models.Character, id string) int {
	for i := range all {
		if all[i].ID == id {
			return i
		}
	}
	return -1
}
