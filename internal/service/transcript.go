package service

import (
	"context"
	"fmt"

	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/internal/store"
	apperrors "voice-beyond/companion/pkg/errors"
	"voice-beyond/companion/pkg/logger"
)

// WelcomeText is the greeting that seeds an empty transcript.
func WelcomeText(name string) string {
	return fmt.Sprintf("Hello! I'm %s. I'm here to talk with you. How are you feeling today?", name)
}

// TranscriptManager loads and saves the per-character message log.
type TranscriptManager struct {
	store store.Store
	log   *logger.Logger
}

func NewTranscriptManager(s store.Store, log *logger.Logger) *TranscriptManager {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &TranscriptManager{store: s, log: log.WithComponent("transcripts")}
}

// Load returns the stored transcript, or an empty one when nothing is stored.
// A corrupt blob is logged and treated as empty.
func (m *TranscriptManager) Load(ctx context.Context, characterID string) (models.Transcript, error) {
	var t models.Transcript
	_, err := store.GetJSON(ctx, m.store, store.TranscriptKey(characterID), &t)
	if apperrors.IsMalformedState(err) {
		m.log.Warn("discarding malformed transcript", "character_id", characterID, "error", err)
		return models.Transcript{}, nil
	}
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = models.Transcript{}
	}
	return t, nil
}

// EnsureWelcome seeds an empty transcript with the character's greeting and
// persists it right away. A non-empty transcript is returned unchanged.
func (m *TranscriptManager) EnsureWelcome(ctx context.Context, t models.Transcript, c *models.Character) (models.Transcript, error) {
	if len(t) > 0 || c == nil {
		return t, nil
	}
	seeded := Append(t, models.NewAIMessage(WelcomeText(c.Name)))
	if err := m.Persist(ctx, c.ID, seeded); err != nil {
		return t, err
	}
	return seeded, nil
}

// Append adds msg without persisting. The input slice is never modified.
func Append(t models.Transcript, msg models.Message) models.Transcript {
	out := make(models.Transcript, len(t), len(t)+1)
	copy(out, t)
	return append(out, msg)
}

// Append is a convenience for callers holding a manager.
func (m *TranscriptManager) Append(t models.Transcript, msg models.Message) models.Transcript {
	return Append(t, msg)
}

// Persist overwrites the stored transcript.
func (m *TranscriptManager) Persist(ctx context.Context, characterID string, t models.Transcript) error {
	if t == nil {
		t = models.Transcript{}
	}
	return store.SetJSON(ctx, m.store, store.TranscriptKey(characterID), t)
}

// Delete drops the stored transcript. Missing transcripts are not an error.
func (m *TranscriptManager) Delete(ctx context.Context, characterID string) error {
	if err := m.store.Delete(ctx, store.TranscriptKey(characterID)); err != nil {
		return fmt.Errorf("delete transcript %s: %w", characterID, err)
	}
	return nil
}
