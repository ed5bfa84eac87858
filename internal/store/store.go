// Package store persists the client's profile as JSON blobs under fixed keys.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "voice-beyond/companion/pkg/errors"
)

// Keys shared by every component that reads or writes the profile.
const (
	KeyUser             = "voiceBeyondUser"
	KeyToken            = "voiceBeyondToken"
	KeyCharacters       = "voiceBeyondCharacters"
	KeyPendingCharacter = "selectedCharacter"
	KeyPendingEdit      = "editCharacter"
	transcriptPrefix    = "chat_"
)

// TranscriptKey is the key holding the transcript of one character.
func TranscriptKey(characterID string) string {
	return transcriptPrefix + characterID
}

// Store is a flat key/value space. Writes are last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// GetJSON decodes key into v. found is false when the key is absent.
// A blob that does not decode yields a MALFORMED_STATE error.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, apperrors.NewMalformedStateError(key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// GetString reads a plain string value such as the session token.
func GetString(ctx context.Context, s Store, key string) (string, bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return "", found, err
	}
	return string(raw), true, nil
}
