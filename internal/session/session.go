// Package session runs chat turns for one active user and character.
package session

import (
	"sync"

	"github.com/google/uuid"

	"voice-beyond/companion/internal/models"
)

// State is the per-turn state machine position.
type State string

const (
	StateIdle           State = "idle"
	StateSending        State = "sending"
	StateResolvingReply State = "resolving_reply"
	StateResolvingVoice State = "resolving_voice"
)

// Session holds the active user, character and transcript. The character
// and transcript always change together.
type Session struct {
	ID string

	mu         sync.Mutex
	user       *models.User
	character  *models.Character
	transcript models.Transcript
	state      State
}

// New creates an idle session. An empty id gets a random one.
func New(id string, user *models.User) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{ID: id, user: user, transcript: models.Transcript{}, state: StateIdle}
}

// Snapshot is a consistent copy of the session.
type Snapshot struct {
	ID          string            `json:"id"`
	User        *models.User      `json:"user,omitempty"`
	Character   *models.Character `json:"character,omitempty"`
	Transcript  models.Transcript `json:"transcript"`
	State       State             `json:"state"`
	InputLocked bool              `json:"inputLocked"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:          s.ID,
		Transcript:  s.transcript.Clone(),
		State:       s.state,
		InputLocked: s.state != StateIdle,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.character != nil {
		c := *s.character
		snap.Character = &c
	}
	return snap
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InputLocked is true while a turn is in flight.
func (s *Session) InputLocked() bool {
	return s.State() != StateIdle
}

// User returns the signed-in user, or nil for the guest profile.
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetUser swaps the active user.
func (s *Session) SetUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.user = nil
		return
	}
	cp := *u
	s.user = &cp
}

// Character returns the active character, or nil.
func (s *Session) Character() *models.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.character == nil {
		return nil
	}
	c := *s.character
	return &c
}

// Transcript returns a copy of the active transcript.
func (s *Session) Transcript() models.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Clone()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
