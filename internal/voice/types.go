// Package voice speaks companion replies, preferring the character's cloned
// voice on the backend and falling back to the local speech synthesizer.
package voice

import "errors"

// Fixed synthesis parameters, applied whatever voice is selected.
const (
	Pitch = 0.5
	Rate  = 0.85
)

var (
	ErrEngineUnavailable = errors.New("no speech synthesizer available")
	ErrPlayerUnavailable = errors.New("no audio player available")
	errNoVoiceModel      = errors.New("backend reports no voice model")
)

// Voice is one voice offered by a synthesizer.
type Voice struct {
	// ID is what the engine is invoked with.
	ID   string `json:"id"`
	Name string `json:"name"`
	Lang string `json:"lang,omitempty"`
}

// Utterance is a single request to the synthesizer. Voice nil means engine default.
type Utterance struct {
	Text  string
	Voice *Voice
	Pitch float64
	Rate  float64
}

// Engine is a local speech synthesizer. Its voice list may still be loading
// when first asked, in which case the handler fires once it is ready.
type Engine interface {
	Voices() []Voice
	// SetVoicesChangedHandler replaces any earlier handler.
	SetVoicesChangedHandler(fn func())
	// Cancel stops whatever is being spoken.
	Cancel()
	Speak(u Utterance) error
}

// Outcome reports which path produced audio for a reply.
type Outcome string

const (
	PlayedRemote         Outcome = "played_remote"
	PlayedLocalSynthesis Outcome = "played_local_synthesis"
	Failed               Outcome = "failed"
)
