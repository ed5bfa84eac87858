package voice

import (
	"context"
	"errors"
	"sync"

	"voice-beyond/companion/ai"
	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/pkg/logger"
	"voice-beyond/companion/pkg/resilience"
)

// RemoteVoice is the backend side of cloned-voice playback.
type RemoteVoice interface {
	CharacterVoice(ctx context.Context, characterID string) (*ai.VoiceInfo, error)
	GenerateVoice(ctx context.Context, characterID, text string) (string, error)
}

// Resolver turns reply text into audio. Any component may be nil.
type Resolver struct {
	remote  RemoteVoice
	player  Player
	engine  Engine
	breaker *resilience.CircuitBreaker
	log     *logger.Logger

	// mu keeps cancel-then-speak atomic across concurrent sessions.
	mu sync.Mutex
}

func NewResolver(remote RemoteVoice, player Player, engine Engine, breaker *resilience.CircuitBreaker, log *logger.Logger) *Resolver {
	return &Resolver{
		remote:  remote,
		player:  player,
		engine:  engine,
		breaker: breaker,
		log:     log.WithComponent("voice"),
	}
}

// Speak never returns an error; failures degrade to text-only.
func (r *Resolver) Speak(ctx context.Context, text string, character *models.Character) (outcome Outcome) {
	log := r.log
	if character != nil {
		log = log.WithCharacter(character.ID)
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("voice playback panicked", "panic", rec)
			outcome = Failed
		}
	}()

	if character != nil && character.HasVoiceModel && r.remote != nil && r.player != nil {
		err := r.playRemote(ctx, text, character.ID)
		if err == nil {
			return PlayedRemote
		}
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, errNoVoiceModel) {
			log.Debug("cloned voice skipped", "reason", err.Error())
		} else {
			log.Warn("cloned voice failed, using local synthesis", "error", err.Error())
		}
	}

	return r.speakLocal(text, log)
}

func (r *Resolver) playRemote(ctx context.Context, text, characterID string) error {
	noModel := false
	call := func() error {
		info, err := r.remote.CharacterVoice(ctx, characterID)
		if err != nil {
			return err
		}
		if info == nil || !info.Success {
			// a missing model is not a backend fault
			noModel = true
			return nil
		}
		audioURL, err := r.remote.GenerateVoice(ctx, characterID, text)
		if err != nil {
			return err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		r.silenceUnlocked()
		return r.player.Play(ctx, audioURL)
	}

	var err error
	if r.breaker != nil {
		err = r.breaker.Execute(call)
	} else {
		err = call()
	}
	if err == nil && noModel {
		return errNoVoiceModel
	}
	return err
}

func (r *Resolver) speakLocal(text string, log *logger.Logger) Outcome {
	if r.engine == nil {
		log.Debug("no speech synthesizer, reply stays text-only")
		return Failed
	}

	r.mu.Lock()
	r.silenceUnlocked()
	ready := len(r.engine.Voices()) > 0
	r.mu.Unlock()

	if !ready {
		var once sync.Once
		trigger := func() {
			once.Do(func() {
				if err := r.utter(text); err != nil {
					log.Warn("deferred speech failed", "error", err.Error())
				}
			})
		}
		r.engine.SetVoicesChangedHandler(trigger)
		// the list may have arrived between the check and the registration
		if len(r.engine.Voices()) > 0 {
			trigger()
		}
		return PlayedLocalSynthesis
	}

	if err := r.utter(text); err != nil {
		log.Warn("speech synthesis failed", "error", err.Error())
		return Failed
	}
	return PlayedLocalSynthesis
}

func (r *Resolver) utter(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := Utterance{Text: text, Pitch: Pitch, Rate: Rate}
	if v, ok := SelectVoice(r.engine.Voices()); ok {
		u.Voice = &v
	}
	r.silenceUnlocked()
	return r.engine.Speak(u)
}

// silenceUnlocked stops both the player and the synthesizer. Caller holds mu.
func (r *Resolver) silenceUnlocked() {
	if r.player != nil {
		r.player.Stop()
	}
	if r.engine != nil {
		r.engine.Cancel()
	}
}
