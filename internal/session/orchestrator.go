package session

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"voice-beyond/companion/ai"
	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/internal/notify"
	"voice-beyond/companion/internal/voice"
	apperrors "voice-beyond/companion/pkg/errors"
	"voice-beyond/companion/pkg/logger"
	"voice-beyond/companion/pkg/ws"
)

const instrumentationName = "voice-beyond/companion/session"

const (
	msgEmptyMessage    = "Please type a message first."
	msgNoCharacter     = "Please choose a character to chat with."
	msgTurnInFlight    = "Please wait for the current reply."
	msgOfflineMode     = "Using offline mode."
	msgSaveTranscript  = "Your conversation could not be saved."
	msgTurnFailedPanic = "The reply could not be completed."
)

// Transcripts loads and saves per-character transcripts.
type Transcripts interface {
	Load(ctx context.Context, characterID string) (models.Transcript, error)
	EnsureWelcome(ctx context.Context, t models.Transcript, c *models.Character) (models.Transcript, error)
	Persist(ctx context.Context, characterID string, t models.Transcript) error
}

// Characters looks up roster entries and the pending selection hand-off.
type Characters interface {
	Get(ctx context.Context, id string) (*models.Character, error)
	TakePendingSelection(ctx context.Context) (string, bool, error)
}

// Replies resolves a companion reply. It never fails.
type Replies interface {
	Resolve(ctx context.Context, message string, character *models.Character) ai.Reply
}

// Speaker voices a reply. It never fails.
type Speaker interface {
	Speak(ctx context.Context, text string, character *models.Character) voice.Outcome
}

// Notifier raises user-visible notices.
type Notifier interface {
	Notify(level notify.Level, message string) notify.Notice
}

// TurnResult describes a completed turn.
type TurnResult struct {
	User     models.Message `json:"user"`
	Reply    models.Message `json:"reply"`
	Source   ai.Source      `json:"source"`
	Degraded bool           `json:"degraded"`
	Voice    voice.Outcome  `json:"voice"`
	// PersistErr is set when the transcript could not be saved.
	PersistErr error `json:"-"`
}

// Orchestrator drives turns: user message, reply, save, voice.
type Orchestrator struct {
	transcripts Transcripts
	characters  Characters
	replies     Replies
	speaker     Speaker
	notifier    Notifier
	events      ws.Sink
	log         *logger.Logger

	tracer   trace.Tracer
	turns    metric.Int64Counter
	outcomes metric.Int64Counter
}

// NewOrchestrator wires a turn pipeline. speaker, notifier and events may be nil.
func NewOrchestrator(transcripts Transcripts, characters Characters, replies Replies, speaker Speaker, notifier Notifier, events ws.Sink, log *logger.Logger) *Orchestrator {
	if events == nil {
		events = ws.Discard
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	o := &Orchestrator{
		transcripts: transcripts,
		characters:  characters,
		replies:     replies,
		speaker:     speaker,
		notifier:    notifier,
		events:      events,
		log:         log.WithComponent("session"),
		tracer:      otel.Tracer(instrumentationName),
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if o.turns, err = meter.Int64Counter("voicebeyond.turns",
		metric.WithDescription("Completed chat turns by reply source")); err != nil {
		o.log.LogError(err, "failed to create turn counter")
	}
	if o.outcomes, err = meter.Int64Counter("voicebeyond.voice.outcomes",
		metric.WithDescription("Voice playback outcomes")); err != nil {
		o.log.LogError(err, "failed to create voice outcome counter")
	}
	return o
}

// SelectCharacter makes id the active character of s, loading its transcript
// and seeding the welcome message. An empty id takes the pending selection.
func (o *Orchestrator) SelectCharacter(ctx context.Context, s *Session, id string) (Snapshot, error) {
	if s.InputLocked() {
		return Snapshot{}, apperrors.NewConflictError(apperrors.CodeTurnInFlight, msgTurnInFlight)
	}
	if id == "" {
		pending, found, err := o.characters.TakePendingSelection(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		if !found {
			return Snapshot{}, apperrors.NewValidationError(apperrors.CodeNoActiveCharacter, msgNoCharacter)
		}
		id = pending
	}

	c, err := o.characters.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	t, err := o.transcripts.Load(ctx, c.ID)
	if err != nil {
		return Snapshot{}, err
	}
	t, err = o.transcripts.EnsureWelcome(ctx, t, c)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return Snapshot{}, apperrors.NewConflictError(apperrors.CodeTurnInFlight, msgTurnInFlight)
	}
	s.character = c
	s.transcript = t
	s.mu.Unlock()

	snap := s.Snapshot()
	o.log.WithSession(s.ID).Info("character selected", "character_id", c.ID, "messages", len(t))
	o.publish(s, ws.EventCharacterSelected, snap)
	return snap, nil
}

// Send runs one turn. A turn is rejected while another is in flight on the
// same session. Input is unlocked on every exit path, and the transcript is
// saved before the voice step starts.
func (o *Orchestrator) Send(ctx context.Context, s *Session, text string) (result *TurnResult, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError(apperrors.CodeEmptyMessage, msgEmptyMessage)
	}

	s.mu.Lock()
	if s.character == nil {
		s.mu.Unlock()
		return nil, apperrors.NewValidationError(apperrors.CodeNoActiveCharacter, msgNoCharacter)
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, apperrors.NewConflictError(apperrors.CodeTurnInFlight, msgTurnInFlight)
	}
	character := *s.character
	userMsg := models.NewUserMessage(text)
	s.state = StateSending
	s.transcript = append(s.transcript.Clone(), userMsg)
	s.mu.Unlock()

	log := o.log.WithSession(s.ID).WithCharacter(character.ID)
	ctx, span := o.tracer.Start(ctx, "session.turn", trace.WithAttributes(
		attribute.String("session.id", s.ID),
		attribute.String("character.id", character.ID),
	))
	defer span.End()

	o.publish(s, ws.EventMessage, userMsg)
	o.publish(s, ws.EventInputLocked, nil)
	defer func() {
		if r := recover(); r != nil {
			log.Error("turn panicked", "panic", fmt.Sprint(r))
			span.SetStatus(codes.Error, "panic")
			result = nil
			err = apperrors.NewInternalServerError("", msgTurnFailedPanic)
		}
		s.setState(StateIdle)
		o.publish(s, ws.EventInputUnlocked, nil)
	}()

	s.setState(StateResolvingReply)
	o.publish(s, ws.EventTyping, nil)
	reply := o.replies.Resolve(ctx, text, &character)
	o.publish(s, ws.EventTypingDone, nil)

	aiMsg := models.NewAIMessage(reply.Text)
	s.mu.Lock()
	s.transcript = append(s.transcript, aiMsg)
	saved := s.transcript.Clone()
	s.mu.Unlock()
	o.publish(s, ws.EventMessage, aiMsg)

	result = &TurnResult{User: userMsg, Reply: aiMsg, Source: reply.Source, Degraded: reply.Degraded, Voice: voice.Failed}
	if perr := o.transcripts.Persist(ctx, character.ID, saved); perr != nil {
		log.LogError(perr, "failed to persist transcript")
		span.RecordError(perr)
		result.PersistErr = perr
		o.notify(notify.LevelError, msgSaveTranscript)
	}

	if reply.Degraded {
		log.Warn("reply served by local fallback", "error", reply.Err)
		o.notify(notify.LevelWarning, msgOfflineMode)
	}
	span.SetAttributes(attribute.String("reply.source", string(reply.Source)), attribute.Bool("reply.degraded", reply.Degraded))
	if o.turns != nil {
		o.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(reply.Source))))
	}

	if o.speaker != nil {
		s.setState(StateResolvingVoice)
		result.Voice = o.speaker.Speak(ctx, reply.Text, &character)
		if o.outcomes != nil {
			o.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(result.Voice))))
		}
	}
	span.SetAttributes(attribute.String("voice.outcome", string(result.Voice)))

	log.Info("turn completed", "source", reply.Source, "degraded", reply.Degraded, "voice", result.Voice)
	return result, nil
}

func (o *Orchestrator) publish(s *Session, t ws.EventType, payload any) {
	o.events.Publish(ws.NewEvent(t, s.ID, payload))
}

func (o *Orchestrator) notify(level notify.Level, message string) {
	if o.notifier != nil {
		o.notifier.Notify(level, message)
	}
}
