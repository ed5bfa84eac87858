package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-beyond/companion/ai"
	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/internal/notify"
	"voice-beyond/companion/internal/service"
	"voice-beyond/companion/internal/store"
	"voice-beyond/companion/internal/voice"
	apperrors "voice-beyond/companion/pkg/errors"
	"voice-beyond/companion/pkg/logger"
	"voice-beyond/companion/pkg/ws"
)

type failingChat struct{ calls int }

func (f *failingChat) Chat(context.Context, ai.ChatRequest) (string, error) {
	f.calls++
	return "", apperrors.NewNetworkError("API error: 503", nil)
}

type fixedChat struct{ reply string }

func (f fixedChat) Chat(context.Context, ai.ChatRequest) (string, error) { return f.reply, nil }

type blockingReplies struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingReplies) Resolve(context.Context, string, *models.Character) ai.Reply {
	close(b.started)
	<-b.release
	return ai.Reply{Text: "done", Source: ai.SourceRemote}
}

type panickingReplies struct{}

func (panickingReplies) Resolve(context.Context, string, *models.Character) ai.Reply {
	panic("resolver exploded")
}

type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
	// transcriptLen captures what was persisted when the voice step began
	transcriptLen int
	check         func() int
	outcome       voice.Outcome
}

func (r *recordingSpeaker) Speak(_ context.Context, text string, _ *models.Character) voice.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	if r.check != nil {
		r.transcriptLen = r.check()
	}
	if r.outcome == "" {
		return voice.PlayedLocalSynthesis
	}
	return r.outcome
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(level notify.Level, message string) notify.Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, string(level)+":"+message)
	return notify.Notice{Level: level, Message: message}
}

type failingPersist struct {
	*service.TranscriptManager
}

func (failingPersist) Persist(context.Context, string, models.Transcript) error {
	return errors.New("disk full")
}

type fixture struct {
	store       store.Store
	transcripts *service.TranscriptManager
	characters  *service.CharacterService
	events      *ws.Recorder
	notifier    *fakeNotifier
	speaker     *recordingSpeaker
	sam         *models.Character
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	transcripts := service.NewTranscriptManager(s, logger.Nop())
	characters := service.NewCharacterService(s, transcripts, nil, nil, nil, logger.Nop())
	sam, err := characters.Create(context.Background(), nil, models.CharacterInput{
		Name:         "Sam",
		Relationship: "Grandfather",
		Personality:  "wise and supportive",
	}, nil)
	require.NoError(t, err)

	return &fixture{
		store:       s,
		transcripts: transcripts,
		characters:  characters,
		events:      &ws.Recorder{},
		notifier:    &fakeNotifier{},
		speaker:     &recordingSpeaker{},
		sam:         sam,
	}
}

func (f *fixture) orchestrator(replies Replies) *Orchestrator {
	return NewOrchestrator(f.transcripts, f.characters, replies, f.speaker, f.notifier, f.events, logger.Nop())
}

func (f *fixture) resolver(client ai.ChatClient) *ai.Resolver {
	return ai.NewResolver(client, ai.NewGenerator(rand.New(rand.NewPCG(1, 2))), false, logger.Nop())
}

func TestHelloWithFailingBackendUsesGreetingPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chat := &failingChat{}
	o := f.orchestrator(f.resolver(chat))

	s := New("", nil)
	_, err := o.SelectCharacter(ctx, s, f.sam.ID)
	require.NoError(t, err)

	// start from an empty transcript so the turn alone is visible
	s.mu.Lock()
	s.transcript = models.Transcript{}
	s.mu.Unlock()

	res, err := o.Send(ctx, s, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, chat.calls)
	assert.Equal(t, ai.SourceLocal, res.Source)
	assert.True(t, res.Degraded)
	assert.Contains(t, ai.Pool(ai.CategoryGreeting), res.Reply.Content)

	tr := s.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, models.MessageTypeUser, tr[0].Type)
	assert.Equal(t, "hello", tr[0].Content)
	assert.Equal(t, models.MessageTypeAI, tr[1].Type)
	assert.Equal(t, res.Reply.Content, tr[1].Content)

	assert.False(t, s.InputLocked())
	assert.Equal(t, StateIdle, s.State())
	assert.Contains(t, f.notifier.messages, "warning:Using offline mode.")

	stored, err := f.transcripts.Load(ctx, f.sam.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRemoteReplyIsUsedVerbatim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.orchestrator(f.resolver(fixedChat{reply: "  X  "}))

	s := New("", nil)
	_, err := o.SelectCharacter(ctx, s, f.sam.ID)
	require.NoError(t, err)

	res, err := o.Send(ctx, s, "how are you?")
	require.NoError(t, err)
	assert.Equal(t, "  X  ", res.Reply.Content)
	assert.Equal(t, ai.SourceRemote, res.Source)
	assert.False(t, res.Degraded)
	assert.Empty(t, f.notifier.messages)
	assert.Equal(t, voice.PlayedLocalSynthesis, res.Voice)
	assert.Equal(t, []string{"  X  "}, f.speaker.texts)
}

func TestSelectCharacterSeedsWelcomeOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.orchestrator(f.resolver(&failingChat{}))
	s := New("", nil)

	snap, err := o.SelectCharacter(ctx, s, f.sam.ID)
	require.NoError(t, err)
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, service.WelcomeText("Sam"), snap.Transcript[0].Content)

	snap, err = o.SelectCharacter(ctx, s, f.sam.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Transcript, 1)
	assert.Equal(t, f.sam.ID, snap.Character.ID)
	assert.Contains(t, f.events.Types(), ws.EventCharacterSelected)
}

func TestSelectCharacterUsesPendingSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.orchestrator(f.resolver(&failingChat{}))
	s := New("", nil)

	_, err := o.SelectCharacter(ctx, s, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoActiveCharacter))

	require.NoError(t, f.characters.SetPendingSelection(ctx, f.sam.ID))
	snap, err := o.SelectCharacter(ctx, s, "")
	require.NoError(t, err)
	assert.Equal(t, f.sam.ID, snap.Character.ID)

	_, err = o.SelectCharacter(ctx, s, "char_missing")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, f.sam.ID, s.Character().ID)
}

func TestLockedSessionKeepsPendingSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.orchestrator(f.resolver(&failingChat{}))
	s := New("", nil)
	require.NoError(t, f.characters.SetPendingSelection(ctx, f.sam.ID))

	s.setState(StateResolvingReply)
	_, err := o.SelectCharacter(ctx, s, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTurnInFlight))

	s.setState(StateIdle)
	snap, err := o.SelectCharacter(ctx, s, "")
	require.NoError(t, err)
	assert.Equal(t, f.sam.ID, snap.Character.ID)
}

func TestSendRejectsEmptyAndUnselected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.orchestrator(f.resolver(&failingChat{}))
	s := New("", nil)

	_, err := o.Send(ctx, s, "hello")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoActiveCharacter))

	_, err = o.SelectCharacter(ctx, s, f.sam.ID)
	require.NoError(t, err)
	_, err = o.Send(ctx, s, "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEmptyMessage))
	assert.Len(t, s.Transcript(), 1)
	assert.Empty(t, f.events.Types()[1:])
}

func TestSecondSendWhileInFlightIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	replies := &blockingReplies{started: make(chan struct{}), release: make(chan struct{})}
	o := f.orchestrator(replies)
	s := New("", nil)
	_, err := o.SelectCharacter(ctx, s, f.sam.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.Send(ctx, s, "first")
		done <- err
	}()

	select {
	case <-replies.started:
	case <-time.After(time.Second):
		t.Fatal("first turn never reached the resolver")
	}
	assert.True(t, s.InputLocked())

	_, err = o.Send(ctx, s, "second")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTurnInFlight))
	_, err = o.SelectCharacter(ctx, s, f.sam.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTurnInFlight))

	users := 0
	for _, m := range s.Transcript() {
		if m.Type == models.MessageTypeUser {
			users++
		}
	}
	assert.Equal(t, 1, users)

	close(replies.release)
	require.NoError(t, <-done)
	assert.False(t, s.InputLocked())
	assert.Len(t, s.Transcript(), 3)
}

func TestTranscriptPersistedBeforeVoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.speaker.check = func() int {
		tr, err := f.transcripts.Load(ctx, f.sam.ID)
		require.NoError(t, err)
		return len(tr)
	}
	o := f.orchestrator(f.resolver(&failingChat{}))
	s := New("", nil)
	_, err := o.SelectCharacter(ctx, s, f.sam.ID)
	require.NoError(t, err)

	_, err = o.Send(ctx, s, "I miss you")
	require.NoError(t, err)
	assert.Equal(t, 3, f.speaker.transcriptLen)
}

func TestEventOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.orchestrator(f.resolver(fixedChat{reply: "hi"}))
	s := New("", nil)
	_, err := o.SelectCharacter(ctx, s, f.sam.ID)
	require.NoError(t, err)

	_, err = o.Send(ctx, s, "hello")
	require.NoError(t, err)
	assert.Equal(t, []ws.EventType{
		ws.EventCharacterSelected,
		ws.EventMessage,
		ws.EventInputLocked,
		ws.EventTyping,
		ws.EventTypingDone,
		ws.EventMessage,
		ws.EventInputUnlocked,
	}, f.events.Types())
	for _, e := range f.events.Events() {
		assert.Equal(t, s.ID, e.SessionID)
	}
}

func TestPanickingResolverStillUnlocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.orchestrator(panickingReplies{})
	s := New("", nil)
	_, err := o.SelectCharacter(ctx, s, f.sam.ID)
	require.NoError(t, err)

	res, err := o.Send(ctx, s, "hello")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.False(t, s.InputLocked())
	types := f.events.Types()
	assert.Equal(t, ws.EventInputUnlocked, types[len(types)-1])
}

func TestPersistFailureStillCompletesTurn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := NewOrchestrator(failingPersist{f.transcripts}, f.characters, f.resolver(fixedChat{reply: "hi"}), f.speaker, f.notifier, f.events, logger.Nop())
	s := New("", nil)
	_, err := o.SelectCharacter(ctx, s, f.sam.ID)
	require.NoError(t, err)

	res, err := o.Send(ctx, s, "hello")
	require.NoError(t, err)
	assert.Error(t, res.PersistErr)
	assert.Contains(t, f.notifier.messages, "error:Your conversation could not be saved.")
	assert.Len(t, f.speaker.texts, 1)
	assert.False(t, s.InputLocked())
}

func TestTimeoutFallsBackAndCompletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	timeout := chatFunc(func(ctx context.Context, _ ai.ChatRequest) (string, error) {
		return "", apperrors.NewTimeoutError(ai.TimeoutMessage, context.DeadlineExceeded)
	})
	o := f.orchestrator(f.resolver(timeout))
	s := New("", nil)
	_, err := o.SelectCharacter(ctx, s, f.sam.ID)
	require.NoError(t, err)

	res, err := o.Send(ctx, s, "can you help me")
	require.NoError(t, err)
	assert.Equal(t, ai.SourceLocal, res.Source)
	assert.Contains(t, ai.Pool(ai.CategoryEncouragement), res.Reply.Content)
	assert.Len(t, s.Transcript(), 3)
}

type chatFunc func(ctx context.Context, req ai.ChatRequest) (string, error)

func (f chatFunc) Chat(ctx context.Context, req ai.ChatRequest) (string, error) { return f(ctx, req) }

func TestManagerReusesSessions(t *testing.T) {
	m := NewManager(time.Minute)
	defer m.Close()

	s, created := m.Get("abc")
	assert.True(t, created)
	assert.Equal(t, "abc", s.ID)

	again, created := m.Get("abc")
	assert.False(t, created)
	assert.Same(t, s, again)

	fresh, created := m.Get("")
	assert.True(t, created)
	assert.NotEmpty(t, fresh.ID)

	_, ok := m.Lookup("missing")
	assert.False(t, ok)

	m.Remove("abc")
	_, ok = m.Lookup("abc")
	assert.False(t, ok)
}
