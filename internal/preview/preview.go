// Package preview plays the scripted landing-page conversation on a loop.
package preview

import (
	"context"
	"math/rand/v2"
	"time"

	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/pkg/logger"
	"voice-beyond/companion/pkg/ws"
)

// Message is one scripted preview line.
type Message struct {
	Type    models.MessageType `json:"type"`
	Content string             `json:"content"`
	Time    string             `json:"time"`
}

// Script is the conversation shown by the preview.
var Script = []Message{
	{Type: models.MessageTypeAI, Content: "Hi there! I'm here to listen and support you.", Time: "2:30 PM"},
	{Type: models.MessageTypeUser, Content: "I've been thinking about you a lot lately...", Time: "2:32 PM"},
	{Type: models.MessageTypeAI, Content: "I think about you too. Tell me what's on your mind.", Time: "2:33 PM"},
	{Type: models.MessageTypeUser, Content: "I miss our conversations", Time: "2:35 PM"},
	{Type: models.MessageTypeAI, Content: "I'm always here when you need me. What would you like to talk about?", Time: "2:36 PM"},
}

// Timing controls the pacing of the loop.
type Timing struct {
	// Start is the delay before the first message.
	Start time.Duration
	// Step is the minimum gap between messages; Jitter is added uniformly on top.
	Step   time.Duration
	Jitter time.Duration
	// Reset is the pause before the script restarts.
	Reset time.Duration
}

var DefaultTiming = Timing{
	Start:  time.Second,
	Step:   2 * time.Second,
	Jitter: time.Second,
	Reset:  3 * time.Second,
}

// Loop publishes the script repeatedly until cancelled.
type Loop struct {
	script []Message
	timing Timing
	rnd    *rand.Rand
	sink   ws.Sink
	log    *logger.Logger
}

// New creates a loop over Script. rnd may be nil.
func New(timing Timing, sink ws.Sink, rnd *rand.Rand, log *logger.Logger) *Loop {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if sink == nil {
		sink = ws.Discard
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Loop{script: Script, timing: timing, rnd: rnd, sink: sink, log: log.WithComponent("preview")}
}

// Run blocks until ctx is done and returns its error.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Debug("preview started")
	if err := sleep(ctx, l.timing.Start); err != nil {
		return err
	}
	for cycle := 0; ; cycle++ {
		for _, m := range l.script {
			l.sink.Publish(ws.NewEvent(ws.EventPreview, "", m))
			if err := sleep(ctx, l.gap()); err != nil {
				return err
			}
		}
		if err := sleep(ctx, l.timing.Reset); err != nil {
			return err
		}
		l.sink.Publish(ws.NewEvent(ws.EventPreviewReset, "", map[string]int{"cycle": cycle + 1}))
	}
}

func (l *Loop) gap() time.Duration {
	if l.timing.Jitter <= 0 {
		return l.timing.Step
	}
	return l.timing.Step + time.Duration(l.rnd.Int64N(int64(l.timing.Jitter)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
