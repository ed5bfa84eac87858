package preview

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-beyond/companion/pkg/logger"
	"voice-beyond/companion/pkg/ws"
)

func fastTiming() Timing {
	return Timing{Start: time.Millisecond, Step: time.Millisecond, Jitter: time.Millisecond, Reset: 2 * time.Millisecond}
}

func TestLoopPlaysScriptThenResets(t *testing.T) {
	rec := &ws.Recorder{}
	l := New(fastTiming(), rec, rand.New(rand.NewPCG(1, 1)), logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, typ := range rec.Types() {
			if typ == ws.EventPreviewReset {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))

	events := rec.Events()
	require.GreaterOrEqual(t, len(events), len(Script)+1)
	for i, m := range Script {
		assert.Equal(t, ws.EventPreview, events[i].Type)
		assert.Equal(t, m, events[i].Payload)
	}
	assert.Equal(t, ws.EventPreviewReset, events[len(Script)].Type)
}

func TestLoopStopsBeforeFirstMessage(t *testing.T) {
	rec := &ws.Recorder{}
	l := New(DefaultTiming, rec, nil, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Empty(t, rec.Events())
}

func TestGapStaysWithinJitter(t *testing.T) {
	l := New(DefaultTiming, nil, rand.New(rand.NewPCG(7, 7)), logger.Nop())
	for i := 0; i < 100; i++ {
		g := l.gap()
		assert.GreaterOrEqual(t, g, 2*time.Second)
		assert.Less(t, g, 3*time.Second)
	}
}
