// Package notify keeps the transient notices shown to the user. Every
// notice dismisses itself after a fixed TTL.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-beyond/companion/pkg/cache"
	"voice-beyond/companion/pkg/logger"
	"voice-beyond/companion/pkg/ws"
)

// Level is the visual severity of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// DefaultTTL is how long a notice stays visible.
const DefaultTTL = 5 * time.Second

const minCleanupInterval = 50 * time.Millisecond

// Notice is one visible notification.
type Notice struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier stores live notices and publishes their lifecycle as events.
type Notifier struct {
	items *cache.Cache
	sink  ws.Sink
	log   *logger.Logger

	mu      sync.Mutex
	created int
}

// New creates a notifier. A ttl of zero falls back to DefaultTTL.
func New(ttl time.Duration, sink ws.Sink, log *logger.Logger) *Notifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sink == nil {
		sink = ws.Discard
	}
	if log == nil {
		log = logger.GetGlobal()
	}

	n := &Notifier{sink: sink, log: log.WithComponent("notify")}
	interval := ttl / 10
	if interval < minCleanupInterval {
		interval = minCleanupInterval
	}
	n.items = cache.NewCache(cache.Options{
		DefaultExpiration: ttl,
		CleanupInterval:   interval,
		OnEvicted:         n.dismissed,
	})
	return n
}

// Notify records a notice and publishes it.
func (n *Notifier) Notify(level Level, message string) Notice {
	notice := Notice{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	n.items.Set(notice.ID, notice)

	n.mu.Lock()
	n.created++
	n.mu.Unlock()

	n.log.Debug("notice raised", "notice_id", notice.ID, "level", level, "message", message)
	n.sink.Publish(ws.NewEvent(ws.EventNotice, "", notice))
	return notice
}

func (n *Notifier) Success(message string) Notice { return n.Notify(LevelSuccess, message) }
func (n *Notifier) Error(message string) Notice   { return n.Notify(LevelError, message) }
func (n *Notifier) Warning(message string) Notice { return n.Notify(LevelWarning, message) }
func (n *Notifier) Info(message string) Notice    { return n.Notify(LevelInfo, message) }

// Dismiss removes a notice before its TTL runs out.
func (n *Notifier) Dismiss(id string) {
	n.items.Delete(id)
}

// Active lists the notices still visible, oldest first.
func (n *Notifier) Active() []Notice {
	values := n.items.Values()
	out := make([]Notice, 0, len(values))
	for _, v := range values {
		if notice, ok := v.(Notice); ok {
			out = append(out, notice)
		}
	}
	return out
}

// Total is the number of notices raised since creation.
func (n *Notifier) Total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.created
}

// Close stops the expiry janitor. Live notices are dropped silently.
func (n *Notifier) Close() {
	n.items.Close()
}

func (n *Notifier) dismissed(key string, value any) {
	notice, ok := value.(Notice)
	if !ok {
		return
	}
	n.sink.Publish(ws.NewEvent(ws.EventNoticeDismissed, "", notice))
}
