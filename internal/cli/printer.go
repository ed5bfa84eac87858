package cli

import (
	"fmt"
	"io"
	"sync"

	"voice-beyond/companion/internal/models"
	"voice-beyond/companion/internal/notify"
	"voice-beyond/companion/internal/preview"
	pkgws "voice-beyond/companion/pkg/ws"
)

// Printer renders session events as terminal lines.
type Printer struct {
	mu        sync.Mutex
	out       io.Writer
	character string
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, character: "AI"}
}

// SetCharacter names the speaker of AI messages.
func (p *Printer) SetCharacter(name string) {
	p.mu.Lock()
	p.character = name
	p.mu.Unlock()
}

// Message prints one transcript entry.
func (p *Printer) Message(m models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.message(m)
}

func (p *Printer) message(m models.Message) {
	speaker := "You"
	if m.Type == models.MessageTypeAI {
		speaker = p.character
	}
	fmt.Fprintf(p.out, "%s: %s\n", speaker, m.Content)
}

func (p *Printer) Publish(e pkgws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case pkgws.EventMessage:
		// The terminal already shows what the user typed.
		if m, ok := e.Payload.(models.Message); ok && m.Type == models.MessageTypeAI {
			p.message(m)
		}
	case pkgws.EventTyping:
		fmt.Fprintf(p.out, "%s is typing...\n", p.character)
	case pkgws.EventNotice:
		if n, ok := e.Payload.(notify.Notice); ok {
			fmt.Fprintf(p.out, "[%s] %s\n", n.Level, n.Message)
		}
	case pkgws.EventPreview:
		if m, ok := e.Payload.(preview.Message); ok {
			speaker := "You"
			if m.Type == models.MessageTypeAI {
				speaker = "AI"
			}
			fmt.Fprintf(p.out, "%-8s %s: %s\n", m.Time, speaker, m.Content)
		}
	case pkgws.EventPreviewReset:
		fmt.Fprintln(p.out, "--")
	}
}
