package ai

import (
	"context"

	"voice-beyond/companion/internal/models"
	apperrors "voice-beyond/companion/pkg/errors"
	"voice-beyond/companion/pkg/logger"
)

// Source tells where a reply came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// ChatClient is the remote half of reply resolution.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Reply is the outcome of one resolution. Err holds the remote failure, if any.
type Reply struct {
	Text   string
	Source Source
	// Degraded is set when the local generator stood in for a failed remote call.
	Degraded bool
	Err      error
}

// Resolver produces a companion reply, preferring the backend and never failing.
type Resolver struct {
	client  ChatClient
	local   *Generator
	offline bool
	log     *logger.Logger
}

// NewResolver creates a resolver. A nil client or offline=true always answers locally.
func NewResolver(client ChatClient, local *Generator, offline bool, log *logger.Logger) *Resolver {
	if local == nil {
		local = NewGenerator(nil)
	}
	return &Resolver{
		client:  client,
		local:   local,
		offline: offline || client == nil,
		log:     log.WithComponent("replies"),
	}
}

// Resolve always returns non-empty text.
func (r *Resolver) Resolve(ctx context.Context, message string, character *models.Character) Reply {
	if r.offline {
		return Reply{Text: r.local.Generate(message), Source: SourceLocal}
	}

	text, err := r.client.Chat(ctx, NewChatRequest(message, character))
	if err == nil {
		if text == "" {
			text = DefaultReply
		}
		return Reply{Text: text, Source: SourceRemote}
	}

	log := r.log
	if character != nil {
		log = log.WithCharacter(character.ID)
	}
	if apperrors.IsTimeout(err) {
		log.Warn("backend chat timed out, answering locally", "error", err.Error())
	} else {
		log.Warn("backend chat failed, answering locally", "error", err.Error())
	}

	return Reply{
		Text:     r.local.Generate(message),
		Source:   SourceLocal,
		Degraded: true,
		Err:      err,
	}
}
