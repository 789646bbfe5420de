package relay

import (
	"context"
	"log/slog"

	"relaybot/internal/domain"
)

// ContextBuilder extracts the conversational thread behind an incoming
// event: the system turn, the bounded reply chain, and the current user
// turn, in that order.
type ContextBuilder struct {
	reader  domain.ChatPlatformReader
	profile *Profile
	logger  *slog.Logger
}

func NewContextBuilder(reader domain.ChatPlatformReader, profile *Profile, logger *slog.Logger) *ContextBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextBuilder{reader: reader, profile: profile, logger: logger}
}

// Build produces the ordered turn sequence for one event. The reply
// chain is followed backward up to the configured depth; a failed fetch
// truncates the chain at that point instead of failing the pipeline.
// Partial context is acceptable, no context is not.
func (b *ContextBuilder) Build(ctx context.Context, ev *domain.ChatEvent) []domain.ConversationTurn {
	persona := b.profile.Persona
	senderName := persona.MapName(ev.Sender.DisplayName)

	// Oldest-first chain of prior turns, newest collected first.
	var chain []domain.ConversationTurn

	ref := ev.ReplyTo
	for depth := 0; ref != nil && depth < b.profile.ContextDepth; depth++ {
		prior, err := b.reader.FetchMessage(ctx, ref.ChatID, ref.MessageID)
		if err != nil {
			b.logger.Warn("reply chain truncated",
				"chat_id", ref.ChatID,
				"message_id", ref.MessageID,
				"depth", depth,
				"err", err,
			)
			break
		}

		role := domain.RoleUser
		if prior.Sender.IsBot {
			role = domain.RoleAssistant
		}
		chain = append(chain, domain.ConversationTurn{
			Role:        role,
			Text:        prior.Text,
			Image:       prior.Image,
			SpeakerName: persona.MapName(prior.Sender.DisplayName),
		})

		ref = prior.ReplyTo
	}

	turns := make([]domain.ConversationTurn, 0, len(chain)+2)
	turns = append(turns, domain.ConversationTurn{
		Role: domain.RoleSystem,
		Text: persona.Rules + persona.FormatPreamble(senderName),
	})

	// The chain was collected newest-first; turns beyond the bound were
	// never fetched, so the oldest ones are the dropped ones.
	for i := len(chain) - 1; i >= 0; i-- {
		turns = append(turns, chain[i])
	}

	turns = append(turns, domain.ConversationTurn{
		Role:        domain.RoleUser,
		Text:        ev.Text,
		Image:       ev.Image,
		SpeakerName: senderName,
	})

	return turns
}
