package relay

import (
	"context"
	"log/slog"
	"time"

	"relaybot/internal/domain"
)

// giveUpAfter is how many progress intervals pass before the notifier
// stops waiting and tells the user it has nothing.
const giveUpAfter = 10

// progressNotifier keeps the user company while a backend call is in
// flight: after the configured delay it posts a "still thinking" note,
// and if the call drags on past the hard cap it posts a final
// giving-up note. Stopped the moment the real reply is ready.
type progressNotifier struct {
	writer   domain.ChatPlatformWriter
	delay    time.Duration
	thinking string
	giveUp   string
	logger   *slog.Logger
}

func newProgressNotifier(writer domain.ChatPlatformWriter, profile *Profile, logger *slog.Logger) *progressNotifier {
	return &progressNotifier{
		writer:   writer,
		delay:    profile.ProgressDelay,
		thinking: profile.Persona.ThinkingNotice,
		giveUp:   profile.Persona.GiveUpNotice,
		logger:   logger,
	}
}

// watch starts the notifier for one event and returns a stop function.
// Disabled (returns a no-op stop) when the delay is zero or no notice
// text is configured.
func (p *progressNotifier) watch(ctx context.Context, chatID int64) func() {
	if p.delay <= 0 || p.thinking == "" {
		return func() {}
	}

	done := make(chan struct{})
	go p.loop(ctx, chatID, done)
	return func() { close(done) }
}

func (p *progressNotifier) loop(ctx context.Context, chatID int64, done <-chan struct{}) {
	ticker := time.NewTicker(p.delay)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			ticks++
			if ticks >= giveUpAfter {
				if p.giveUp != "" {
					if err := p.writer.SendText(ctx, chatID, 0, p.giveUp); err != nil {
						p.logger.Error("progress give-up send failed", "chat_id", chatID, "err", err)
					}
				}
				return
			}
			if err := p.writer.SendText(ctx, chatID, 0, p.thinking); err != nil {
				p.logger.Error("progress notice send failed", "chat_id", chatID, "err", err)
				continue
			}
			// One successful notice is enough; keep counting only for
			// the give-up cap.
			return
		}
	}
}
