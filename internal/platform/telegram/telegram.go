// Package telegram adapts the Telegram Bot API to the relay's chat
// platform capabilities: webhook (or polling) ingestion of updates,
// fetching referenced messages, and reply delivery.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"relaybot/internal/domain"
	"relaybot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Handler processes one mapped chat event. Invoked concurrently for
// distinct events.
type Handler func(ctx context.Context, ev *domain.ChatEvent)

// DedupStore suppresses webhook redeliveries. Seen reports whether the
// update was already processed and records it otherwise.
type DedupStore interface {
	Seen(ctx context.Context, platform string, updateID int64) (bool, error)
}

// Config configures the Telegram platform adapter.
type Config struct {
	Token     string
	ParseMode string

	WebhookEnabled bool
	WebhookPort    int
	WebhookPath    string
	WebhookSecret  string

	EventTimeout time.Duration
	Dedup        DedupStore // optional
	Logger       *slog.Logger
}

// Platform implements domain.ChatPlatformReader and
// domain.ChatPlatformWriter for Telegram.
type Platform struct {
	cfg     Config
	bot     *tgbotapi.BotAPI
	cache   *messageCache
	handler Handler
	logger  *slog.Logger
}

func New(cfg Config) *Platform {
	if cfg.ParseMode == "" {
		cfg.ParseMode = tgbotapi.ModeMarkdownV2
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 90 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Platform{
		cfg:    cfg,
		cache:  newMessageCache(cacheMaxEntries, cacheTTL),
		logger: cfg.Logger,
	}
}

// Start connects to Telegram and ingests updates until ctx is
// cancelled. Webhook mode runs an HTTP server; otherwise the adapter
// falls back to long polling.
func (p *Platform) Start(ctx context.Context, handler Handler) error {
	p.handler = handler

	bot, err := tgbotapi.NewBotAPI(p.cfg.Token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	p.bot = bot
	p.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	if p.cfg.WebhookEnabled {
		return p.serveWebhook(ctx)
	}
	return p.poll(ctx)
}

func (p *Platform) poll(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := p.bot.GetUpdatesChan(u)

	p.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("telegram polling stopping")
			p.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			p.handleUpdate(update)
		}
	}
}

// handleUpdate maps one update into a ChatEvent and hands it to the
// pipeline on its own goroutine with a bounded timeout. Duplicate
// updates (webhook redeliveries) are dropped here.
func (p *Platform) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	if p.cfg.Dedup != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		seen, err := p.cfg.Dedup.Seen(ctx, "telegram", int64(update.UpdateID))
		cancel()
		if err != nil {
			p.logger.Warn("dedup check failed, processing anyway", "update_id", update.UpdateID, "err", err)
		} else if seen {
			p.logger.Debug("duplicate update dropped", "update_id", update.UpdateID)
			metrics.DuplicateEvents.Inc()
			return
		}
	}

	// The inline reply payload is the platform's one-hop supply of
	// prior context; cache it so FetchMessage can serve the chain walk.
	if msg.ReplyToMessage != nil {
		if prior := p.mapMessage(msg.ReplyToMessage); prior != nil {
			p.cache.put(prior)
		}
	}

	ev := p.mapMessage(msg)
	if ev == nil {
		return
	}
	p.cache.put(ev)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.EventTimeout)
		defer cancel()
		p.handler(ctx, ev)
	}()
}

// FetchMessage resolves a referenced message from the recent-message
// cache. Telegram has no API to fetch arbitrary messages by ID, so
// anything the platform never supplied inline is reported as not
// found and the caller truncates the chain there.
func (p *Platform) FetchMessage(ctx context.Context, chatID int64, messageID int) (*domain.ChatEvent, error) {
	if ev, ok := p.cache.get(chatID, messageID); ok {
		return ev, nil
	}
	return nil, fmt.Errorf("telegram message %d/%d: %w", chatID, messageID, domain.ErrNotFound)
}

func (p *Platform) SendText(ctx context.Context, chatID int64, replyTo int, text string) error {
	msg := tgbotapi.NewMessage(chatID, escapeText(p.cfg.ParseMode, text))
	msg.ParseMode = p.cfg.ParseMode
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send text: %w", err)
	}
	return nil
}

func (p *Platform) SendImage(ctx context.Context, chatID int64, replyTo int, image domain.MediaRef) error {
	var file tgbotapi.RequestFileData
	switch {
	case image.URL != "":
		file = tgbotapi.FileURL(image.URL)
	case len(image.Data) > 0:
		file = tgbotapi.FileBytes{Name: "image.png", Bytes: image.Data}
	default:
		return fmt.Errorf("telegram send image: empty media")
	}

	msg := tgbotapi.NewPhoto(chatID, file)
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send image: %w", err)
	}
	return nil
}

func (p *Platform) SendVoice(ctx context.Context, chatID int64, replyTo int, audio []byte) error {
	if _, err := p.bot.Send(voiceMessage(chatID, replyTo, audio)); err != nil {
		return fmt.Errorf("telegram send voice: %w", err)
	}
	return nil
}

// voiceMessage builds a voice-note send. NewVoice (not NewAudio) so the
// reply renders as a playable voice bubble rather than a file
// attachment.
func voiceMessage(chatID int64, replyTo int, audio []byte) tgbotapi.VoiceConfig {
	msg := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{Name: "reply.mp3", Bytes: audio})
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	return msg
}

// Ping keeps the connection warm; used by the heartbeat service.
func (p *Platform) Ping(ctx context.Context) error {
	if _, err := p.bot.GetMe(); err != nil {
		return fmt.Errorf("telegram ping: %w", err)
	}
	return nil
}

// mapMessage converts a Telegram message into the relay's event shape.
// Returns nil for messages with no author.
func (p *Platform) mapMessage(msg *tgbotapi.Message) *domain.ChatEvent {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}

	ev := &domain.ChatEvent{
		Platform:  "telegram",
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		ChatType:  domain.ChatType(msg.Chat.Type),
		Sender: domain.Sender{
			ID:          msg.From.ID,
			DisplayName: msg.From.FirstName,
			IsBot:       msg.From.IsBot,
		},
		Text:      msg.Text,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}

	if ev.Text == "" {
		ev.Text = msg.Caption
	}

	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for _, ph := range msg.Photo[1:] {
			if ph.FileSize > best.FileSize {
				best = ph
			}
		}
		url, err := p.bot.GetFileDirectURL(best.FileID)
		if err != nil {
			p.logger.Warn("cannot resolve photo URL", "file_id", best.FileID, "err", err)
		} else {
			ev.Image = &domain.MediaRef{URL: url}
		}
	}

	if rm := msg.ReplyToMessage; rm != nil {
		ev.ReplyTo = &domain.MessageRef{
			ChatID:    msg.Chat.ID,
			MessageID: rm.MessageID,
			FromBot:   rm.From != nil && rm.From.IsBot,
		}
	}

	return ev
}
