// Package discord adapts Discord to the relay's chat platform
// capabilities. DMs map to private chats, guild channels to groups.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"relaybot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// Handler processes one mapped chat event.
type Handler func(ctx context.Context, ev *domain.ChatEvent)

// Config configures the Discord platform adapter.
type Config struct {
	Token        string
	GuildID      string // optional: restrict to one guild
	EventTimeout time.Duration
	Logger       *slog.Logger
}

// Platform implements domain.ChatPlatformReader and
// domain.ChatPlatformWriter for Discord.
type Platform struct {
	cfg     Config
	session *discordgo.Session
	handler Handler
	logger  *slog.Logger
}

func New(cfg Config) *Platform {
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 90 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Platform{cfg: cfg, logger: cfg.Logger}
}

// Start connects to the Discord gateway and listens until ctx is
// cancelled.
func (p *Platform) Start(ctx context.Context, handler Handler) error {
	p.handler = handler

	session, err := discordgo.New("Bot " + p.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	p.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.ID == s.State.User.ID {
			return
		}
		if p.cfg.GuildID != "" && m.GuildID != "" && m.GuildID != p.cfg.GuildID {
			return
		}

		ev := p.mapMessage(s, m.Message)
		if ev == nil {
			return
		}

		go func() {
			hctx, cancel := context.WithTimeout(context.Background(), p.cfg.EventTimeout)
			defer cancel()
			p.handler(hctx, ev)
		}()
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	p.logger.Info("discord bot connected", "user", session.State.User.Username)

	<-ctx.Done()
	p.logger.Info("discord bot stopping")
	return session.Close()
}

// FetchMessage resolves a referenced message through the Discord API,
// which unlike Telegram can fetch arbitrary messages by ID.
func (p *Platform) FetchMessage(ctx context.Context, chatID int64, messageID int) (*domain.ChatEvent, error) {
	msg, err := p.session.ChannelMessage(formatID(chatID), strconv.Itoa(messageID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord message %d/%d: %w", chatID, messageID, domain.ErrNotFound)
	}
	ev := p.mapMessage(p.session, msg)
	if ev == nil {
		return nil, fmt.Errorf("discord message %d/%d: %w", chatID, messageID, domain.ErrNotFound)
	}
	return ev, nil
}

func (p *Platform) SendText(ctx context.Context, chatID int64, replyTo int, text string) error {
	send := &discordgo.MessageSend{Content: text}
	if replyTo != 0 {
		send.Reference = &discordgo.MessageReference{
			ChannelID: formatID(chatID),
			MessageID: strconv.Itoa(replyTo),
		}
	}
	if _, err := p.session.ChannelMessageSendComplex(formatID(chatID), send, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send text: %w", err)
	}
	return nil
}

func (p *Platform) SendImage(ctx context.Context, chatID int64, replyTo int, image domain.MediaRef) error {
	send := &discordgo.MessageSend{}
	switch {
	case len(image.Data) > 0:
		send.Files = []*discordgo.File{{
			Name:        "image.png",
			ContentType: "image/png",
			Reader:      bytes.NewReader(image.Data),
		}}
	case image.URL != "":
		send.Content = image.URL
	default:
		return fmt.Errorf("discord send image: empty media")
	}
	if replyTo != 0 {
		send.Reference = &discordgo.MessageReference{
			ChannelID: formatID(chatID),
			MessageID: strconv.Itoa(replyTo),
		}
	}
	if _, err := p.session.ChannelMessageSendComplex(formatID(chatID), send, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send image: %w", err)
	}
	return nil
}

func (p *Platform) SendVoice(ctx context.Context, chatID int64, replyTo int, audio []byte) error {
	send := &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:        "reply.mp3",
			ContentType: "audio/mpeg",
			Reader:      bytes.NewReader(audio),
		}},
	}
	if replyTo != 0 {
		send.Reference = &discordgo.MessageReference{
			ChannelID: formatID(chatID),
			MessageID: strconv.Itoa(replyTo),
		}
	}
	if _, err := p.session.ChannelMessageSendComplex(formatID(chatID), send, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send voice: %w", err)
	}
	return nil
}

// Ping keeps the session warm; used by the heartbeat service.
func (p *Platform) Ping(ctx context.Context) error {
	if _, err := p.session.User("@me", discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord ping: %w", err)
	}
	return nil
}

// mapMessage converts a Discord message into the relay's event shape.
func (p *Platform) mapMessage(s *discordgo.Session, msg *discordgo.Message) *domain.ChatEvent {
	if msg == nil || msg.Author == nil {
		return nil
	}

	chatID, err := parseID(msg.ChannelID)
	if err != nil {
		p.logger.Warn("unparseable channel id", "channel_id", msg.ChannelID)
		return nil
	}
	messageID, err := parseID(msg.ID)
	if err != nil {
		return nil
	}

	chatType := domain.ChatGroup
	if msg.GuildID == "" {
		chatType = domain.ChatPrivate
	}

	ev := &domain.ChatEvent{
		Platform:  "discord",
		ChatID:    chatID,
		MessageID: int(messageID),
		ChatType:  chatType,
		Sender: domain.Sender{
			DisplayName: msg.Author.Username,
			IsBot:       msg.Author.Bot,
		},
		Text:      msg.Content,
		Timestamp: msg.Timestamp,
	}
	if id, err := parseID(msg.Author.ID); err == nil {
		ev.Sender.ID = id
	}

	for _, att := range msg.Attachments {
		if att != nil && att.URL != "" && isImageContentType(att.ContentType) {
			ev.Image = &domain.MediaRef{URL: att.URL}
			break
		}
	}

	if ref := msg.MessageReference; ref != nil && ref.MessageID != "" {
		refChat, cerr := parseID(ref.ChannelID)
		refMsg, merr := parseID(ref.MessageID)
		if cerr == nil && merr == nil {
			fromBot := msg.ReferencedMessage != nil &&
				msg.ReferencedMessage.Author != nil &&
				msg.ReferencedMessage.Author.Bot
			ev.ReplyTo = &domain.MessageRef{
				ChatID:    refChat,
				MessageID: int(refMsg),
				FromBot:   fromBot,
			}
		}
	}

	return ev
}

func isImageContentType(ct string) bool {
	switch ct {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
