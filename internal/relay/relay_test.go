package relay

import (
	"context"
	"fmt"
	"time"

	"relaybot/internal/config"
	"relaybot/internal/domain"
)

// testProfile builds a pipeline profile with sensible test defaults.
// Progress notices are off so tests never race the notifier.
func testProfile(mutate func(cfg *config.Config, persona *config.Persona)) *Profile {
	cfg := config.Defaults()
	cfg.Bot.Aliases = config.FlexStringList{"bot"}
	cfg.Bot.AllowChats = config.FlexInt64List{42, 7}
	cfg.Bot.ProgressDelayS = 0

	persona := &config.Persona{
		Rules:          "Stay in character.",
		Preamble:       " You are talking to {name}.",
		DummyAnswers:   []string{"hmm", "sure", "maybe"},
		VisionQuestion: "What is in this picture?",
		ImageRefusal:   "not today",
	}
	if mutate != nil {
		mutate(cfg, persona)
	}
	return NewProfile(cfg, persona)
}

type msgKey struct {
	chatID    int64
	messageID int
}

// fakeReader serves reply-chain lookups from a fixed message map.
type fakeReader struct {
	messages map[msgKey]*domain.ChatEvent
	fetches  int
}

func (r *fakeReader) FetchMessage(ctx context.Context, chatID int64, messageID int) (*domain.ChatEvent, error) {
	r.fetches++
	if ev, ok := r.messages[msgKey{chatID, messageID}]; ok {
		return ev, nil
	}
	return nil, domain.ErrNotFound
}

type sentText struct {
	chatID  int64
	replyTo int
	text    string
}

// fakeWriter records every outbound send.
type fakeWriter struct {
	texts  []sentText
	images []domain.MediaRef
	voices [][]byte

	textErr error
}

func (w *fakeWriter) SendText(ctx context.Context, chatID int64, replyTo int, text string) error {
	if w.textErr != nil {
		return w.textErr
	}
	w.texts = append(w.texts, sentText{chatID, replyTo, text})
	return nil
}

func (w *fakeWriter) SendImage(ctx context.Context, chatID int64, replyTo int, media domain.MediaRef) error {
	w.images = append(w.images, media)
	return nil
}

func (w *fakeWriter) SendVoice(ctx context.Context, chatID int64, replyTo int, audio []byte) error {
	w.voices = append(w.voices, audio)
	return nil
}

// fakeBackend counts calls and returns canned results or errors.
type fakeBackend struct {
	completeText string
	completeErr  error
	imageURL     string
	imageErr     error
	visionText   string
	visionErr    error
	speechErr    error

	completes   int
	images      int
	visions     int
	speeches    int
	lastModel   string
	lastSystem  string
	lastTurns   []domain.ConversationTurn
	lastPrompt  string
	lastTTSText string
}

func (b *fakeBackend) Complete(ctx context.Context, model, system string, turns []domain.ConversationTurn) (string, error) {
	b.completes++
	b.lastModel = model
	b.lastSystem = system
	b.lastTurns = turns
	if b.completeErr != nil {
		return "", b.completeErr
	}
	return b.completeText, nil
}

func (b *fakeBackend) GenerateImage(ctx context.Context, prompt string) (domain.MediaRef, error) {
	b.images++
	b.lastPrompt = prompt
	if b.imageErr != nil {
		return domain.MediaRef{}, b.imageErr
	}
	return domain.MediaRef{URL: b.imageURL}, nil
}

func (b *fakeBackend) UnderstandImage(ctx context.Context, model string, image domain.MediaRef, question string, turns []domain.ConversationTurn) (string, error) {
	b.visions++
	b.lastModel = model
	b.lastTurns = turns
	if b.visionErr != nil {
		return "", b.visionErr
	}
	return b.visionText, nil
}

func (b *fakeBackend) SynthesizeSpeech(ctx context.Context, voice, text string) ([]byte, error) {
	b.speeches++
	b.lastTTSText = text
	if b.speechErr != nil {
		return nil, b.speechErr
	}
	return []byte("mp3"), nil
}

func (b *fakeBackend) calls() int {
	return b.completes + b.images + b.visions
}

// privateEvent and groupEvent build minimal events for the common cases.
func privateEvent(chatID int64, text string) *domain.ChatEvent {
	return &domain.ChatEvent{
		Platform:  "telegram",
		ChatID:    chatID,
		MessageID: 100,
		ChatType:  domain.ChatPrivate,
		Sender:    domain.Sender{ID: 1, DisplayName: "Alice"},
		Text:      text,
		Timestamp: time.Now(),
	}
}

func groupEvent(chatID int64, text string) *domain.ChatEvent {
	ev := privateEvent(chatID, text)
	ev.ChatType = domain.ChatGroup
	return ev
}

var errBoom = fmt.Errorf("boom")
