package domain

import "context"

// ChatPlatformReader fetches referenced messages from the chat platform.
// Implementations return an error wrapping ErrNotFound when the message
// no longer exists or cannot be resolved.
type ChatPlatformReader interface {
	FetchMessage(ctx context.Context, chatID int64, messageID int) (*ChatEvent, error)
}

// ChatPlatformWriter delivers replies back to the chat platform.
// replyTo is the message ID the reply should thread under; zero means
// no threading.
type ChatPlatformWriter interface {
	SendText(ctx context.Context, chatID int64, replyTo int, text string) error
	SendImage(ctx context.Context, chatID int64, replyTo int, image MediaRef) error
	SendVoice(ctx context.Context, chatID int64, replyTo int, audio []byte) error
}

// CompletionBackend is the generative-AI capability consumed by the
// relay. Implementations own their retry policy; callers see only the
// final outcome.
type CompletionBackend interface {
	Complete(ctx context.Context, model, system string, turns []ConversationTurn) (string, error)
	GenerateImage(ctx context.Context, prompt string) (MediaRef, error)
	UnderstandImage(ctx context.Context, model string, image MediaRef, question string, turns []ConversationTurn) (string, error)
	SynthesizeSpeech(ctx context.Context, voice, text string) ([]byte, error)
}
