package domain

import "time"

// ChatType identifies the kind of chat an event originated from.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// Sender identifies the author of a chat event.
type Sender struct {
	ID          int64
	DisplayName string
	IsBot       bool
}

// MessageRef points at a prior message in the same platform. FromBot
// records the authorship of the referenced message when the ingestion
// payload carries it inline.
type MessageRef struct {
	ChatID    int64
	MessageID int
	FromBot   bool
}

// MediaRef is an opaque handle to a piece of media. Either URL (a
// fetchable location) or Data (raw bytes) is set, never both required.
type MediaRef struct {
	URL  string
	Data []byte
}

// ChatEvent is one incoming message notification. Produced by a
// platform adapter, consumed read-only by the relay pipeline.
type ChatEvent struct {
	Platform  string
	ChatID    int64
	MessageID int
	ChatType  ChatType
	Sender    Sender
	Text      string
	Image     *MediaRef
	ReplyTo   *MessageRef
	Timestamp time.Time
}

// IsPrivate reports whether the event came from a one-to-one chat.
func (e *ChatEvent) IsPrivate() bool { return e.ChatType == ChatPrivate }

// Role tags a conversation turn by speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message in the context window passed to the
// backend. Built fresh per event; never persisted across events.
type ConversationTurn struct {
	Role        Role
	Text        string
	Image       *MediaRef
	SpeakerName string
}

// ReplyKind classifies the terminal output of the pipeline.
type ReplyKind string

const (
	ReplyNone  ReplyKind = "none"
	ReplyText  ReplyKind = "text"
	ReplyImage ReplyKind = "image"
	ReplyVoice ReplyKind = "voice"
)

// Reply is the terminal output of the pipeline for one event.
type Reply struct {
	Kind  ReplyKind
	Text  string
	Media MediaRef
}
