// Package event defines the events exchanged with connected clients.
// Event names and payload shapes are part of the wire contract; the
// transport wraps each payload in a {event, data} frame.
package event

import (
	"time"

	"github.com/google/uuid"
	"talkify/domain"
)

type DomainEvent interface {
	// EventName is the frame name seen by clients.
	EventName() string
}

// MessageSent acknowledges a send to the originating connection. Emitted
// unconditionally once the message is durable, whether or not the receiver
// is reachable.
type MessageSent struct {
	Message        domain.Message `json:"message"`
	ConversationID uuid.UUID      `json:"conversationId"`
}

func (MessageSent) EventName() string { return "messageSent" }

// NewMessage carries an inbound message to the receiver's live connection.
type NewMessage struct {
	Message        domain.Message `json:"message"`
	ConversationID uuid.UUID      `json:"conversationId"`
}

func (NewMessage) EventName() string { return "newMessage" }

// ConversationUpdated converges every connection a participant may hold.
type ConversationUpdated struct {
	ConversationID uuid.UUID      `json:"conversationId"`
	LastMessage    domain.Message `json:"lastMessage"`
	LastMessageAt  time.Time      `json:"lastMessageAt"`
}

func (ConversationUpdated) EventName() string { return "conversationUpdated" }

// MessageRead notifies the sender that one message was read. Best effort,
// never queued for an offline sender.
type MessageRead struct {
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
}

func (MessageRead) EventName() string { return "messageRead" }

// ConversationRead is the bulk read signal: every listed message was
// transitioned to read in one operation.
type ConversationRead struct {
	ConversationID uuid.UUID   `json:"conversationId"`
	ReaderID       string      `json:"readerId"`
	MessageIDs     []uuid.UUID `json:"messageIds"`
}

func (ConversationRead) EventName() string { return "conversationRead" }

// UserTyping is ephemeral fan-out, dropped silently when the target is
// unreachable.
type UserTyping struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

func (UserTyping) EventName() string { return "userTyping" }

type UserOnline struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (UserOnline) EventName() string { return "userOnline" }

type UserOffline struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (UserOffline) EventName() string { return "userOffline" }

// Error is emitted to the originating connection only. It never crashes the
// connection.
type Error struct {
	Message string `json:"message"`
}

func (Error) EventName() string { return "error" }
