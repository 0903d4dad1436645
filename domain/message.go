// Package domain contains core concepts of the translated chat system.
// This file defines Message entities and the delivery status machine.
// A message is immutable once created; status is its only mutable field.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the lifecycle stage of one message.
// Transitions are monotonic: sent -> delivered -> read, never backwards.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// rank orders statuses along the lifecycle. Unknown statuses rank lowest.
func (s MessageStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
// Equal or backward moves are rejected, which callers treat as a no-op.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.rank() > s.rank()
}

// MessageType classifies the payload carried by a message.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeFile  MessageType = "file"
	TypeAudio MessageType = "audio"
)

// ParseMessageType maps a client-declared type to a known one, defaulting to text.
func ParseMessageType(s string) MessageType {
	switch MessageType(s) {
	case TypeImage, TypeFile, TypeAudio:
		return MessageType(s)
	}
	return TypeText
}

// Message is one chat message, stored with both the original and the
// translated rendition. SourceLanguage is always a resolved code, never "auto".
type Message struct {
	ID             uuid.UUID     `json:"id"`
	SenderID       string        `json:"senderId"`
	ReceiverID     string        `json:"receiverId"`
	OriginalText   string        `json:"originalText"`
	SourceLanguage string        `json:"sourceLanguage"`
	TranslatedText string        `json:"translatedText"`
	TargetLanguage string        `json:"targetLanguage"`
	ConversationID uuid.UUID     `json:"conversationId"`
	Status         MessageStatus `json:"status"`
	Type           MessageType   `json:"messageType"`
	CreatedAt      time.Time     `json:"createdAt"`
}
