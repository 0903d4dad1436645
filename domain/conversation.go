package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"talkify/errors"
)

// Conversation is the durable pairing of exactly two users and their shared
// message thread. At most one conversation exists per unordered user pair;
// uniqueness is enforced by the store on the canonical pair key.
type Conversation struct {
	ID            uuid.UUID      `json:"id"`
	Participants  [2]string      `json:"participants"`
	LastMessageID uuid.UUID      `json:"lastMessageId,omitempty"`
	LastMessageAt time.Time      `json:"lastMessageAt"`
	UnreadCount   map[string]int `json:"unreadCount"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// PairKey derives the canonical, order-independent lookup key for two user
// identifiers: the pair sorted lexicographically, joined with '|'.
// PairKey(a, b) == PairKey(b, a) for any distinct non-empty a and b.
func PairKey(a, b string) (string, error) {
	if a == "" || b == "" || a == b {
		return "", errors.ErrSameParticipant
	}
	first, second := SortParticipants(a, b)
	return first + "|" + second, nil
}

// SortParticipants returns the two identifiers in canonical order.
func SortParticipants(a, b string) (string, string) {
	if strings.Compare(a, b) > 0 {
		return b, a
	}
	return a, b
}

func (c Conversation) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// OtherParticipant returns the peer of userID, or "" if userID is not a member.
func (c Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.Participants[0]:
		return c.Participants[1]
	case c.Participants[1]:
		return c.Participants[0]
	}
	return ""
}

// Unread returns the unread counter for a participant, 0 when absent.
func (c Conversation) Unread(userID string) int {
	return c.UnreadCount[userID]
}
