//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"talkify/domain"
	"talkify/errors"
)

// IConversationRepository is the durable side of conversation identity and
// per-participant unread bookkeeping. Unread mutations are atomic
// per conversation: a read-modify-write inside one transaction with
// conflict retry, never a blind document overwrite.
type IConversationRepository interface {
	FindByParticipants(userA, userB string) (domain.Conversation, error)
	Create(userA, userB string) (domain.Conversation, error)
	GetByID(id uuid.UUID) (domain.Conversation, error)
	UpdateLastMessage(id uuid.UUID, messageID uuid.UUID, at time.Time) error
	IncrementUnread(id uuid.UUID, userID string, delta int) error
	ResetUnread(id uuid.UUID, userID string) error
	ListByParticipant(userID string) ([]domain.Conversation, error)
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) IConversationRepository {
	return &ConversationRepository{db: db}
}

// Key layout:
//
//	conv:{pairKey}   -> conversation document (JSON)
//	convid:{uuid}    -> pairKey
//
// The document lives under the canonical pair key, so the key itself is the
// uniqueness constraint: two racing first-contact creates collide on the same
// key and exactly one conversation survives.
func convKey(pairKey string) []byte { return []byte("conv:" + pairKey) }
func convIDKey(id uuid.UUID) []byte { return []byte("convid:" + id.String()) }

func (r *ConversationRepository) FindByParticipants(userA, userB string) (domain.Conversation, error) {
	pairKey, err := domain.PairKey(userA, userB)
	if err != nil {
		return domain.Conversation{}, err
	}

	var conv domain.Conversation
	err = r.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, convKey(pairKey), &conv)
	})
	return conv, wrapStorage(err)
}

// Create persists a fresh conversation for the pair with an empty unread
// mapping and a zero last-activity timestamp. Returns ErrConversationExists
// when the pair already has one; the caller re-reads and uses the winner.
func (r *ConversationRepository) Create(userA, userB string) (domain.Conversation, error) {
	pairKey, err := domain.PairKey(userA, userB)
	if err != nil {
		return domain.Conversation{}, err
	}
	first, second := domain.SortParticipants(userA, userB)

	conv := domain.Conversation{
		ID:           uuid.New(),
		Participants: [2]string{first, second},
		UnreadCount:  make(map[string]int),
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return domain.Conversation{}, err
	}

	err = update(r.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(convKey(pairKey)); err == nil {
			return errors.ErrConversationExists
		}
		if err := txn.Set(convIDKey(conv.ID), []byte(pairKey)); err != nil {
			return err
		}
		return txn.Set(convKey(pairKey), data)
	})
	if err != nil {
		return domain.Conversation{}, wrapStorage(err)
	}
	return conv, nil
}

func (r *ConversationRepository) GetByID(id uuid.UUID) (domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		return readConversation(txn, id, &conv)
	})
	return conv, wrapStorage(err)
}

func (r *ConversationRepository) UpdateLastMessage(id uuid.UUID, messageID uuid.UUID, at time.Time) error {
	return r.mutate(id, func(conv *domain.Conversation) {
		conv.LastMessageID = messageID
		conv.LastMessageAt = at
	})
}

// IncrementUnread atomically adjusts a participant's unread counter by delta,
// floored at zero. Concurrent increments are never lost: conflicting
// transactions retry and re-read the document.
func (r *ConversationRepository) IncrementUnread(id uuid.UUID, userID string, delta int) error {
	return r.mutate(id, func(conv *domain.Conversation) {
		if conv.UnreadCount == nil {
			conv.UnreadCount = make(map[string]int)
		}
		next := conv.UnreadCount[userID] + delta
		if next < 0 {
			next = 0
		}
		conv.UnreadCount[userID] = next
	})
}

func (r *ConversationRepository) ResetUnread(id uuid.UUID, userID string) error {
	return r.mutate(id, func(conv *domain.Conversation) {
		if conv.UnreadCount == nil {
			conv.UnreadCount = make(map[string]int)
		}
		conv.UnreadCount[userID] = 0
	})
}

// ListByParticipant returns every conversation the user is part of,
// most recently active first.
func (r *ConversationRepository) ListByParticipant(userID string) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("conv:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var conv domain.Conversation
				if err := json.Unmarshal(val, &conv); err != nil {
					return err
				}
				if conv.HasParticipant(userID) {
					convs = append(convs, conv)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].LastMessageAt.After(convs[j].LastMessageAt)
	})
	return convs, nil
}

// mutate applies one atomic read-modify-write to the conversation document.
func (r *ConversationRepository) mutate(id uuid.UUID, apply func(*domain.Conversation)) error {
	err := update(r.db, func(txn *badger.Txn) error {
		item, err := txn.Get(convIDKey(id))
		if err != nil {
			return errors.ErrNotFound
		}
		var pairKey []byte
		if pairKey, err = item.ValueCopy(nil); err != nil {
			return err
		}

		var conv domain.Conversation
		if err := readJSON(txn, convKey(string(pairKey)), &conv); err != nil {
			return err
		}
		apply(&conv)

		data, err := json.Marshal(conv)
		if err != nil {
			return err
		}
		return txn.Set(convKey(string(pairKey)), data)
	})
	return wrapStorage(err)
}

func readConversation(txn *badger.Txn, id uuid.UUID, dst *domain.Conversation) error {
	item, err := txn.Get(convIDKey(id))
	if err != nil {
		return errors.ErrNotFound
	}
	pairKey, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	return readJSON(txn, convKey(string(pairKey)), dst)
}
