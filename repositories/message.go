//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"talkify/domain"
	"talkify/errors"
)

// IMessageRepository is the durable message store. Listing is newest-first
// with an opaque cursor; callers reverse the page for display.
type IMessageRepository interface {
	Append(message domain.Message) error
	GetByID(id uuid.UUID) (domain.Message, error)
	UpdateStatus(id uuid.UUID, status domain.MessageStatus) (domain.Message, error)
	ListByConversation(conversationID uuid.UUID, cursor *string, limit int) ([]domain.Message, *string, error)
	BulkMarkRead(conversationID uuid.UUID, receiverID string) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// Append persists a message under a key formatted as
// "msg:{conversation_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the UUID as a collision disconnector if two
//     messages land on the same nanosecond.
//
// A "msgid:{uuid}" pointer to the full key makes later status updates a
// direct lookup instead of a prefix scan.
func (m *MessageRepository) Append(message domain.Message) error {
	key := messageKey(message)
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	err = update(m.db, func(txn *badger.Txn) error {
		if err := txn.Set(messageIDKey(message.ID), []byte(key)); err != nil {
			return err
		}
		return txn.Set([]byte(key), data)
	})
	return wrapStorage(err)
}

func (m *MessageRepository) GetByID(id uuid.UUID) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		return readMessage(txn, id, &message)
	})
	return message, wrapStorage(err)
}

// UpdateStatus advances the message status. Backward or same-rank moves are
// treated as idempotent no-ops so the status never regresses: the stored
// message is returned unchanged. The write happens in one transaction with
// conflict retry.
func (m *MessageRepository) UpdateStatus(id uuid.UUID, status domain.MessageStatus) (domain.Message, error) {
	var message domain.Message
	err := update(m.db, func(txn *badger.Txn) error {
		if err := readMessage(txn, id, &message); err != nil {
			return err
		}
		if !message.Status.CanAdvanceTo(status) {
			return nil
		}
		message.Status = status
		data, err := json.Marshal(message)
		if err != nil {
			return err
		}
		return txn.Set([]byte(messageKey(message)), data)
	})
	return message, wrapStorage(err)
}

// ListByConversation retrieves one page of messages for a conversation using
// a reverse prefix scan. Thanks to the padded timestamp in the key, messages
// come back newest-first with no sort step. The returned cursor is the key
// suffix of the last message; passing it back resumes just after it. A nil
// cursor signals the history is exhausted.
func (m *MessageRepository) ListByConversation(conversationID uuid.UUID, cursor *string, limit int) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conversationID)
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past any possible timestamp, then walk backwards.
			seekKey = append([]byte(prefixStr), []byte("9999999999999999999")...)
		default:
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}
		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Page limit of %d messages reached", limit))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(val []byte) error {
				var message domain.Message
				if err := json.Unmarshal(val, &message); err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, wrapStorage(err)
	}
	if len(messages) == 0 {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// BulkMarkRead transitions every message in the conversation addressed to
// receiverID and not yet read, in one transaction. Returns the messages that
// actually changed.
func (m *MessageRepository) BulkMarkRead(conversationID uuid.UUID, receiverID string) ([]domain.Message, error) {
	var marked []domain.Message
	err := update(m.db, func(txn *badger.Txn) error {
		marked = marked[:0]
		prefix := []byte(fmt.Sprintf("msg:%s:", conversationID))

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		type pending struct {
			key  []byte
			data []byte
		}
		var writes []pending

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(val []byte) error {
				var message domain.Message
				if err := json.Unmarshal(val, &message); err != nil {
					return err
				}
				if message.ReceiverID != receiverID || !message.Status.CanAdvanceTo(domain.StatusRead) {
					return nil
				}
				message.Status = domain.StatusRead
				data, err := json.Marshal(message)
				if err != nil {
					return err
				}
				writes = append(writes, pending{key: key, data: data})
				marked = append(marked, message)
				return nil
			})
			if err != nil {
				return err
			}
		}

		for _, w := range writes {
			if err := txn.Set(w.key, w.data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return marked, nil
}

func messageKey(message domain.Message) string {
	return fmt.Sprintf("msg:%s:%019d:%s",
		message.ConversationID,
		message.CreatedAt.UnixNano(),
		message.ID,
	)
}

func messageIDKey(id uuid.UUID) []byte { return []byte("msgid:" + id.String()) }

func readMessage(txn *badger.Txn, id uuid.UUID, dst *domain.Message) error {
	item, err := txn.Get(messageIDKey(id))
	if err != nil {
		return errors.ErrNotFound
	}
	fullKey, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	return readJSON(txn, fullKey, dst)
}
