// Package search maintains a full-text index over stored messages. Indexing
// is best effort and happens after the durable append; the index can always
// be rebuilt from the message store.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blugelabs/bluge"
	"talkify/domain"
)

// Hit is one search result.
type Hit struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Index wraps a bluge writer. Writer updates are serialized; searches run on
// independent snapshot readers.
type Index struct {
	mu     sync.Mutex
	writer *bluge.Writer
	log    *slog.Logger
}

func Open(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}
	return &Index{writer: writer, log: log}, nil
}

// InMemory opens a non-persistent index, used by tests.
func InMemory(log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

// IndexMessage adds or replaces one message document. Both renditions of the
// text are searchable so either participant finds the message in their own
// language.
func (i *Index) IndexMessage(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("conversation_id", message.ConversationID.String()).StoreValue()).
		AddField(bluge.NewKeywordField("sender_id", message.SenderID).StoreValue()).
		AddField(bluge.NewTextField("original_text", message.OriginalText).StoreValue()).
		AddField(bluge.NewTextField("translated_text", message.TranslatedText).StoreValue()).
		AddField(bluge.NewDateTimeField("created_at", message.CreatedAt).StoreValue())

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Update(doc.ID(), doc)
}

// Search returns messages matching the query text, optionally restricted to
// one conversation.
func (i *Index) Search(ctx context.Context, query string, conversationID string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	text := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(query).SetField("original_text")).
		AddShould(bluge.NewMatchQuery(query).SetField("translated_text")).
		SetMinShould(1)

	full := bluge.NewBooleanQuery().AddMust(text)
	if conversationID != "" {
		full.AddMust(bluge.NewTermQuery(conversationID).SetField("conversation_id"))
	}

	request := bluge.NewTopNSearch(limit, full).SortBy([]string{"-created_at"})
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "conversation_id":
				hit.ConversationID = string(value)
			case "sender_id":
				hit.SenderID = string(value)
			case "original_text":
				hit.OriginalText = string(value)
			case "translated_text":
				hit.TranslatedText = string(value)
			case "created_at":
				if at, err := bluge.DecodeDateTime(value); err == nil {
					hit.CreatedAt = at
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Close()
}
