// Package delivery is the message pipeline: validate, resolve the
// conversation, moderate, translate, persist, then fan events out to the
// live connections. Persistence is the hard part of the flow; everything
// after the durable append is best effort.
package delivery

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"talkify/contract"
	"talkify/domain"
	"talkify/domain/event"
	"talkify/errors"
	"talkify/moderation"
	"talkify/observability"
	"talkify/repositories"
	"talkify/search"
	"talkify/translate"
)

// EngineParams collects the collaborators of the pipeline. Moderator and
// Index are optional; a nil value disables that stage.
type EngineParams struct {
	Users      repositories.IUserRepository
	Convs      repositories.IConversationRepository
	Messages   repositories.IMessageRepository
	Translator translate.Translator
	Registry   contract.IPresenceRegistry
	Gateway    contract.ConnectionGateway
	Moderator  *moderation.Moderator
	Index      *search.Index
	Monitor    *observability.Monitor
	Log        *slog.Logger
}

// Engine owns message delivery, the read state machine and the presence
// lifecycle. Sends from the same user are serialized so one sender's
// messages land in arrival order; different senders proceed in parallel.
type Engine struct {
	users      repositories.IUserRepository
	convs      repositories.IConversationRepository
	messages   repositories.IMessageRepository
	translator translate.Translator
	registry   contract.IPresenceRegistry
	gateway    contract.ConnectionGateway
	resolver   *ConversationResolver
	moderator  *moderation.Moderator
	index      *search.Index
	monitor    *observability.Monitor
	senders    *keyedMutex
	log        *slog.Logger
}

func NewEngine(p EngineParams) *Engine {
	return &Engine{
		users:      p.Users,
		convs:      p.Convs,
		messages:   p.Messages,
		translator: p.Translator,
		registry:   p.Registry,
		gateway:    p.Gateway,
		resolver:   NewConversationResolver(p.Convs),
		moderator:  p.Moderator,
		index:      p.Index,
		monitor:    p.Monitor,
		senders:    newKeyedMutex(),
		log:        p.Log,
	}
}

// SendInput is one send request as stated by the client. The source language
// is always detected from the text itself; a sender's stated language is not
// trusted, it mislabels transliterated and code-mixed input too often.
type SendInput struct {
	SenderID    string
	ReceiverID  string
	Text        string
	MessageType string
}

// Send runs the full pipeline for one message and returns the stored message
// in its final observed status. The acknowledgment to the sender is emitted
// once the message is durable, regardless of the receiver being reachable;
// translation failure degrades to the original text and never blocks the
// send.
func (e *Engine) Send(ctx context.Context, in SendInput) (domain.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return domain.Message{}, fmt.Errorf("%w: empty message text", errors.ErrValidation)
	}
	if in.SenderID == "" || in.ReceiverID == "" || in.SenderID == in.ReceiverID {
		return domain.Message{}, fmt.Errorf("%w: sender and receiver must be two distinct users", errors.ErrValidation)
	}

	e.senders.Lock(in.SenderID)
	defer e.senders.Unlock(in.SenderID)

	if _, err := e.users.GetUserByID(in.SenderID); err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return domain.Message{}, fmt.Errorf("%w: %s", errors.ErrUnknownUser, in.SenderID)
		}
		return domain.Message{}, err
	}
	receiver, err := e.users.GetUserByID(in.ReceiverID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return domain.Message{}, fmt.Errorf("%w: %s", errors.ErrUnknownUser, in.ReceiverID)
		}
		return domain.Message{}, err
	}

	conv, err := e.resolver.Resolve(in.SenderID, in.ReceiverID)
	if err != nil {
		return domain.Message{}, err
	}

	if e.moderator != nil {
		censored, found := e.moderator.Censor(text)
		if len(found) > 0 {
			e.log.Info("Censored outbound message",
				slog.String("sender_id", in.SenderID),
				slog.Int("words", len(found)))
			e.monitor.IncrMessagesCensored()
			text = censored
		}
	}

	result, err := e.translator.Translate(ctx, text, receiver.TargetLanguage(), translate.Auto)
	if err != nil {
		// The pass-through result is still usable; record the degradation.
		e.log.Warn("Translation degraded to original text", slog.Any("error", err))
		e.monitor.IncrTranslationFallback()
	}
	if result.TranslatedText == "" {
		result.TranslatedText = text
	}
	if result.TargetLanguage == "" {
		result.TargetLanguage = receiver.TargetLanguage()
	}

	message := domain.Message{
		ID:             uuid.New(),
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		OriginalText:   text,
		SourceLanguage: result.SourceLanguage,
		TranslatedText: result.TranslatedText,
		TargetLanguage: result.TargetLanguage,
		ConversationID: conv.ID,
		Status:         domain.StatusSent,
		Type:           domain.ParseMessageType(in.MessageType),
		CreatedAt:      time.Now().UTC(),
	}

	if err := e.messages.Append(message); err != nil {
		return domain.Message{}, err
	}
	if err := e.convs.UpdateLastMessage(conv.ID, message.ID, message.CreatedAt); err != nil {
		return domain.Message{}, err
	}
	if err := e.convs.IncrementUnread(conv.ID, in.ReceiverID, 1); err != nil {
		return domain.Message{}, err
	}
	e.monitor.IncrMessagesSent()

	if e.index != nil {
		if err := e.index.IndexMessage(message); err != nil {
			e.log.Warn("Search indexing failed", slog.String("message_id", message.ID.String()), slog.Any("error", err))
		}
	}

	// Durable from here on. Acknowledge the sender first, then attempt the
	// live hand-off to the receiver.
	if senderConn, ok := e.registry.Lookup(in.SenderID); ok {
		e.gateway.SendTo(senderConn, event.MessageSent{Message: message, ConversationID: conv.ID})
	}

	if receiverConn, ok := e.registry.Lookup(in.ReceiverID); ok {
		if err := receiverConn.Send(event.NewMessage{Message: message, ConversationID: conv.ID}); err == nil {
			if updated, err := e.messages.UpdateStatus(message.ID, domain.StatusDelivered); err == nil {
				message = updated
				e.monitor.IncrMessagesDelivered()
			} else {
				e.log.Warn("Persisting delivered status failed", slog.Any("error", err))
			}
		}
	}

	updated := event.ConversationUpdated{
		ConversationID: conv.ID,
		LastMessage:    message,
		LastMessageAt:  message.CreatedAt,
	}
	e.gateway.SendToChannel(userChannel(in.SenderID), updated)
	e.gateway.SendToChannel(userChannel(in.ReceiverID), updated)

	return message, nil
}

// MarkRead transitions one message to read on behalf of its receiver.
// Already-read messages are an idempotent no-op that leaves the unread
// counter untouched. The sender is notified best effort.
func (e *Engine) MarkRead(messageID uuid.UUID, readerID string) (domain.Message, error) {
	message, err := e.messages.GetByID(messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if message.ReceiverID != readerID {
		return domain.Message{}, fmt.Errorf("%w: only the receiver can mark a message read", errors.ErrForbidden)
	}
	if !message.Status.CanAdvanceTo(domain.StatusRead) {
		return message, nil
	}

	updated, err := e.messages.UpdateStatus(messageID, domain.StatusRead)
	if err != nil {
		return domain.Message{}, err
	}
	if err := e.convs.IncrementUnread(message.ConversationID, readerID, -1); err != nil {
		e.log.Warn("Unread decrement failed", slog.Any("error", err))
	}
	e.monitor.IncrMessagesRead(1)

	if conn, ok := e.registry.Lookup(message.SenderID); ok {
		e.gateway.SendTo(conn, event.MessageRead{
			MessageID:      messageID,
			ConversationID: message.ConversationID,
		})
	}
	return updated, nil
}

// MarkConversationRead transitions every unread message addressed to the
// reader in one operation and zeroes their unread counter. Returns the
// messages that actually changed.
func (e *Engine) MarkConversationRead(conversationID uuid.UUID, readerID string) ([]domain.Message, error) {
	conv, err := e.convs.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(readerID) {
		return nil, fmt.Errorf("%w: not a participant of the conversation", errors.ErrForbidden)
	}

	marked, err := e.messages.BulkMarkRead(conversationID, readerID)
	if err != nil {
		return nil, err
	}
	if err := e.convs.ResetUnread(conversationID, readerID); err != nil {
		return nil, err
	}
	if len(marked) == 0 {
		return nil, nil
	}
	e.monitor.IncrMessagesRead(uint64(len(marked)))

	ids := make([]uuid.UUID, 0, len(marked))
	for _, m := range marked {
		ids = append(ids, m.ID)
	}
	if other := conv.OtherParticipant(readerID); other != "" {
		if conn, ok := e.registry.Lookup(other); ok {
			e.gateway.SendTo(conn, event.ConversationRead{
				ConversationID: conversationID,
				ReaderID:       readerID,
				MessageIDs:     ids,
			})
		}
	}
	return marked, nil
}

// Typing relays an ephemeral typing signal to the receiver's live
// connection. Dropped silently when the receiver is unreachable.
func (e *Engine) Typing(senderID, receiverID string, isTyping bool) error {
	conn, ok := e.registry.Lookup(receiverID)
	if !ok {
		return nil
	}
	sender, err := e.users.GetUserByID(senderID)
	if err != nil {
		return err
	}
	e.gateway.SendTo(conn, event.UserTyping{
		UserID:   senderID,
		Username: sender.Username,
		IsTyping: isTyping,
	})
	return nil
}

// Connect binds a fresh connection handle to its authenticated user: the
// handle becomes the user's reachable endpoint, the user joins their
// personal channel and everyone else learns they came online.
func (e *Engine) Connect(userID string, conn contract.Connection) error {
	user, err := e.users.GetUserByID(userID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return errors.ErrUnknownUser
		}
		return err
	}

	e.registry.Register(userID, conn)
	e.gateway.JoinChannel(conn, userChannel(userID))

	if err := e.users.UpdatePresence(userID, domain.StatusOnline, time.Now().UTC()); err != nil {
		e.log.Warn("Presence update failed", slog.String("user_id", userID), slog.Any("error", err))
	}
	e.gateway.BroadcastExcept(conn, event.UserOnline{UserID: userID, Username: user.Username})
	e.monitor.SetActiveConnections(len(e.registry.Snapshot()))

	e.log.Info("User connected", slog.String("user_id", userID), slog.String("connection_id", conn.ID()))
	return nil
}

// Disconnect tears down one connection handle. A stale handle that was
// already replaced by a reconnect is ignored so it cannot clobber the newer
// session.
func (e *Engine) Disconnect(userID string, conn contract.Connection) {
	if !e.registry.Unregister(userID, conn) {
		return
	}

	if err := e.users.UpdatePresence(userID, domain.StatusOffline, time.Now().UTC()); err != nil {
		e.log.Warn("Presence update failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	username := userID
	if user, err := e.users.GetUserByID(userID); err == nil {
		username = user.Username
	}
	e.gateway.BroadcastExcept(conn, event.UserOffline{UserID: userID, Username: username})
	e.monitor.SetActiveConnections(len(e.registry.Snapshot()))

	e.log.Info("User disconnected", slog.String("user_id", userID), slog.String("connection_id", conn.ID()))
}

// userChannel is the personal channel every connection of a user joins.
func userChannel(userID string) string { return "user:" + userID }
