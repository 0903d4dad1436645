package delivery

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"talkify/contract"
	"talkify/domain"
	"talkify/domain/event"
	"talkify/errors"
	"talkify/mocks"
	"talkify/moderation"
	"talkify/observability"
	"talkify/presence"
	"talkify/repositories"
	"talkify/translate"
)

// testConn records every event pushed to one connection.
type testConn struct {
	id       string
	mu       sync.Mutex
	events   []event.DomainEvent
	failSend bool
}

func (c *testConn) ID() string { return c.id }

func (c *testConn) Send(e event.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return stderrors.New("connection gone")
	}
	c.events = append(c.events, e)
	return nil
}

func (c *testConn) received(name string) []event.DomainEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event.DomainEvent
	for _, e := range c.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

// recordingGateway captures fan-out without a real transport.
type recordingGateway struct {
	mu        sync.Mutex
	channels  map[string][]event.DomainEvent
	broadcast []event.DomainEvent
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{channels: make(map[string][]event.DomainEvent)}
}

func (g *recordingGateway) SendTo(conn contract.Connection, e event.DomainEvent) {
	_ = conn.Send(e)
}

func (g *recordingGateway) BroadcastExcept(except contract.Connection, e event.DomainEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.broadcast = append(g.broadcast, e)
}

func (g *recordingGateway) JoinChannel(conn contract.Connection, channel string) {}

func (g *recordingGateway) SendToChannel(channel string, e event.DomainEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[channel] = append(g.channels[channel], e)
}

func (g *recordingGateway) channelEvents(channel string) []event.DomainEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]event.DomainEvent(nil), g.channels[channel]...)
}

type harness struct {
	engine     *Engine
	users      repositories.IUserRepository
	convs      repositories.IConversationRepository
	messages   repositories.IMessageRepository
	registry   *presence.Registry
	gateway    *recordingGateway
	translator *mocks.MockTranslator
	monitor    *observability.Monitor
}

func newHarness(t *testing.T, moderator *moderation.Moderator) *harness {
	t.Helper()
	options := badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20)
	db, err := badger.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	ctrl := gomock.NewController(t)

	h := &harness{
		users:      repositories.NewUserRepository(db),
		convs:      repositories.NewConversationRepository(db),
		messages:   repositories.NewMessageRepository(db, log),
		registry:   presence.NewRegistry(),
		gateway:    newRecordingGateway(),
		translator: mocks.NewMockTranslator(ctrl),
		monitor:    observability.NewMonitor(log),
	}
	h.engine = NewEngine(EngineParams{
		Users:      h.users,
		Convs:      h.convs,
		Messages:   h.messages,
		Translator: h.translator,
		Registry:   h.registry,
		Gateway:    h.gateway,
		Moderator:  moderator,
		Monitor:    h.monitor,
		Log:        log,
	})
	return h
}

func (h *harness) addUser(t *testing.T, username, language string) string {
	t.Helper()
	id, err := h.users.CreateUser(domain.User{Username: username, PreferredLanguage: language})
	require.NoError(t, err)
	return id
}

func TestEngine_Send_Translates_And_Delivers_To_Online_Receiver(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)

	sender := h.addUser(t, "maria", "es")
	receiver := h.addUser(t, "john", "en")

	senderConn := &testConn{id: "c1"}
	receiverConn := &testConn{id: "c2"}
	h.registry.Register(sender, senderConn)
	h.registry.Register(receiver, receiverConn)

	h.translator.EXPECT().
		Translate(gomock.Any(), "hola amigo", "en", translate.Auto).
		Return(translate.Result{TranslatedText: "hello friend", SourceLanguage: "es", TargetLanguage: "en"}, nil)

	message, err := h.engine.Send(context.Background(), SendInput{
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       "hola amigo",
	})
	req.NoError(err)
	req.Equal(domain.StatusDelivered, message.Status)
	req.Equal("hola amigo", message.OriginalText)
	req.Equal("hello friend", message.TranslatedText)
	req.Equal("es", message.SourceLanguage)
	req.Equal("en", message.TargetLanguage)

	// Receiver got the live hand-off, sender got the acknowledgment.
	req.Len(receiverConn.received("newMessage"), 1)
	req.Len(senderConn.received("messageSent"), 1)

	// Both personal channels converged on the conversation update.
	req.Len(h.gateway.channelEvents("user:"+sender), 1)
	req.Len(h.gateway.channelEvents("user:"+receiver), 1)

	conv, err := h.convs.GetByID(message.ConversationID)
	req.NoError(err)
	req.Equal(1, conv.Unread(receiver))
	req.Equal(0, conv.Unread(sender))
	req.Equal(message.ID, conv.LastMessageID)
}

func TestEngine_Send_Offline_Receiver_Stays_Sent_But_Is_Acknowledged(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)

	sender := h.addUser(t, "maria", "es")
	receiver := h.addUser(t, "john", "en")

	senderConn := &testConn{id: "c1"}
	h.registry.Register(sender, senderConn)

	h.translator.EXPECT().
		Translate(gomock.Any(), gomock.Any(), "en", translate.Auto).
		Return(translate.Result{TranslatedText: "good morning", SourceLanguage: "es", TargetLanguage: "en"}, nil)

	message, err := h.engine.Send(context.Background(), SendInput{
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       "buenos dias",
	})
	req.NoError(err)
	req.Equal(domain.StatusSent, message.Status)
	req.Len(senderConn.received("messageSent"), 1)

	stored, err := h.messages.GetByID(message.ID)
	req.NoError(err)
	req.Equal(domain.StatusSent, stored.Status)
}

func TestEngine_Send_Translation_Failure_Degrades_To_Original_Text(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)

	sender := h.addUser(t, "maria", "es")
	receiver := h.addUser(t, "john", "en")

	// A bare error with a zero result still yields a usable message.
	h.translator.EXPECT().
		Translate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(translate.Result{}, stderrors.New("provider unreachable"))

	message, err := h.engine.Send(context.Background(), SendInput{
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       "hola amigo",
	})
	req.NoError(err)
	req.Equal("hola amigo", message.TranslatedText)
	req.Equal("en", message.TargetLanguage)
	req.EqualValues(1, h.monitor.GetLatest().TranslationFallbacks)
}

func TestEngine_Send_Rejects_Invalid_Input(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)

	sender := h.addUser(t, "maria", "es")

	_, err := h.engine.Send(context.Background(), SendInput{SenderID: sender, ReceiverID: "someone", Text: "   "})
	req.ErrorIs(err, errors.ErrValidation)

	_, err = h.engine.Send(context.Background(), SendInput{SenderID: sender, ReceiverID: sender, Text: "hi"})
	req.ErrorIs(err, errors.ErrValidation)

	_, err = h.engine.Send(context.Background(), SendInput{SenderID: sender, ReceiverID: "ghost", Text: "hi"})
	req.ErrorIs(err, errors.ErrUnknownUser)

	_, err = h.engine.Send(context.Background(), SendInput{SenderID: "ghost", ReceiverID: sender, Text: "hi"})
	req.ErrorIs(err, errors.ErrUnknownUser)
}

func TestEngine_Send_Censors_Blacklisted_Words_Before_Storage(t *testing.T) {
	req := require.New(t)
	moderator, err := moderation.NewModerator([]string{"mushroom"}, '*')
	req.NoError(err)
	h := newHarness(t, &moderator)

	sender := h.addUser(t, "maria", "en")
	receiver := h.addUser(t, "john", "en")

	h.translator.EXPECT().
		Translate(gomock.Any(), "a ******** story", gomock.Any(), gomock.Any()).
		Return(translate.Result{TranslatedText: "a ******** story", SourceLanguage: "en", TargetLanguage: "en"}, nil)

	message, err := h.engine.Send(context.Background(), SendInput{
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       "a mushroom story",
	})
	req.NoError(err)
	req.Equal("a ******** story", message.OriginalText)
	req.EqualValues(1, h.monitor.GetLatest().MessagesCensored)
}

func TestEngine_MarkRead_Transitions_And_Notifies_Sender(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)

	sender := h.addUser(t, "maria", "es")
	receiver := h.addUser(t, "john", "en")

	h.translator.EXPECT().
		Translate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(translate.Result{TranslatedText: "hi", SourceLanguage: "es", TargetLanguage: "en"}, nil)

	message, err := h.engine.Send(context.Background(), SendInput{SenderID: sender, ReceiverID: receiver, Text: "hola"})
	req.NoError(err)

	senderConn := &testConn{id: "c1"}
	h.registry.Register(sender, senderConn)

	// Only the receiver may mark it read.
	_, err = h.engine.MarkRead(message.ID, sender)
	req.ErrorIs(err, errors.ErrForbidden)

	updated, err := h.engine.MarkRead(message.ID, receiver)
	req.NoError(err)
	req.Equal(domain.StatusRead, updated.Status)
	req.Len(senderConn.received("messageRead"), 1)

	conv, err := h.convs.GetByID(message.ConversationID)
	req.NoError(err)
	req.Equal(0, conv.Unread(receiver))

	// Second read is an idempotent no-op, the counter stays at zero.
	updated, err = h.engine.MarkRead(message.ID, receiver)
	req.NoError(err)
	req.Equal(domain.StatusRead, updated.Status)
	conv, err = h.convs.GetByID(message.ConversationID)
	req.NoError(err)
	req.Equal(0, conv.Unread(receiver))
	req.Len(senderConn.received("messageRead"), 1)
}

func TestEngine_MarkConversationRead_Bulk_Transition(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)

	sender := h.addUser(t, "maria", "es")
	receiver := h.addUser(t, "john", "en")

	h.translator.EXPECT().
		Translate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(translate.Result{TranslatedText: "x", SourceLanguage: "es", TargetLanguage: "en"}, nil).
		AnyTimes()

	var convID uuid.UUID
	texts := []string{"uno", "dos", "tres"}
	for _, text := range texts {
		message, err := h.engine.Send(context.Background(), SendInput{SenderID: sender, ReceiverID: receiver, Text: text})
		req.NoError(err)
		convID = message.ConversationID
	}
	// One message going the other way must not be touched by the bulk read.
	reply, err := h.engine.Send(context.Background(), SendInput{SenderID: receiver, ReceiverID: sender, Text: "reply"})
	req.NoError(err)

	senderConn := &testConn{id: "c1"}
	h.registry.Register(sender, senderConn)

	_, err = h.engine.MarkConversationRead(convID, "stranger")
	req.ErrorIs(err, errors.ErrForbidden)

	marked, err := h.engine.MarkConversationRead(convID, receiver)
	req.NoError(err)
	req.Len(marked, 3)

	events := senderConn.received("conversationRead")
	req.Len(events, 1)
	read := events[0].(event.ConversationRead)
	req.Equal(receiver, read.ReaderID)
	req.Len(read.MessageIDs, 3)

	conv, err := h.convs.GetByID(convID)
	req.NoError(err)
	req.Equal(0, conv.Unread(receiver))
	req.Equal(1, conv.Unread(sender))

	stored, err := h.messages.GetByID(reply.ID)
	req.NoError(err)
	req.NotEqual(domain.StatusRead, stored.Status)

	// Re-running the bulk read finds nothing left to mark.
	marked, err = h.engine.MarkConversationRead(convID, receiver)
	req.NoError(err)
	req.Empty(marked)
}

func TestEngine_Connect_And_Disconnect_Lifecycle(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)

	userID := h.addUser(t, "maria", "es")
	conn := &testConn{id: "c1"}

	req.ErrorIs(h.engine.Connect("ghost", conn), errors.ErrUnknownUser)

	req.NoError(h.engine.Connect(userID, conn))
	_, online := h.registry.Lookup(userID)
	req.True(online)

	user, err := h.users.GetUserByID(userID)
	req.NoError(err)
	req.Equal(domain.StatusOnline, user.Status)

	// A stale handle from a previous session cannot tear down the new one.
	h.engine.Disconnect(userID, &testConn{id: "old"})
	_, online = h.registry.Lookup(userID)
	req.True(online)

	h.engine.Disconnect(userID, conn)
	_, online = h.registry.Lookup(userID)
	req.False(online)

	user, err = h.users.GetUserByID(userID)
	req.NoError(err)
	req.Equal(domain.StatusOffline, user.Status)
	req.Len(h.gateway.broadcast, 2)
}

func TestEngine_Typing_Dropped_When_Receiver_Offline(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)

	sender := h.addUser(t, "maria", "es")
	receiver := h.addUser(t, "john", "en")

	req.NoError(h.engine.Typing(sender, receiver, true))

	receiverConn := &testConn{id: "c2"}
	h.registry.Register(receiver, receiverConn)

	req.NoError(h.engine.Typing(sender, receiver, true))
	events := receiverConn.received("userTyping")
	req.Len(events, 1)
	typing := events[0].(event.UserTyping)
	req.Equal("maria", typing.Username)
	req.True(typing.IsTyping)
}
