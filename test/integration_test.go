package test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"talkify/api"
	"talkify/auth"
	"talkify/delivery"
	"talkify/domain"
	"talkify/domain/event"
	"talkify/moderation"
	"talkify/observability"
	"talkify/presence"
	"talkify/repositories"
	"talkify/search"
	"talkify/services"
	"talkify/translate"
	"talkify/ws"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type stack struct {
	cfg    Config
	server *httptest.Server
	convs  repositories.IConversationRepository
}

// newStack assembles the whole server the way cmd/main does, minus the
// process scaffolding. The translator runs without an API key, so it
// degrades to pass-through exactly like an unreachable provider would.
func newStack(t *testing.T) *stack {
	t.Helper()
	cfg, err := LoadConfig()
	require.NoError(t, err)

	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	index, err := search.Open(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	users := repositories.NewUserRepository(db)
	convs := repositories.NewConversationRepository(db)
	messages := repositories.NewMessageRepository(db, log)

	blacklist, err := moderation.LoadBlacklist()
	require.NoError(t, err)
	moderator, err := moderation.NewModerator(blacklist.Words, '*')
	require.NoError(t, err)

	translator := translate.NewOpenRouterClient(log, translate.ClientConfig{})
	monitor := observability.NewMonitor(log)
	gateway := ws.NewGateway(log)

	engine := delivery.NewEngine(delivery.EngineParams{
		Users:      users,
		Convs:      convs,
		Messages:   messages,
		Translator: translator,
		Registry:   presence.NewRegistry(),
		Gateway:    gateway,
		Moderator:  &moderator,
		Index:      index,
		Monitor:    monitor,
		Log:        log,
	})

	tokens := auth.NewTokenManager("integration_test_secret_key", time.Hour)
	wsServer := ws.NewServer(engine, tokens, gateway, log)
	restAPI := api.New(api.Params{
		AuthService: services.NewAuthService(users, tokens),
		Tokens:      tokens,
		Users:       users,
		Convs:       convs,
		Messages:    messages,
		Engine:      engine,
		Index:       index,
		Monitor:     monitor,
		Log:         log,
	})

	router := restAPI.Router()
	router.HandleFunc("/ws", wsServer.Handle)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &stack{cfg: cfg, server: server, convs: convs}
}

func (s *stack) step(format string, args ...any) {
	if s.cfg.Colours {
		color.Cyan.Printf("--- "+format+"\n", args...)
		return
	}
	color.Printf("--- "+format+"\n", args...)
}

type session struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *stack) post(t *testing.T, path, token string, payload any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (s *stack) get(t *testing.T, path, token string, out any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (s *stack) register(t *testing.T, username, language string) session {
	t.Helper()
	resp, body := s.post(t, "/api/auth/register", "", map[string]string{
		"username":          username,
		"email":             username + "@example.com",
		"password":          "Sup3r$ecretPassw0rd!",
		"preferredLanguage": language,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out session
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func (s *stack) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *stack) await(t *testing.T, conn *websocket.Conn, name string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(s.cfg.WaitTimeout)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %q", name)
		if f.Event == name {
			return f.Data
		}
	}
}

func Test_Scenario(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	s.step("Registering maria (es) and john (en)")
	maria := s.register(t, "maria", "es")
	john := s.register(t, "john", "en")

	s.step("Maria messages John over REST while he is offline")
	resp, body := s.post(t, "/api/messages", maria.Token, map[string]string{
		"receiverId": john.User.ID,
		"text":       "Hola John, espero que tengas un muy buen dia hoy",
	})
	req.Equal(http.StatusCreated, resp.StatusCode, string(body))
	var offline domain.Message
	req.NoError(json.Unmarshal(body, &offline))
	// No provider configured: the message still goes through with the
	// original text as its translation.
	req.Equal(domain.StatusSent, offline.Status)
	req.Equal(offline.OriginalText, offline.TranslatedText)

	s.step("John comes online and finds one unread conversation")
	var convs []domain.Conversation
	s.get(t, "/api/conversations", john.Token, &convs)
	req.Len(convs, 1)
	req.Equal(1, convs[0].Unread(john.User.ID))

	s.step("Both connect over websocket")
	mariaConn := s.dial(t, maria.Token)
	johnConn := s.dial(t, john.Token)
	s.await(t, mariaConn, "userOnline")

	s.step("Maria sends a live message")
	payload, err := json.Marshal(map[string]any{
		"receiverId": john.User.ID,
		"text":       "Ya estas conectado, este mensaje llega en directo",
	})
	req.NoError(err)
	req.NoError(mariaConn.WriteJSON(frame{Event: "sendMessage", Data: payload}))

	var live event.NewMessage
	req.NoError(json.Unmarshal(s.await(t, johnConn, "newMessage"), &live))
	req.Equal(maria.User.ID, live.Message.SenderID)

	var ack event.MessageSent
	req.NoError(json.Unmarshal(s.await(t, mariaConn, "messageSent"), &ack))
	req.Equal(live.Message.ID, ack.Message.ID)

	s.step("John reads the whole conversation")
	payload, err = json.Marshal(map[string]any{"conversationId": live.ConversationID})
	req.NoError(err)
	req.NoError(johnConn.WriteJSON(frame{Event: "markConversationRead", Data: payload}))

	var read event.ConversationRead
	req.NoError(json.Unmarshal(s.await(t, mariaConn, "conversationRead"), &read))
	req.Equal(john.User.ID, read.ReaderID)
	req.Len(read.MessageIDs, 2)

	s.step("John's unread counter is back to zero")
	conv, err := s.convs.GetByID(live.ConversationID)
	req.NoError(err)
	req.Equal(0, conv.Unread(john.User.ID))

	s.step("History pages newest-first for Maria")
	var page struct {
		Messages []domain.Message `json:"messages"`
	}
	s.get(t, "/api/conversations/"+live.ConversationID.String()+"/messages", maria.Token, &page)
	req.Len(page.Messages, 2)
	req.Equal(live.Message.ID, page.Messages[0].ID)
	req.Equal(domain.StatusRead, page.Messages[0].Status)
}
