package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"talkify/auth"
	"talkify/delivery"
	"talkify/domain/event"
	"talkify/errors"
)

// Server upgrades authenticated HTTP requests to websocket sessions and
// feeds inbound frames into the delivery engine.
type Server struct {
	engine   *delivery.Engine
	tokens   *auth.TokenManager
	gateway  *Gateway
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewServer(engine *delivery.Engine, tokens *auth.TokenManager, gateway *Gateway, log *slog.Logger) *Server {
	return &Server{
		engine:  engine,
		tokens:  tokens,
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from any origin; auth happens via JWT,
			// not via the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Inbound frame payloads. Field names are part of the wire contract.
type sendMessagePayload struct {
	ReceiverID  string `json:"receiverId"`
	Text        string `json:"text"`
	MessageType string `json:"messageType"`
}

type typingPayload struct {
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

type markReadPayload struct {
	MessageID uuid.UUID `json:"messageId"`
}

type markConversationReadPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

// Handle is the /ws endpoint. The token travels in the "token" query
// parameter or an Authorization bearer header; an invalid token rejects the
// handshake before the upgrade.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	claims, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := newClient(claims.UserID, socket, s.log)
	s.gateway.add(client)
	go client.writePump()

	if err := s.engine.Connect(claims.UserID, client); err != nil {
		s.log.Warn("Connection rejected", slog.String("user_id", claims.UserID), slog.Any("error", err))
		_ = client.Send(event.Error{Message: "connection rejected"})
		s.teardown(client)
		return
	}

	s.readLoop(client)
}

func (s *Server) authenticate(r *http.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return nil, errors.ErrInvalidCredentials
	}
	return s.tokens.Validate(token)
}

// readLoop consumes frames until the peer goes away. A malformed or failing
// frame produces an error event on this connection only; it never tears the
// session down.
func (s *Server) readLoop(client *Client) {
	defer s.teardown(client)

	client.socket.SetReadLimit(maxMessageSize)
	_ = client.socket.SetReadDeadline(time.Now().Add(pongWait))
	client.socket.SetPongHandler(func(string) error {
		return client.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f frame
		if err := client.socket.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Websocket closed unexpectedly", slog.String("connection_id", client.id), slog.Any("error", err))
			}
			return
		}
		s.dispatch(client, f)
	}
}

func (s *Server) dispatch(client *Client, f frame) {
	var err error
	switch f.Event {
	case "sendMessage":
		err = s.handleSendMessage(client, f.Data)
	case "typing":
		err = s.handleTyping(client, f.Data)
	case "markAsRead":
		err = s.handleMarkRead(client, f.Data)
	case "markConversationRead":
		err = s.handleMarkConversationRead(client, f.Data)
	default:
		s.log.Debug("Unknown inbound event", slog.String("event", f.Event))
		return
	}
	if err != nil {
		s.log.Info("Inbound event failed",
			slog.String("event", f.Event),
			slog.String("user_id", client.userID),
			slog.Any("error", err))
		_ = client.Send(event.Error{Message: publicError(err)})
	}
}

func (s *Server) handleSendMessage(client *Client, data json.RawMessage) error {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errors.ErrValidation
	}
	_, err := s.engine.Send(context.Background(), delivery.SendInput{
		SenderID:    client.userID,
		ReceiverID:  payload.ReceiverID,
		Text:        payload.Text,
		MessageType: payload.MessageType,
	})
	return err
}

func (s *Server) handleTyping(client *Client, data json.RawMessage) error {
	var payload typingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errors.ErrValidation
	}
	return s.engine.Typing(client.userID, payload.ReceiverID, payload.IsTyping)
}

func (s *Server) handleMarkRead(client *Client, data json.RawMessage) error {
	var payload markReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errors.ErrValidation
	}
	_, err := s.engine.MarkRead(payload.MessageID, client.userID)
	return err
}

func (s *Server) handleMarkConversationRead(client *Client, data json.RawMessage) error {
	var payload markConversationReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errors.ErrValidation
	}
	_, err := s.engine.MarkConversationRead(payload.ConversationID, client.userID)
	return err
}

func (s *Server) teardown(client *Client) {
	s.engine.Disconnect(client.userID, client)
	s.gateway.remove(client)
	client.close()
}

// publicError maps internal failures to a client-safe message.
func publicError(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrValidation),
		stderrors.Is(err, errors.ErrUnknownUser),
		stderrors.Is(err, errors.ErrForbidden),
		stderrors.Is(err, errors.ErrNotFound):
		return err.Error()
	default:
		return "internal error"
	}
}
