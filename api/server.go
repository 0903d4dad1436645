// Package api is the REST surface: auth, directory, conversation history
// and diagnostics. Real-time traffic goes through the ws package; this one
// covers everything a client does outside the socket.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"talkify/auth"
	"talkify/delivery"
	"talkify/errors"
	"talkify/observability"
	"talkify/repositories"
	"talkify/search"
	"talkify/services"
)

type contextKey string

const claimsKey contextKey = "claims"

type API struct {
	authService services.IAuthService
	tokens      *auth.TokenManager
	users       repositories.IUserRepository
	convs       repositories.IConversationRepository
	messages    repositories.IMessageRepository
	engine      *delivery.Engine
	index       *search.Index
	monitor     *observability.Monitor
	log         *slog.Logger
}

type Params struct {
	AuthService services.IAuthService
	Tokens      *auth.TokenManager
	Users       repositories.IUserRepository
	Convs       repositories.IConversationRepository
	Messages    repositories.IMessageRepository
	Engine      *delivery.Engine
	Index       *search.Index
	Monitor     *observability.Monitor
	Log         *slog.Logger
}

func New(p Params) *API {
	return &API{
		authService: p.AuthService,
		tokens:      p.Tokens,
		users:       p.Users,
		convs:       p.Convs,
		messages:    p.Messages,
		engine:      p.Engine,
		index:       p.Index,
		monitor:     p.Monitor,
		log:         p.Log,
	}
}

// Router wires every route. Everything under the protected subrouter
// requires a valid bearer token.
func (a *API) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/health", a.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", a.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/api/languages", a.handleLanguages).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/register", a.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", a.handleLogin).Methods(http.MethodPost)

	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(a.requireAuth)
	protected.HandleFunc("/me", a.handleMe).Methods(http.MethodGet)
	protected.HandleFunc("/profile", a.handleUpdateProfile).Methods(http.MethodPatch)
	protected.HandleFunc("/status", a.handleUpdateStatus).Methods(http.MethodPatch)
	protected.HandleFunc("/users", a.handleListUsers).Methods(http.MethodGet)
	protected.HandleFunc("/users/search", a.handleSearchUsers).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", a.handleGetUser).Methods(http.MethodGet)
	protected.HandleFunc("/conversations", a.handleListConversations).Methods(http.MethodGet)
	protected.HandleFunc("/conversations/{id}/messages", a.handleListMessages).Methods(http.MethodGet)
	protected.HandleFunc("/conversations/{id}/read", a.handleMarkConversationRead).Methods(http.MethodPost)
	protected.HandleFunc("/messages", a.handleSendMessage).Methods(http.MethodPost)
	protected.HandleFunc("/messages/{id}/read", a.handleMarkRead).Methods(http.MethodPost)
	protected.HandleFunc("/messages/search", a.handleSearch).Methods(http.MethodGet)

	return router
}

// requireAuth validates the bearer token and stashes the claims in the
// request context.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := a.tokens.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func claimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// fail translates domain errors into HTTP status codes without leaking
// internals.
func (a *API) fail(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, errors.ErrValidation), stderrors.Is(err, errors.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case stderrors.Is(err, errors.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case stderrors.Is(err, errors.ErrNotFound), stderrors.Is(err, errors.ErrUnknownUser):
		writeError(w, http.StatusNotFound, err.Error())
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case stderrors.Is(err, errors.ErrStorageUnavailable):
		a.log.Error("Storage failure on API request", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		a.log.Error("Unhandled API error", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
