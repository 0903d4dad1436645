package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"talkify/auth"
	"talkify/delivery"
	"talkify/domain"
	"talkify/errors"
	"talkify/repositories"
	"talkify/translate"
)

type registerRequest struct {
	Username          string `json:"username"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	PreferredLanguage string `json:"preferredLanguage"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": a.monitor.GetLatest().UptimeSeconds,
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.monitor.GetLatest())
}

func (a *API) handleLanguages(w http.ResponseWriter, r *http.Request) {
	type language struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	languages := lo.Map(translate.SupportedLanguages(), func(l translate.Language, _ int) language {
		return language{Code: l.Code, Name: l.Name}
	})
	writeJSON(w, http.StatusOK, languages)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	token, user, err := a.authService.Register(auth.RegisterRequest{
		Username:          req.Username,
		Email:             req.Email,
		Password:          req.Password,
		PreferredLanguage: req.PreferredLanguage,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": user})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	token, user, err := a.authService.Login(req.Username, req.Password)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListUsers()
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.GetUserByID(claimsFrom(r).UserID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.GetUserByID(mux.Vars(r)["id"])
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleSearchUsers finds contacts by username substring, excluding the
// caller.
func (a *API) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter")
		return
	}

	users, err := a.users.ListUsers()
	if err != nil {
		a.fail(w, err)
		return
	}

	callerID := claimsFrom(r).UserID
	needle := strings.ToLower(query)
	matches := lo.Filter(users, func(u domain.User, _ int) bool {
		return u.ID != callerID && strings.Contains(strings.ToLower(u.Username), needle)
	})
	if len(matches) > 20 {
		matches = matches[:20]
	}
	writeJSON(w, http.StatusOK, matches)
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PreferredLanguage *string `json:"preferredLanguage"`
		ProfilePicture    *string `json:"profilePicture"`
		Email             *string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var check auth.ProfileRequest
	if payload.Email != nil {
		if *payload.Email == "" {
			a.fail(w, fmt.Errorf("%w: email cannot be removed", errors.ErrValidation))
			return
		}
		check.Email = *payload.Email
	}
	if payload.PreferredLanguage != nil {
		check.PreferredLanguage = *payload.PreferredLanguage
	}
	if err := auth.ValidateProfile(check); err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}

	user, err := a.users.UpdateProfile(claimsFrom(r).UserID, repositories.ProfileUpdate{
		PreferredLanguage: payload.PreferredLanguage,
		ProfilePicture:    payload.ProfilePicture,
		Email:             payload.Email,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status domain.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	switch payload.Status {
	case domain.StatusOnline, domain.StatusOffline, domain.StatusAway:
	default:
		a.fail(w, fmt.Errorf("%w: invalid status %q", errors.ErrValidation, payload.Status))
		return
	}

	userID := claimsFrom(r).UserID
	if err := a.users.UpdatePresence(userID, payload.Status, time.Now().UTC()); err != nil {
		a.fail(w, err)
		return
	}
	user, err := a.users.GetUserByID(userID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleListConversations(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	convs, err := a.convs.ListByParticipant(claims.UserID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// handleListMessages returns one newest-first page of a conversation.
// Opening the history counts as catching up, so the caller's unread counter
// is reset, mirroring what a chat client shows on screen.
func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	conversationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed conversation id")
		return
	}

	conv, err := a.convs.GetByID(conversationID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if !conv.HasParticipant(claims.UserID) {
		a.fail(w, errors.ErrForbidden)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}

	messages, next, err := a.messages.ListByConversation(conversationID, cursor, limit)
	if err != nil {
		a.fail(w, err)
		return
	}

	if err := a.convs.ResetUnread(conversationID, claims.UserID); err != nil {
		a.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages":   messages,
		"nextCursor": next,
	})
}

func (a *API) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var payload struct {
		ReceiverID  string `json:"receiverId"`
		Text        string `json:"text"`
		MessageType string `json:"messageType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	message, err := a.engine.Send(r.Context(), delivery.SendInput{
		SenderID:    claims.UserID,
		ReceiverID:  payload.ReceiverID,
		Text:        payload.Text,
		MessageType: payload.MessageType,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func (a *API) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	messageID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed message id")
		return
	}

	message, err := a.engine.MarkRead(messageID, claims.UserID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message)
}

func (a *API) handleMarkConversationRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	conversationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed conversation id")
		return
	}

	marked, err := a.engine.MarkConversationRead(conversationID, claims.UserID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": len(marked)})
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	if a.index == nil {
		writeError(w, http.StatusNotImplemented, "search is disabled")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	claims := claimsFrom(r)
	scope := r.URL.Query().Get("conversationId")
	if scope != "" {
		conversationID, err := uuid.Parse(scope)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed conversation id")
			return
		}
		conv, err := a.convs.GetByID(conversationID)
		if err != nil {
			a.fail(w, err)
			return
		}
		if !conv.HasParticipant(claims.UserID) {
			a.fail(w, errors.ErrForbidden)
			return
		}
	}

	hits, err := a.index.Search(r.Context(), query, scope, limit)
	if err != nil {
		a.fail(w, err)
		return
	}

	// An unscoped search may only surface the caller's own conversations.
	if scope == "" {
		own, err := a.convs.ListByParticipant(claims.UserID)
		if err != nil {
			a.fail(w, err)
			return
		}
		member := make(map[string]bool, len(own))
		for _, conv := range own {
			member[conv.ID.String()] = true
		}
		filtered := hits[:0]
		for _, hit := range hits {
			if member[hit.ConversationID] {
				filtered = append(filtered, hit)
			}
		}
		hits = filtered
	}
	writeJSON(w, http.StatusOK, hits)
}
