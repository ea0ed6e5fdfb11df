package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SubmitScoreRequest is the body of POST /scores
type SubmitScoreRequest struct {
	Game  string `json:"game"`
	Score int64  `json:"score"`
	Name  string `json:"name,omitempty"`
}

// UsernameRequest carries a username
type UsernameRequest struct {
	Username string `json:"username"`
}

// InviteRequest is the body of POST /friends/{id}/invite
type InviteRequest struct {
	Game string `json:"game"`
}

// OpenChatRequest is the body of POST /chats
type OpenChatRequest struct {
	FriendID string `json:"friend_id"`
}

// MessageRequest is the body of POST /chats/{id}/messages
type MessageRequest struct {
	Text string `json:"text"`
}

// GetProfile returns the caller's profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	view, err := components(r).Auth.Profile(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, view)
}

// ChangeUsername renames the caller and returns a token carrying the new name
func (h *Handler) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	var req UsernameRequest
	if !h.decode(w, r, &req) {
		return
	}
	c := components(r)
	if err := c.Auth.ChangeUsername(r.Context(), req.Username); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	u, _ := c.Session.Current()
	h.writeToken(w, u)
}

// GetScoreHistory returns the caller's archived scores
func (h *Handler) GetScoreHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	scores, err := components(r).ScoreHistory(r.Context(), limit)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, scores)
}

// SubmitScore records a finished game for the caller
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req SubmitScoreRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := components(r).Leaderboard.Submit(r.Context(), req.Game, req.Score, req.Name)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "accepted", "entry_id": id})
}

// ListGames returns the games that keep a leaderboard
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.app.Board().Games())
}

// GetLeaderboard returns a game's Top view
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.app.Board().Top(r.Context(), chi.URLParam(r, "game"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, entries)
}

// ListFriends returns the caller's friends
func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := components(r).Friends.ListFriends(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, friends)
}

// ListFriendRequests returns pending incoming requests
func (h *Handler) ListFriendRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := components(r).Friends.ListIncoming(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, requests)
}

// SendFriendRequest sends a request to a user by username
func (h *Handler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req UsernameRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := components(r).Friends.SendRequest(r.Context(), req.Username); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "sent"})
}

// AcceptFriendRequest accepts the request sent by {id}
func (h *Handler) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	if err := components(r).Friends.Accept(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "accepted"})
}

// RejectFriendRequest rejects the request sent by {id}
func (h *Handler) RejectFriendRequest(w http.ResponseWriter, r *http.Request) {
	if err := components(r).Friends.Reject(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "rejected"})
}

// InviteFriend sends a game invite to friend {id}
func (h *Handler) InviteFriend(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := components(r).Friends.InviteToGame(r.Context(), chi.URLParam(r, "id"), req.Game)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "sent", "message_id": id})
}

// ListChats returns the caller's conversations, newest first
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := components(r).Chat.ListConversations(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, chats)
}

// OpenChat creates or reuses the conversation with a friend
func (h *Handler) OpenChat(w http.ResponseWriter, r *http.Request) {
	var req OpenChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := components(r).Messenger.OpenChat(r.Context(), req.FriendID)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"chat_id": id})
}

// ListMessages returns the latest messages of chat {id}
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	messages, err := components(r).Messenger.Messages(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, messages)
}

// SendMessage posts a text message to chat {id}
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := components(r).Messenger.SendMessage(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"message_id": id})
}

// ListNotifications returns recent notifications and marks them read
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	notes, err := components(r).Notifications.ListRecent(r.Context(), limit)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, notes)
}

// GetPreferences returns the caller's favorite and pinned games
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	lists, err := components(r).Preferences.Load(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, lists)
}

// ToggleFavorite flips {game} in the favorites list
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	res, err := components(r).Preferences.ToggleFavorite(r.Context(), chi.URLParam(r, "game"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, res)
}

// TogglePin flips {game} in the pinned list
func (h *Handler) TogglePin(w http.ResponseWriter, r *http.Request) {
	res, err := components(r).Preferences.TogglePin(r.Context(), chi.URLParam(r, "game"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, res)
}

// GetPresence returns the number of online users
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	count, err := h.app.Presence().CountOnline(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]int{"online": count})
}
