package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/markbates/goth/gothic"

	"github.com/arcade-social/internal/arcade"
	"github.com/arcade-social/internal/auth"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/session"
)

type contextKey struct{}

// TokenResponse is returned by every sign-in endpoint
type TokenResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// LoginRequest is the body of a password sign-in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// optionalSession binds components to the bearer's session, or to a
// signed-out one when no token is sent
func (h *Handler) optionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessionFor(r)
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, h.app.Bind(sess))))
	})
}

// requireSession rejects requests without a valid bearer token
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessionFor(r)
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		if _, ok := sess.Current(); !ok {
			h.writeError(w, http.StatusUnauthorized, domain.ErrNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, h.app.Bind(sess))))
	})
}

func (h *Handler) sessionFor(r *http.Request) (*session.Context, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return session.New(), nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, domain.ErrNotAuthenticated
	}
	claims, err := h.issuer.Parse(token)
	if err != nil {
		h.logger.Debug("rejected bearer token", "error", err)
		return nil, domain.ErrNotAuthenticated
	}
	return h.app.Resume(r.Context(), claims.UserID, claims.Username)
}

func components(r *http.Request) *arcade.Components {
	return r.Context().Value(contextKey{}).(*arcade.Components)
}

func (h *Handler) writeToken(w http.ResponseWriter, u session.User) {
	token, err := h.issuer.Issue(u.ID, u.Username)
	if err != nil {
		h.logger.Error("failed to issue token", "user_id", u.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, TokenResponse{Token: token, UserID: u.ID, Username: u.Username})
}

// Register creates a password account
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := components(r).Auth.Register(r.Context(), req)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeToken(w, u)
}

// Login signs in with email and password
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := components(r).Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeToken(w, u)
}

// BeginOAuth redirects to the provider's consent page
func (h *Handler) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	// Gothic requires the "provider" query parameter
	withProvider(r)
	gothic.BeginAuthHandler(w, r)
}

// CompleteOAuth finishes the provider flow and signs the user in
func (h *Handler) CompleteOAuth(w http.ResponseWriter, r *http.Request) {
	withProvider(r)

	gothUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		h.logger.Warn("oauth callback failed", "provider", chi.URLParam(r, "provider"), "error", err)
		h.writeError(w, http.StatusUnauthorized, domain.ErrNotAuthenticated)
		return
	}

	u, err := components(r).Auth.FederatedLogin(r.Context(), auth.FromGoth(gothUser))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeToken(w, u)
}

func withProvider(r *http.Request) {
	q := r.URL.Query()
	q.Set("provider", auth.GothName(chi.URLParam(r, "provider")))
	r.URL.RawQuery = q.Encode()
}
