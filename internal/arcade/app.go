// Package arcade wires the arcade components together and binds them to a
// client session.
package arcade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arcade-social/internal/auth"
	"github.com/arcade-social/internal/chat"
	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/friends"
	"github.com/arcade-social/internal/leaderboard"
	"github.com/arcade-social/internal/moderation"
	"github.com/arcade-social/internal/notify"
	"github.com/arcade-social/internal/preferences"
	"github.com/arcade-social/internal/presence"
	"github.com/arcade-social/internal/session"
	"github.com/arcade-social/internal/tree"
)

const defaultHistoryLimit = 20

// HistorySource returns a player's archived scores
type HistorySource interface {
	ScoreHistory(ctx context.Context, userID string, limit int) ([]domain.ArchivedScore, error)
}

// Deps are the process-wide collaborators shared by every client
type Deps struct {
	Store    tree.Store
	Config   *config.Config
	Provider auth.Provider
	Archive  leaderboard.Archiver
	History  HistorySource
	Logger   *slog.Logger
}

// App holds shared state and builds per-session components
type App struct {
	store    tree.Store
	cfg      *config.Config
	provider auth.Provider
	checker  *moderation.Checker
	board    *leaderboard.Board
	tracker  *presence.Tracker
	history  HistorySource
	logger   *slog.Logger
}

// New creates the arcade application
func New(d Deps) *App {
	return &App{
		store:    d.Store,
		cfg:      d.Config,
		provider: d.Provider,
		checker:  moderation.NewChecker(&d.Config.Moderation),
		board:    leaderboard.NewBoard(d.Store, &d.Config.Leaderboard, d.Archive, d.Logger),
		tracker:  presence.NewTracker(d.Store, d.Logger),
		history:  d.History,
		logger:   d.Logger,
	}
}

// Resume signs a session in as userID under the username stored in the
// profile. A token carries the name it was issued with, which a rename
// outdates; fallback is used only when no profile name exists.
func (a *App) Resume(ctx context.Context, userID, fallback string) (*session.Context, error) {
	snap, err := a.store.Get(ctx, tree.Join("users", userID, "username"))
	if err != nil {
		return nil, fmt.Errorf("reading username: %w", err)
	}
	username := fallback
	var stored string
	if err := snap.Decode(&stored); err == nil && stored != "" {
		username = stored
	}
	return session.NewSignedIn(userID, username), nil
}

// Board returns the session-independent leaderboard
func (a *App) Board() *leaderboard.Board {
	return a.board
}

// Presence returns the presence tracker
func (a *App) Presence() *presence.Tracker {
	return a.tracker
}

// Components are the arcade components acting for one session
type Components struct {
	Session       *session.Context
	Auth          *auth.Service
	Leaderboard   *leaderboard.Service
	Friends       *friends.Service
	Chat          *chat.Service
	Messenger     *chat.Messenger
	Notifications *notify.Service
	Preferences   *preferences.Service

	history HistorySource
}

// Bind builds the components for sess
func (a *App) Bind(sess *session.Context) *Components {
	notes := notify.NewService(a.store, &a.cfg.Notifications, sess, a.logger)
	messenger := chat.NewMessenger(a.store, &a.cfg.Leaderboard, notes, sess, a.logger)

	return &Components{
		Session:       sess,
		Auth:          auth.NewService(a.store, a.provider, a.checker, sess, a.logger),
		Leaderboard:   leaderboard.NewService(a.board, sess),
		Friends:       friends.NewService(a.store, notes, messenger, sess, a.logger),
		Chat:          chat.NewService(a.store, messenger, sess, a.logger),
		Messenger:     messenger,
		Notifications: notes,
		Preferences:   preferences.NewService(a.store, &a.cfg.Leaderboard, sess, a.logger),
		history:       a.history,
	}
}

// ScoreHistory returns the signed-in user's latest archived scores. Without
// an archive the history is empty.
func (c *Components) ScoreHistory(ctx context.Context, limit int) ([]domain.ArchivedScore, error) {
	u, err := c.Session.Require()
	if err != nil {
		return nil, err
	}
	if c.history == nil {
		return []domain.ArchivedScore{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return c.history.ScoreHistory(ctx, u.ID, limit)
}
