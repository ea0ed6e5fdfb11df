package arcade

import (
	"context"
	"log/slog"
	"time"

	"github.com/arcade-social/internal/dispatch"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/session"
)

// Event names pushed to connected clients
const (
	EventLeaderboardUpdate = "leaderboard_update"
	EventOnlineCount       = "online_count"
)

// Views a client can switch between
const (
	ViewLeaderboard = "leaderboard"
	ViewFriends     = "friends"
	ViewChats       = "chats"
	ViewProfile     = "profile"
	ViewGames       = "games"
)

const presenceTimeout = 5 * time.Second

// Pusher delivers server-initiated events to a client
type Pusher interface {
	Push(event string, data any)
}

// LeaderboardUpdate is pushed whenever a watched leaderboard changes
type LeaderboardUpdate struct {
	Game    string               `json:"game"`
	Entries []domain.RankedEntry `json:"entries"`
}

// Client is a long-lived connection bound to one session
type Client struct {
	*Components

	app        *App
	dispatcher *dispatch.Dispatcher
	scope      *Scope
	pusher     Pusher
	unlisten   func()
	logger     *slog.Logger
}

// Connect binds a client to sess. Presence follows the session: signing in
// marks the user online, signing out marks them offline and releases the
// current view.
func (a *App) Connect(sess *session.Context, pusher Pusher) *Client {
	c := &Client{
		Components: a.Bind(sess),
		app:        a,
		dispatcher: dispatch.New(),
		scope:      NewScope(a.logger),
		pusher:     pusher,
		logger:     a.logger,
	}
	c.register()

	c.unlisten = sess.OnChange(func(u session.User, signedIn bool) {
		if signedIn {
			c.setStatus(u.ID, domain.StatusOnline)
			return
		}
		c.scope.Release()
		c.setStatus(u.ID, domain.StatusOffline)
	})

	if u, ok := sess.Current(); ok {
		c.setStatus(u.ID, domain.StatusOnline)
	}
	return c
}

// Dispatch executes one client command
func (c *Client) Dispatch(ctx context.Context, cmd dispatch.Command) (any, error) {
	return c.dispatcher.Dispatch(ctx, cmd)
}

// Commands lists the command types this client accepts
func (c *Client) Commands() []string {
	return c.dispatcher.Commands()
}

// View returns the current view and its live subscription count
func (c *Client) View() (string, int) {
	return c.scope.View()
}

// Close releases everything the client holds. A signed-in user is marked
// offline.
func (c *Client) Close() {
	c.unlisten()
	c.scope.Release()
	if u, ok := c.Session.Current(); ok {
		c.setStatus(u.ID, domain.StatusOffline)
	}
}

func (c *Client) setStatus(uid, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := c.app.tracker.SetStatus(ctx, uid, status); err != nil {
		c.logger.Warn("failed to update presence", "user_id", uid, "status", status, "error", err)
	}
}
