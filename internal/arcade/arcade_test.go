package arcade

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arcade-social/internal/auth/authtest"
	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/dispatch"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/session"
	"github.com/arcade-social/internal/tree"
	"github.com/arcade-social/internal/treetest"
)

type event struct {
	name string
	data any
}

type recordingPusher struct {
	events chan event
}

func newPusher() *recordingPusher {
	return &recordingPusher{events: make(chan event, 64)}
}

func (p *recordingPusher) Push(name string, data any) {
	p.events <- event{name: name, data: data}
}

func (p *recordingPusher) next(t *testing.T) event {
	t.Helper()
	select {
	case e := <-p.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event pushed")
		return event{}
	}
}

func (p *recordingPusher) drain() {
	for {
		select {
		case <-p.events:
		default:
			return
		}
	}
}

func newApp(t *testing.T) (*App, tree.Store) {
	store := treetest.New(t)
	app := New(Deps{
		Store:    store,
		Config:   config.DefaultConfig(),
		Provider: authtest.NewProvider(),
		Logger:   treetest.Logger(),
	})
	return app, store
}

func run(t *testing.T, c *Client, typ string, payload any) (any, error) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = b
	}
	return c.Dispatch(context.Background(), dispatch.Command{Type: typ, Payload: raw})
}

func register(t *testing.T, c *Client, email, username string) signedInUser {
	t.Helper()
	out, err := run(t, c, "auth.register", map[string]string{
		"email": email, "password": "secret1", "confirm": "secret1", "username": username,
	})
	require.NoError(t, err)
	return out.(signedInUser)
}

func status(t *testing.T, store tree.Store, uid string) string {
	t.Helper()
	snap, err := store.Get(context.Background(), tree.Join("users", uid, "status"))
	require.NoError(t, err)
	var s string
	if snap.Exists() {
		require.NoError(t, snap.Decode(&s))
	}
	return s
}

func TestCommandSetIsRegistered(t *testing.T) {
	app, _ := newApp(t)
	c := app.Connect(session.New(), newPusher())
	defer c.Close()

	cmds := c.Commands()
	for _, name := range []string{
		"auth.register", "auth.login", "auth.logout", "profile.get", "profile.rename",
		"score.submit", "leaderboard.top", "view.open", "view.close",
		"friends.list", "friends.request", "friends.accept", "friends.reject", "friends.invite",
		"chats.list", "chats.open", "chats.send", "chats.messages", "chats.invite",
		"notifications.list", "preferences.get", "preferences.favorite", "preferences.pin",
		"presence.count",
	} {
		require.Contains(t, cmds, name)
	}

	_, err := run(t, c, "nope", nil)
	require.ErrorIs(t, err, dispatch.ErrUnknownCommand)
}

func TestRegisterSubmitAndProfile(t *testing.T) {
	app, store := newApp(t)
	c := app.Connect(session.New(), newPusher())
	defer c.Close()

	_, err := run(t, c, "score.submit", map[string]any{"game": "memory", "score": 42})
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)

	u := register(t, c, "alice@example.com", "alice")
	require.Equal(t, "alice", u.Username)
	require.Equal(t, domain.StatusOnline, status(t, store, u.UserID))

	out, err := run(t, c, "score.submit", map[string]any{"game": "memory", "score": 42})
	require.NoError(t, err)
	require.NotEmpty(t, out.(keyResult).ID)

	out, err = run(t, c, "profile.get", nil)
	require.NoError(t, err)
	view := out.(domain.ProfileView)
	require.EqualValues(t, 1, view.Profile.Stats.GamesPlayed)
	require.EqualValues(t, 42, view.AverageScore)

	out, err = run(t, c, "leaderboard.top", map[string]string{"game": "memory"})
	require.NoError(t, err)
	entries := out.([]domain.RankedEntry)
	require.Len(t, entries, 1)
	require.Equal(t, "alice", entries[0].Entry.Name)

	out, err = run(t, c, "presence.count", nil)
	require.NoError(t, err)
	require.Equal(t, 1, out)

	out, err = run(t, c, "profile.history", nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestPayloadWithUnknownFieldIsRejected(t *testing.T) {
	app, _ := newApp(t)
	c := app.Connect(session.New(), newPusher())
	defer c.Close()

	_, err := run(t, c, "leaderboard.top", map[string]string{"gmae": "memory"})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestLeaderboardViewPushesUpdates(t *testing.T) {
	app, _ := newApp(t)
	p := newPusher()
	c := app.Connect(session.New(), p)
	defer c.Close()

	register(t, c, "bob@example.com", "bob")

	out, err := run(t, c, "view.open", map[string]string{"view": ViewLeaderboard})
	require.NoError(t, err)
	require.Equal(t, viewResult{View: ViewLeaderboard, Subscriptions: 3}, out)

	for range app.Board().Games() {
		e := p.next(t)
		require.Equal(t, EventLeaderboardUpdate, e.name)
		require.Empty(t, e.data.(LeaderboardUpdate).Entries)
	}

	_, err = run(t, c, "score.submit", map[string]any{"game": "guess", "score": 7})
	require.NoError(t, err)

	e := p.next(t)
	update := e.data.(LeaderboardUpdate)
	require.Equal(t, "guess", update.Game)
	require.Len(t, update.Entries, 1)
	require.EqualValues(t, 7, update.Entries[0].Entry.Score)
}

func TestViewSwitchReleasesSubscriptions(t *testing.T) {
	app, store := newApp(t)
	p := newPusher()
	c := app.Connect(session.New(), p)
	defer c.Close()

	u := register(t, c, "carol@example.com", "carol")

	_, err := run(t, c, "view.open", map[string]string{"view": ViewLeaderboard})
	require.NoError(t, err)
	_, n := c.View()
	require.Equal(t, 3, n)

	out, err := run(t, c, "view.open", map[string]string{"view": ViewFriends})
	require.NoError(t, err)
	require.Equal(t, viewResult{View: ViewFriends}, out)

	p.drain()
	_, err = run(t, c, "score.submit", map[string]any{"game": "guess", "score": 1})
	require.NoError(t, err)
	select {
	case e := <-p.events:
		t.Fatalf("event after view switch: %s", e.name)
	case <-time.After(200 * time.Millisecond):
	}

	_, err = run(t, c, "view.open", map[string]string{"view": ViewLeaderboard})
	require.NoError(t, err)

	_, err = run(t, c, "auth.logout", nil)
	require.NoError(t, err)
	view, n := c.View()
	require.Empty(t, view)
	require.Zero(t, n)
	require.Equal(t, domain.StatusOffline, status(t, store, u.UserID))

	_, err = run(t, c, "view.open", map[string]string{"view": "lobby"})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestCloseReleasesViewAndMarksOffline(t *testing.T) {
	app, store := newApp(t)
	c := app.Connect(session.New(), newPusher())

	u := register(t, c, "dave@example.com", "dave")
	_, err := run(t, c, "view.open", map[string]string{"view": ViewLeaderboard})
	require.NoError(t, err)

	c.Close()

	_, n := c.View()
	require.Zero(t, n)
	require.Equal(t, domain.StatusOffline, status(t, store, u.UserID))
}

func TestFriendFlowOverCommands(t *testing.T) {
	app, _ := newApp(t)
	alice := app.Connect(session.New(), newPusher())
	defer alice.Close()
	bob := app.Connect(session.New(), newPusher())
	defer bob.Close()

	a := register(t, alice, "alice@example.com", "alice")
	b := register(t, bob, "bob@example.com", "bob")

	_, err := run(t, alice, "friends.request", map[string]string{"username": "bob"})
	require.NoError(t, err)

	out, err := run(t, bob, "friends.requests", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	_, err = run(t, bob, "friends.accept", map[string]string{"requesterId": a.UserID})
	require.NoError(t, err)

	out, err = run(t, alice, "friends.list", nil)
	require.NoError(t, err)
	friends := out.([]domain.FriendView)
	require.Len(t, friends, 1)
	require.Equal(t, "bob", friends[0].Username)

	out, err = run(t, alice, "chats.open", map[string]string{"friendId": b.UserID})
	require.NoError(t, err)
	chatID := out.(keyResult).ID

	_, err = run(t, alice, "chats.send", map[string]string{"chatId": chatID, "text": "hi"})
	require.NoError(t, err)

	out, err = run(t, bob, "chats.messages", map[string]any{"chatId": chatID})
	require.NoError(t, err)
	require.Len(t, out, 1)

	out, err = run(t, bob, "notifications.list", nil)
	require.NoError(t, err)
	require.NotEmpty(t, out)
}
