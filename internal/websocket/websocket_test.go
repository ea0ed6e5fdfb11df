package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/arcade-social/internal/arcade"
	"github.com/arcade-social/internal/auth"
	"github.com/arcade-social/internal/auth/authtest"
	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/treetest"
)

type frame struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
	Error *ErrorBody      `json:"error"`
}

type fixture struct {
	hub    *Hub
	issuer *auth.Issuer
	url    string
}

func newFixture(t *testing.T) *fixture {
	logger := treetest.Logger()
	app := arcade.New(arcade.Deps{
		Store:    treetest.New(t),
		Config:   config.DefaultConfig(),
		Provider: authtest.NewProvider(),
		Logger:   logger,
	})
	hub := NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	issuer := auth.NewIssuer("test-secret", time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, app, issuer, logger, w, r)
	}))
	t.Cleanup(srv.Close)

	return &fixture{hub: hub, issuer: issuer, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (f *fixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, id, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"id": id, "type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// reply reads frames until the response to id arrives, returning the pushed
// events seen on the way
func reply(t *testing.T, conn *websocket.Conn, id string) (frame, []frame) {
	t.Helper()
	var events []frame
	for {
		f := read(t, conn)
		if f.ID == id && (f.Type == MessageTypeResult || f.Type == MessageTypeError || f.Type == MessageTypePong) {
			return f, events
		}
		events = append(events, f)
	}
}

func TestPingPong(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "")

	send(t, conn, "p1", MessageTypePing, nil)
	got, _ := reply(t, conn, "p1")
	require.Equal(t, MessageTypePong, got.Type)
}

func TestCommandResultsAndErrors(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "")

	send(t, conn, "1", "score.submit", map[string]any{"game": "memory", "score": 3})
	got, _ := reply(t, conn, "1")
	require.Equal(t, MessageTypeError, got.Type)
	require.Equal(t, domain.KindNotAuthenticated, got.Error.Code)

	send(t, conn, "2", "auth.register", map[string]string{
		"email": "alice@example.com", "password": "secret1", "confirm": "secret1", "username": "alice",
	})
	got, _ = reply(t, conn, "2")
	require.Equal(t, MessageTypeResult, got.Type)
	require.Contains(t, string(got.Data), `"username":"alice"`)

	send(t, conn, "3", "auth.login", map[string]string{"email": "alice@example.com", "password": "nope!!"})
	got, _ = reply(t, conn, "3")
	require.Equal(t, MessageTypeError, got.Type)
	require.Equal(t, auth.CodeWrongPassword, got.Error.Code)
	require.Equal(t, "Incorrect password", got.Error.Message)

	send(t, conn, "4", "does.not.exist", nil)
	got, _ = reply(t, conn, "4")
	require.Equal(t, domain.KindInvalid, got.Error.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	got = read(t, conn)
	require.Equal(t, MessageTypeError, got.Type)
	require.Equal(t, domain.KindInvalid, got.Error.Code)
}

func TestLeaderboardViewStreamsUpdates(t *testing.T) {
	f := newFixture(t)
	token, err := f.issuer.Issue("u1", "bob")
	require.NoError(t, err)
	conn := f.dial(t, "?token="+token)

	send(t, conn, "v", "view.open", map[string]string{"view": arcade.ViewLeaderboard})
	got, events := reply(t, conn, "v")
	require.Equal(t, MessageTypeResult, got.Type)
	require.Len(t, events, 3)
	for _, e := range events {
		require.Equal(t, arcade.EventLeaderboardUpdate, e.Type)
	}

	send(t, conn, "s", "score.submit", map[string]any{"game": "tictactoe", "score": 9})
	got, events = reply(t, conn, "s")
	require.Equal(t, MessageTypeResult, got.Type)

	if len(events) == 0 {
		events = append(events, read(t, conn))
	}
	require.Equal(t, arcade.EventLeaderboardUpdate, events[0].Type)

	var update arcade.LeaderboardUpdate
	require.NoError(t, json.Unmarshal(events[0].Data, &update))
	require.Equal(t, "tictactoe", update.Game)
	require.Len(t, update.Entries, 1)
	require.Equal(t, "bob", update.Entries[0].Entry.Name)
}

func TestInvalidTokenIsRefused(t *testing.T) {
	f := newFixture(t)
	_, resp, err := websocket.DefaultDialer.Dial(f.url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOnlineCountBroadcast(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "")

	require.Eventually(t, func() bool { return f.hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.hub.BroadcastOnlineCount(5)
	got := read(t, conn)
	require.Equal(t, MessageTypeOnlineCount, got.Type)
	require.JSONEq(t, `{"count":5}`, string(got.Data))

	late := f.dial(t, "")
	got = read(t, late)
	require.Equal(t, MessageTypeOnlineCount, got.Type)
	require.JSONEq(t, `{"count":5}`, string(got.Data))
}

func TestDisconnectUnregisters(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "")
	require.Eventually(t, func() bool { return f.hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return f.hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
