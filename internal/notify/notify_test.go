package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/session"
	"github.com/arcade-social/internal/tree"
	"github.com/arcade-social/internal/treetest"
)

// countingStore records how many batched updates reach the store
type countingStore struct {
	tree.Store
	updates []map[string]any
}

func (c *countingStore) Update(ctx context.Context, values map[string]any) error {
	c.updates = append(c.updates, values)
	return c.Store.Update(ctx, values)
}

func seed(t *testing.T, store tree.Store, uid string, ns ...domain.Notification) {
	t.Helper()
	for _, n := range ns {
		_, err := store.Push(context.Background(), "notifications/"+uid, n)
		require.NoError(t, err)
	}
}

func newService(store tree.Store, sess *session.Context) *Service {
	return NewService(store, &config.DefaultConfig().Notifications, sess, treetest.Logger())
}

func TestListRecentNewestFirstAndMarksRead(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: treetest.New(t)}
	seed(t, store, "u1",
		domain.Notification{Type: domain.NotificationFriendRequest, FromUsername: "bob", Timestamp: 100},
		domain.Notification{Type: domain.NotificationNewMessage, FromUsername: "carol", Timestamp: 300, Read: true},
		domain.Notification{Type: domain.NotificationGameInvite, FromUsername: "dave", Timestamp: 200},
	)
	svc := newService(store, session.NewSignedIn("u1", "alice"))

	views, err := svc.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, views, 3)
	require.EqualValues(t, []int64{300, 200, 100}, []int64{views[0].Timestamp, views[1].Timestamp, views[2].Timestamp})
	require.Equal(t, "carol sent you a message", views[0].Text)
	require.False(t, views[0].Unread)
	require.True(t, views[1].Unread)
	require.True(t, views[2].Unread)

	require.Len(t, store.updates, 1)
	require.Len(t, store.updates[0], 2)

	again, err := svc.ListRecent(ctx, 0)
	require.NoError(t, err)
	for _, v := range again {
		require.False(t, v.Unread)
	}
	require.Len(t, store.updates, 1)
}

func TestListRecentLimit(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)
	for ts := int64(1); ts <= 25; ts++ {
		seed(t, store, "u1", domain.Notification{Type: domain.NotificationFriendAccepted, FromUsername: "x", Timestamp: ts})
	}
	svc := newService(store, session.NewSignedIn("u1", "alice"))

	views, err := svc.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, views, 20)
	require.EqualValues(t, 25, views[0].Timestamp)
	require.EqualValues(t, 6, views[19].Timestamp)

	few, err := svc.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, few, 3)
}

func TestReadFlagIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)
	svc := newService(store, session.NewSignedIn("u1", "alice"))
	seed(t, store, "u1", domain.Notification{Type: domain.NotificationFriendRequest, FromUsername: "bob", Timestamp: 1})

	for i := 0; i < 3; i++ {
		_, err := svc.ListRecent(ctx, 0)
		require.NoError(t, err)
		seed(t, store, "u1", domain.Notification{Type: domain.NotificationNewMessage, FromUsername: "bob", Timestamp: int64(10 + i)})

		rows, err := store.Query(ctx, "notifications/u1", tree.Query{OrderBy: "timestamp"})
		require.NoError(t, err)
		// everything but the newest has been displayed and must stay read
		for _, r := range rows[:len(rows)-1] {
			var n domain.Notification
			require.NoError(t, r.Decode(&n))
			require.True(t, n.Read)
		}
	}
}

func TestUnknownTypeFallsBack(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)
	seed(t, store, "u1", domain.Notification{Type: "tournament", Timestamp: 1})
	seed(t, store, "u1", domain.Notification{Type: domain.NotificationGroupMessage, Timestamp: 2})

	views, err := newService(store, session.NewSignedIn("u1", "alice")).ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "New message in a group", views[0].Text)
	require.Equal(t, "New notification", views[1].Text)
}

func TestNotify(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)

	require.ErrorIs(t, newService(store, session.New()).Notify(ctx, "u1", domain.NotificationFriendRequest), domain.ErrNotAuthenticated)

	require.NoError(t, newService(store, session.NewSignedIn("u2", "bob")).Notify(ctx, "u1", domain.NotificationFriendRequest))

	views, err := newService(store, session.NewSignedIn("u1", "alice")).ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, domain.NotificationFriendRequest, views[0].Type)
	require.Equal(t, "bob sent you a friend request", views[0].Text)
	require.True(t, views[0].Unread)
}

func TestListRecentRequiresSession(t *testing.T) {
	_, err := newService(treetest.New(t), session.New()).ListRecent(context.Background(), 0)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
}
