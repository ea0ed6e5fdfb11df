package presence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/treetest"
)

func TestSetStatusMirrorsOntoFriendEdges(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)
	tracker := NewTracker(store, treetest.Logger())

	require.NoError(t, store.Update(ctx, map[string]any{
		"users/u1":      domain.Profile{Username: "alice"},
		"users/u2":      domain.Profile{Username: "bob"},
		"friends/u1/u2": domain.FriendEdge{Username: "bob"},
		"friends/u2/u1": domain.FriendEdge{Username: "alice"},
	}))

	require.NoError(t, tracker.SetStatus(ctx, "u1", domain.StatusOnline))

	snap, err := store.Get(ctx, "friends/u2/u1")
	require.NoError(t, err)
	var edge domain.FriendEdge
	require.NoError(t, snap.Decode(&edge))
	require.Equal(t, "alice", edge.Username)
	require.Equal(t, domain.StatusOnline, edge.Status)

	snap, err = store.Get(ctx, "users/u1/status")
	require.NoError(t, err)
	require.JSONEq(t, `"online"`, string(snap.Value))

	// no edge is invented for users without friends
	require.NoError(t, tracker.SetStatus(ctx, "u2", domain.StatusOnline))
	snap, err = store.Get(ctx, "friends/u3/u2")
	require.NoError(t, err)
	require.False(t, snap.Exists())
}

func TestCountOnline(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)
	tracker := NewTracker(store, treetest.Logger())

	count, err := tracker.CountOnline(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, store.Update(ctx, map[string]any{
		"users/u1": domain.Profile{Username: "a", Status: domain.StatusOnline},
		"users/u2": domain.Profile{Username: "b", Status: domain.StatusOffline},
		"users/u3": domain.Profile{Username: "c", Status: "busy"},
		"users/u4": domain.Profile{Username: "d"},
	}))
	require.NoError(t, tracker.SetStatus(ctx, "u4", domain.StatusOnline))

	count, err = tracker.CountOnline(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, tracker.SetStatus(ctx, "u1", domain.StatusOffline))
	count, err = tracker.CountOnline(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
