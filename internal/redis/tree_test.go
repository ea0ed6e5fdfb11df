package redis_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/tree"
	"github.com/arcade-social/internal/treetest"
)

func TestSetGetField(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)

	require.NoError(t, store.Set(ctx, "users/u1", domain.Profile{Username: "alice", CreatedAt: 1}))
	require.NoError(t, store.Set(ctx, "users/u1/stats/gamesPlayed", 3))

	snap, err := store.Get(ctx, "users/u1")
	require.NoError(t, err)
	var p domain.Profile
	require.NoError(t, snap.Decode(&p))
	require.Equal(t, "alice", p.Username)
	require.EqualValues(t, 3, p.Stats.GamesPlayed)

	snap, err = store.Get(ctx, "users/u1/username")
	require.NoError(t, err)
	require.Equal(t, "username", snap.Key)
	require.JSONEq(t, `"alice"`, string(snap.Value))

	missing, err := store.Get(ctx, "users/nobody")
	require.NoError(t, err)
	require.False(t, missing.Exists())
}

func TestRemoveDeletesChildAndIndex(t *testing.T) {
	ctx := context.Background()
	store, mr := treetest.NewWithServer(t)

	key, err := store.Push(ctx, "leaderboards/memory", domain.ScoreEntry{Name: "a", Score: 5})
	require.NoError(t, err)
	require.True(t, mr.Exists("tree:leaderboards/memory:by:score"))

	require.NoError(t, store.Remove(ctx, tree.Join("leaderboards/memory", key)))

	rows, err := store.Query(ctx, "leaderboards/memory", tree.Query{OrderBy: "score"})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestQueryOrderedLimits(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)

	for _, s := range []int64{40, 10, 30, 20, 50} {
		_, err := store.Push(ctx, "leaderboards/guess", domain.ScoreEntry{Name: "p", Score: s})
		require.NoError(t, err)
	}

	scores := func(rows []tree.Snapshot) []int64 {
		var out []int64
		for _, r := range rows {
			var e domain.ScoreEntry
			require.NoError(t, r.Decode(&e))
			out = append(out, e.Score)
		}
		return out
	}

	first, err := store.Query(ctx, "leaderboards/guess", tree.Query{OrderBy: "score", LimitFirst: 3})
	require.NoError(t, err)
	require.Equal(t, []int64{10, 20, 30}, scores(first))

	last, err := store.Query(ctx, "leaderboards/guess", tree.Query{OrderBy: "score", LimitLast: 2})
	require.NoError(t, err)
	require.Equal(t, []int64{40, 50}, scores(last))

	_, err = store.Query(ctx, "leaderboards/guess", tree.Query{OrderBy: "name"})
	require.ErrorIs(t, err, tree.ErrNotIndexed)
}

func TestQueryByKey(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)

	require.NoError(t, store.Update(ctx, map[string]any{
		"friends/u1/c": domain.FriendEdge{Username: "carol"},
		"friends/u1/a": domain.FriendEdge{Username: "alice"},
		"friends/u1/b": domain.FriendEdge{Username: "bob"},
	}))

	rows, err := store.Query(ctx, "friends/u1", tree.Query{LimitFirst: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "a", rows[0].Key)
	require.Equal(t, "b", rows[1].Key)
}

func TestUpdateMultiPathWithDelete(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)

	require.NoError(t, store.Set(ctx, "friendRequests/alice/bob", domain.FriendRequest{Username: "bob"}))

	require.NoError(t, store.Update(ctx, map[string]any{
		"friendRequests/alice/bob": nil,
		"friends/alice/bob":        domain.FriendEdge{Username: "bob"},
		"friends/bob/alice":        domain.FriendEdge{Username: "alice"},
	}))

	req, err := store.Get(ctx, "friendRequests/alice/bob")
	require.NoError(t, err)
	require.False(t, req.Exists())

	for _, p := range []string{"friends/alice/bob", "friends/bob/alice"} {
		snap, err := store.Get(ctx, p)
		require.NoError(t, err)
		require.True(t, snap.Exists(), p)
	}
}

func TestInvalidPaths(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)

	require.ErrorIs(t, store.Set(ctx, "nowhere/x", 1), tree.ErrInvalidPath)
	_, err := store.Push(ctx, "leaderboards", 1)
	require.ErrorIs(t, err, tree.ErrInvalidPath)
}

func TestTransactionConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Transaction(ctx, "users/u1/stats", func(cur tree.Snapshot) (any, error) {
				var s domain.Stats
				if err := cur.Decode(&s); err != nil {
					return nil, err
				}
				s.GamesPlayed++
				s.TotalScore += 7
				return s, nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	snap, err := store.Get(ctx, "users/u1/stats")
	require.NoError(t, err)
	var s domain.Stats
	require.NoError(t, snap.Decode(&s))
	require.EqualValues(t, writers, s.GamesPlayed)
	require.EqualValues(t, writers*7, s.TotalScore)
}

func TestTransactionAbortLeavesValue(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)

	require.NoError(t, store.Set(ctx, "usernames/alice", "u1"))

	boom := errors.New("taken")
	_, err := store.Transaction(ctx, "usernames/alice", func(cur tree.Snapshot) (any, error) {
		if cur.Exists() {
			return nil, boom
		}
		return "u2", nil
	})
	require.ErrorIs(t, err, boom)

	snap, err := store.Get(ctx, "usernames/alice")
	require.NoError(t, err)
	require.JSONEq(t, `"u1"`, string(snap.Value))
}

func TestSubscribeDeliversInitialAndUpdates(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)

	updates := make(chan int, 16)
	sub, err := store.Subscribe(ctx, "leaderboards/memory", tree.Query{OrderBy: "score", LimitFirst: 10}, func(rows []tree.Snapshot) {
		updates <- len(rows)
	})
	require.NoError(t, err)
	require.Equal(t, 0, <-updates)

	_, err = store.Push(ctx, "leaderboards/memory", domain.ScoreEntry{Name: "a", Score: 1})
	require.NoError(t, err)

	select {
	case n := <-updates:
		require.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, err = store.Push(ctx, "leaderboards/memory", domain.ScoreEntry{Name: "b", Score: 2})
	require.NoError(t, err)

	select {
	case n := <-updates:
		t.Fatalf("update after close: %d rows", n)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCloseWaitsForRunningCallback(t *testing.T) {
	ctx := context.Background()
	store := treetest.New(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls sync.WaitGroup
	calls.Add(1)
	first := true
	sub, err := store.Subscribe(ctx, "leaderboards/memory", tree.Query{OrderBy: "score"}, func([]tree.Snapshot) {
		if first {
			first = false
			return
		}
		calls.Done()
		close(entered)
		<-release
	})
	require.NoError(t, err)

	_, err = store.Push(ctx, "leaderboards/memory", domain.ScoreEntry{Name: "a", Score: 1})
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}

	closed := make(chan struct{})
	go func() {
		require.NoError(t, sub.Close())
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a callback was running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	_, err = store.Push(ctx, "leaderboards/memory", domain.ScoreEntry{Name: "b", Score: 2})
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)
	calls.Wait()
}
