package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/treetest"
)

type fakeCounter struct {
	mu    sync.Mutex
	count int
	err   error
}

func (f *fakeCounter) CountOnline(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.err
}

type recordingBroadcaster struct {
	counts chan int
}

func (r *recordingBroadcaster) BroadcastOnlineCount(count int) {
	r.counts <- count
}

func TestRunOnce(t *testing.T) {
	counter := &fakeCounter{count: 4}
	b := &recordingBroadcaster{counts: make(chan int, 1)}
	w := NewPresenceWorker(counter, b, &config.PresenceConfig{Interval: time.Hour}, treetest.Logger())

	_, ok := w.LastCount()
	require.False(t, ok)

	w.RunOnce(context.Background())
	require.Equal(t, 4, <-b.counts)
	n, ok := w.LastCount()
	require.True(t, ok)
	require.Equal(t, 4, n)
}

func TestRunOnceCountFailureSkipsBroadcast(t *testing.T) {
	counter := &fakeCounter{err: errors.New("redis down")}
	b := &recordingBroadcaster{counts: make(chan int, 1)}
	w := NewPresenceWorker(counter, b, &config.PresenceConfig{Interval: time.Hour}, treetest.Logger())

	w.RunOnce(context.Background())
	require.Empty(t, b.counts)
}

func TestStartTicksUntilStopped(t *testing.T) {
	counter := &fakeCounter{count: 2}
	b := &recordingBroadcaster{counts: make(chan int, 64)}
	w := NewPresenceWorker(counter, b, &config.PresenceConfig{Interval: 10 * time.Millisecond}, treetest.Logger())

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	require.True(t, w.IsRunning())

	for i := 0; i < 3; i++ {
		select {
		case n := <-b.counts:
			require.Equal(t, 2, n)
		case <-time.After(time.Second):
			t.Fatal("worker did not broadcast")
		}
	}

	require.NoError(t, w.Stop())
	require.False(t, w.IsRunning())
	require.NoError(t, w.Stop())
}
