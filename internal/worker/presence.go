package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcade-social/internal/config"
)

// Counter counts online users
type Counter interface {
	CountOnline(ctx context.Context) (int, error)
}

// Broadcaster delivers the online count to connected clients
type Broadcaster interface {
	BroadcastOnlineCount(count int)
}

// PresenceWorker periodically counts online users and broadcasts the total
type PresenceWorker struct {
	counter     Counter
	broadcaster Broadcaster
	config      *config.PresenceConfig
	logger      *slog.Logger
	stopCh      chan struct{}
	doneCh      chan struct{}
	mu          sync.Mutex
	running     bool
	last        atomic.Int64
}

// NewPresenceWorker creates a new presence worker
func NewPresenceWorker(
	counter Counter,
	broadcaster Broadcaster,
	cfg *config.PresenceConfig,
	logger *slog.Logger,
) *PresenceWorker {
	w := &PresenceWorker{
		counter:     counter,
		broadcaster: broadcaster,
		config:      cfg,
		logger:      logger,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	w.last.Store(-1)
	return w
}

// Start begins the background count loop
func (w *PresenceWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("presence worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background count loop
func (w *PresenceWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("presence worker stopped")
	return nil
}

// run is the main worker loop
func (w *PresenceWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce counts and broadcasts a single time
func (w *PresenceWorker) RunOnce(ctx context.Context) {
	startTime := time.Now()

	count, err := w.counter.CountOnline(ctx)
	if err != nil {
		w.logger.Error("failed to count online users", "error", err)
		return
	}
	w.last.Store(int64(count))
	w.broadcaster.BroadcastOnlineCount(count)

	w.logger.Debug("online count broadcast", "count", count, "duration", time.Since(startTime))
}

// LastCount returns the most recent count, or false before the first one
func (w *PresenceWorker) LastCount() (int, bool) {
	n := w.last.Load()
	if n < 0 {
		return 0, false
	}
	return int(n), true
}

// IsRunning returns whether the worker is currently running
func (w *PresenceWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
