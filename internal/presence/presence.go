// Package presence maintains online status and counts online users.
package presence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/tree"
)

// Tracker writes presence status and mirrors it onto friend edges
type Tracker struct {
	store  tree.Store
	logger *slog.Logger
}

// NewTracker creates a presence tracker
func NewTracker(store tree.Store, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, logger: logger}
}

// SetStatus stores a user's status and copies it onto the edges their
// friends hold, in one update
func (t *Tracker) SetStatus(ctx context.Context, uid, status string) error {
	friends, err := t.store.Query(ctx, tree.Join("friends", uid), tree.Query{})
	if err != nil {
		return fmt.Errorf("listing friends: %w", err)
	}

	updates := make(map[string]any, len(friends)+1)
	updates[tree.Join("users", uid, "status")] = status
	for _, f := range friends {
		updates[tree.Join("friends", f.Key, uid, "status")] = status
	}
	if err := t.store.Update(ctx, updates); err != nil {
		return fmt.Errorf("setting status: %w", err)
	}

	t.logger.Debug("presence updated", "user_id", uid, "status", status, "friends", len(friends))
	return nil
}

// CountOnline scans every profile and counts those marked online
func (t *Tracker) CountOnline(ctx context.Context) (int, error) {
	rows, err := t.store.Query(ctx, "users", tree.Query{})
	if err != nil {
		return 0, fmt.Errorf("scanning users: %w", err)
	}

	count := 0
	for _, r := range rows {
		var p struct {
			Status string `json:"status"`
		}
		if err := r.Decode(&p); err != nil {
			continue
		}
		if p.Status == domain.StatusOnline {
			count++
		}
	}
	return count, nil
}
