// Package notify writes notification events and lists them for their
// recipient.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/session"
	"github.com/arcade-social/internal/tree"
)

// Service is the notifications component bound to one session
type Service struct {
	store  tree.Store
	sess   *session.Context
	limit  int
	logger *slog.Logger
}

// NewService creates a notifications component
func NewService(store tree.Store, cfg *config.NotificationsConfig, sess *session.Context, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		sess:   sess,
		limit:  cfg.Limit,
		logger: logger,
	}
}

// Notify records a notification from the signed-in user to recipient
func (s *Service) Notify(ctx context.Context, recipient string, typ domain.NotificationType) error {
	user, err := s.sess.Require()
	if err != nil {
		return err
	}
	n := domain.Notification{
		Type:         typ,
		FromUsername: user.Username,
		Timestamp:    domain.Millis(time.Now()),
	}
	if _, err := s.store.Push(ctx, collection(recipient), n); err != nil {
		return fmt.Errorf("writing notification: %w", err)
	}
	return nil
}

// ListRecent returns the newest notifications first and marks the unread
// ones read in one batched write. Views report the state from before the call.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]domain.NotificationView, error) {
	user, err := s.sess.Require()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.limit
	}

	rows, err := s.store.Query(ctx, collection(user.ID), tree.Query{OrderBy: "timestamp", LimitLast: limit})
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	views := make([]domain.NotificationView, 0, len(rows))
	dirty := make(map[string]any)
	for i := len(rows) - 1; i >= 0; i-- {
		var n domain.Notification
		if err := rows[i].Decode(&n); err != nil {
			s.logger.Warn("skipping malformed notification", "user_id", user.ID, "id", rows[i].Key, "error", err)
			continue
		}
		views = append(views, domain.NotificationView{
			ID:        rows[i].Key,
			Type:      n.Type,
			Text:      n.Text(),
			Timestamp: n.Timestamp,
			Unread:    !n.Read,
		})
		if !n.Read {
			dirty[tree.Join(collection(user.ID), rows[i].Key, "read")] = true
		}
	}

	if len(dirty) > 0 {
		if err := s.store.Update(ctx, dirty); err != nil {
			s.logger.Warn("failed to mark notifications read", "user_id", user.ID, "count", len(dirty), "error", err)
		}
	}
	return views, nil
}

func collection(uid string) string {
	return tree.Join("notifications", uid)
}
