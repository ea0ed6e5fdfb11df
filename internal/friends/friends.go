// Package friends manages friend requests and the friend edges they turn into.
package friends

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/moderation"
	"github.com/arcade-social/internal/session"
	"github.com/arcade-social/internal/tree"
)

// Notifier fans a notification out to a recipient
type Notifier interface {
	Notify(ctx context.Context, recipient string, typ domain.NotificationType) error
}

// Inviter sends game invitations
type Inviter interface {
	SendGameInvite(ctx context.Context, friendID, game string) (string, error)
}

// Service is the friends component bound to one session
type Service struct {
	store    tree.Store
	notifier Notifier
	inviter  Inviter
	sess     *session.Context
	logger   *slog.Logger
}

// NewService creates a friends component
func NewService(store tree.Store, notifier Notifier, inviter Inviter, sess *session.Context, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		inviter:  inviter,
		sess:     sess,
		logger:   logger,
	}
}

// SendRequest asks the user with the given display name to become a friend
func (s *Service) SendRequest(ctx context.Context, username string) error {
	me, err := s.sess.Require()
	if err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username is required", domain.ErrInvalidRequest)
	}

	target, err := s.resolve(ctx, username)
	if err != nil {
		return err
	}
	if target == me.ID {
		return domain.ErrSelfRequest
	}

	edge, err := s.store.Get(ctx, tree.Join("friends", me.ID, target))
	if err != nil {
		return fmt.Errorf("checking friendship: %w", err)
	}
	if edge.Exists() {
		return domain.ErrAlreadyFriends
	}

	_, err = s.store.Transaction(ctx, tree.Join("friendRequests", target, me.ID), func(cur tree.Snapshot) (any, error) {
		if cur.Exists() {
			return nil, domain.ErrDuplicateRequest
		}
		return domain.FriendRequest{Username: me.Username}, nil
	})
	if err != nil {
		return fmt.Errorf("sending friend request: %w", err)
	}

	if err := s.notifier.Notify(ctx, target, domain.NotificationFriendRequest); err != nil {
		s.logger.Warn("failed to notify friend request", "from", me.ID, "to", target, "error", err)
	}
	s.logger.Debug("friend request sent", "from", me.ID, "to", target)
	return nil
}

// Accept turns a pending request into friend edges in both directions
func (s *Service) Accept(ctx context.Context, requesterID string) error {
	me, err := s.sess.Require()
	if err != nil {
		return err
	}
	req, err := s.request(ctx, me.ID, requesterID)
	if err != nil {
		return err
	}

	requesterName := req.Username
	requesterProfile, err := s.profile(ctx, requesterID)
	if err != nil {
		return err
	}
	if requesterProfile.Username != "" {
		requesterName = requesterProfile.Username
	}
	myProfile, err := s.profile(ctx, me.ID)
	if err != nil {
		return err
	}

	err = s.store.Update(ctx, map[string]any{
		tree.Join("friendRequests", me.ID, requesterID): nil,
		tree.Join("friends", me.ID, requesterID): domain.FriendEdge{
			Username: requesterName,
			Status:   statusOf(requesterProfile.Status),
		},
		tree.Join("friends", requesterID, me.ID): domain.FriendEdge{
			Username: me.Username,
			Status:   statusOf(myProfile.Status),
		},
	})
	if err != nil {
		return fmt.Errorf("accepting friend request: %w", err)
	}

	if err := s.notifier.Notify(ctx, requesterID, domain.NotificationFriendAccepted); err != nil {
		s.logger.Warn("failed to notify accepted request", "from", me.ID, "to", requesterID, "error", err)
	}
	return nil
}

// Reject discards a pending request
func (s *Service) Reject(ctx context.Context, requesterID string) error {
	me, err := s.sess.Require()
	if err != nil {
		return err
	}
	if _, err := s.request(ctx, me.ID, requesterID); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, tree.Join("friendRequests", me.ID, requesterID)); err != nil {
		return fmt.Errorf("rejecting friend request: %w", err)
	}
	return nil
}

// ListFriends returns a point-in-time view of the user's friends
func (s *Service) ListFriends(ctx context.Context) ([]domain.FriendView, error) {
	me, err := s.sess.Require()
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, tree.Join("friends", me.ID), tree.Query{})
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}

	out := make([]domain.FriendView, 0, len(rows))
	for _, r := range rows {
		var edge domain.FriendEdge
		if err := r.Decode(&edge); err != nil {
			s.logger.Warn("skipping malformed friend edge", "user_id", me.ID, "friend_id", r.Key, "error", err)
			continue
		}
		status := statusOf(edge.Status)
		out = append(out, domain.FriendView{
			ID:       r.Key,
			Username: edge.Username,
			Online:   status == domain.StatusOnline,
			Status:   status,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

// ListIncoming returns the pending requests addressed to the user
func (s *Service) ListIncoming(ctx context.Context) ([]domain.RequestView, error) {
	me, err := s.sess.Require()
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, tree.Join("friendRequests", me.ID), tree.Query{})
	if err != nil {
		return nil, fmt.Errorf("listing friend requests: %w", err)
	}

	out := make([]domain.RequestView, 0, len(rows))
	for _, r := range rows {
		var req domain.FriendRequest
		if err := r.Decode(&req); err != nil {
			continue
		}
		out = append(out, domain.RequestView{RequesterID: r.Key, Username: req.Username})
	}
	return out, nil
}

// InviteToGame invites a friend to play through the messenger
func (s *Service) InviteToGame(ctx context.Context, friendID, game string) (string, error) {
	me, err := s.sess.Require()
	if err != nil {
		return "", err
	}
	edge, err := s.store.Get(ctx, tree.Join("friends", me.ID, friendID))
	if err != nil {
		return "", fmt.Errorf("checking friendship: %w", err)
	}
	if !edge.Exists() {
		return "", domain.ErrNotFriends
	}
	return s.inviter.SendGameInvite(ctx, friendID, game)
}

func (s *Service) resolve(ctx context.Context, username string) (string, error) {
	snap, err := s.store.Get(ctx, tree.Join("usernames", moderation.ClaimKey(username)))
	if err != nil {
		return "", fmt.Errorf("resolving username: %w", err)
	}
	var uid string
	if err := snap.Decode(&uid); err != nil || uid == "" {
		return "", domain.ErrUserNotFound
	}
	return uid, nil
}

func (s *Service) request(ctx context.Context, recipient, requester string) (domain.FriendRequest, error) {
	snap, err := s.store.Get(ctx, tree.Join("friendRequests", recipient, requester))
	if err != nil {
		return domain.FriendRequest{}, fmt.Errorf("reading friend request: %w", err)
	}
	if !snap.Exists() {
		return domain.FriendRequest{}, domain.ErrRequestNotFound
	}
	var req domain.FriendRequest
	if err := snap.Decode(&req); err != nil {
		return domain.FriendRequest{}, fmt.Errorf("decoding friend request: %w", err)
	}
	return req, nil
}

func (s *Service) profile(ctx context.Context, uid string) (domain.Profile, error) {
	snap, err := s.store.Get(ctx, tree.Join("users", uid))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("reading profile: %w", err)
	}
	var p domain.Profile
	if err := snap.Decode(&p); err != nil {
		return domain.Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return p, nil
}

// statusOf collapses any presence value into online or offline
func statusOf(status string) string {
	if status == domain.StatusOnline {
		return domain.StatusOnline
	}
	return domain.StatusOffline
}
