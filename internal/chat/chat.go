// Package chat lists a user's conversations and sends messages and game
// invitations through the messenger.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"unicode/utf8"

	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/session"
	"github.com/arcade-social/internal/tree"
)

const (
	previewLength = 50
	untitled      = "Conversation"
)

// Service is the chat listing component bound to one session
type Service struct {
	store     tree.Store
	messenger *Messenger
	sess      *session.Context
	logger    *slog.Logger
}

// NewService creates a chat listing component
func NewService(store tree.Store, messenger *Messenger, sess *session.Context, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		messenger: messenger,
		sess:      sess,
		logger:    logger,
	}
}

// Messenger returns the collaborator that writes messages
func (s *Service) Messenger() *Messenger {
	return s.messenger
}

// ListConversations returns the user's chats, most recent activity first
func (s *Service) ListConversations(ctx context.Context) ([]domain.ChatSummary, error) {
	user, err := s.sess.Require()
	if err != nil {
		return nil, err
	}

	rows, err := s.store.Query(ctx, tree.Join("userChats", user.ID), tree.Query{})
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	return s.summaries(ctx, user.ID, rows)
}

func (s *Service) summaries(ctx context.Context, uid string, rows []tree.Snapshot) ([]domain.ChatSummary, error) {
	out := make([]domain.ChatSummary, 0, len(rows))
	for _, row := range rows {
		snap, err := s.store.Get(ctx, tree.Join("chats", row.Key))
		if err != nil {
			return nil, fmt.Errorf("reading chat %s: %w", row.Key, err)
		}
		if !snap.Exists() {
			continue
		}
		var chat domain.Chat
		if err := snap.Decode(&chat); err != nil {
			s.logger.Warn("skipping malformed chat", "chat_id", row.Key, "error", err)
			continue
		}
		out = append(out, summarize(row.Key, uid, chat))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt > out[j].LastMessageAt
	})
	return out, nil
}

// Invite sends a game invitation to a friend through the messenger
func (s *Service) Invite(ctx context.Context, friendID, game string) (string, error) {
	return s.messenger.SendGameInvite(ctx, friendID, game)
}

func summarize(id, uid string, chat domain.Chat) domain.ChatSummary {
	title := untitled
	others := make([]string, 0, len(chat.Participants))
	for pid := range chat.Participants {
		if pid != uid {
			others = append(others, pid)
		}
	}
	sort.Strings(others)
	if len(others) > 0 && chat.Participants[others[0]].Username != "" {
		title = chat.Participants[others[0]].Username
	}

	summary := domain.ChatSummary{
		ID:           id,
		Title:        title,
		Participants: chat.Participants,
	}
	if chat.LastMessage != nil {
		summary.Preview = truncate(chat.LastMessage.Text, previewLength)
		summary.LastMessageAt = chat.LastMessage.Timestamp
	}
	return summary
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
