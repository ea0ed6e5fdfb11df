package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/session"
	"github.com/arcade-social/internal/tree"
)

// MaxMessageLength caps a message body in runes
const MaxMessageLength = 1000

// Notifier fans a notification out to a recipient
type Notifier interface {
	Notify(ctx context.Context, recipient string, typ domain.NotificationType) error
}

// Messenger opens chats and writes messages for the signed-in user
type Messenger struct {
	store    tree.Store
	games    *config.LeaderboardConfig
	notifier Notifier
	sess     *session.Context
	logger   *slog.Logger
}

// NewMessenger creates a messenger
func NewMessenger(store tree.Store, games *config.LeaderboardConfig, notifier Notifier, sess *session.Context, logger *slog.Logger) *Messenger {
	return &Messenger{
		store:    store,
		games:    games,
		notifier: notifier,
		sess:     sess,
		logger:   logger,
	}
}

// ChatID returns the conversation id shared by two users
func ChatID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "_" + ids[1]
}

// OpenChat ensures the direct conversation with friendID exists
func (m *Messenger) OpenChat(ctx context.Context, friendID string) (string, error) {
	user, err := m.sess.Require()
	if err != nil {
		return "", err
	}
	if friendID == "" || friendID == user.ID {
		return "", fmt.Errorf("%w: invalid chat partner", domain.ErrInvalidRequest)
	}

	snap, err := m.store.Get(ctx, tree.Join("users", friendID, "username"))
	if err != nil {
		return "", fmt.Errorf("reading chat partner: %w", err)
	}
	var friendName string
	if err := snap.Decode(&friendName); err != nil || !snap.Exists() {
		return "", domain.ErrUserNotFound
	}

	id := ChatID(user.ID, friendID)
	err = m.store.Update(ctx, map[string]any{
		tree.Join("chats", id, "participants", user.ID):  domain.Participant{Username: user.Username},
		tree.Join("chats", id, "participants", friendID): domain.Participant{Username: friendName},
		tree.Join("userChats", user.ID, id):              true,
		tree.Join("userChats", friendID, id):             true,
	})
	if err != nil {
		return "", fmt.Errorf("opening chat: %w", err)
	}
	return id, nil
}

// SendMessage posts a text message to a chat the user belongs to
func (m *Messenger) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	user, err := m.sess.Require()
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) > MaxMessageLength {
		return "", fmt.Errorf("%w: message must be 1 to %d characters", domain.ErrInvalidRequest, MaxMessageLength)
	}

	chat, err := m.chat(ctx, chatID)
	if err != nil {
		return "", err
	}
	if _, ok := chat.Participants[user.ID]; !ok {
		return "", domain.ErrNotParticipant
	}

	return m.post(ctx, chatID, chat, domain.Message{
		From:         user.ID,
		FromUsername: user.Username,
		Text:         text,
		Kind:         domain.MessageKindText,
	}, domain.NotificationNewMessage)
}

// SendGameInvite opens the chat with friendID and posts an invitation to game
func (m *Messenger) SendGameInvite(ctx context.Context, friendID, game string) (string, error) {
	user, err := m.sess.Require()
	if err != nil {
		return "", err
	}
	if !m.games.HasGame(game) {
		return "", domain.ErrUnknownGame
	}

	chatID, err := m.OpenChat(ctx, friendID)
	if err != nil {
		return "", err
	}
	chat, err := m.chat(ctx, chatID)
	if err != nil {
		return "", err
	}

	return m.post(ctx, chatID, chat, domain.Message{
		From:         user.ID,
		FromUsername: user.Username,
		Text:         fmt.Sprintf("%s invited you to play %s", user.Username, game),
		Kind:         domain.MessageKindGameInvite,
		Game:         game,
	}, domain.NotificationGameInvite)
}

// Messages returns the latest messages of a chat, oldest first
func (m *Messenger) Messages(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	user, err := m.sess.Require()
	if err != nil {
		return nil, err
	}
	chat, err := m.chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if _, ok := chat.Participants[user.ID]; !ok {
		return nil, domain.ErrNotParticipant
	}

	rows, err := m.store.Query(ctx, tree.Join("messages", chatID), tree.Query{OrderBy: "timestamp", LimitLast: limit})
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	out := make([]domain.Message, 0, len(rows))
	for _, r := range rows {
		var msg domain.Message
		if err := r.Decode(&msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (m *Messenger) chat(ctx context.Context, chatID string) (domain.Chat, error) {
	snap, err := m.store.Get(ctx, tree.Join("chats", chatID))
	if err != nil {
		return domain.Chat{}, fmt.Errorf("reading chat: %w", err)
	}
	if !snap.Exists() {
		return domain.Chat{}, domain.ErrNotParticipant
	}
	var chat domain.Chat
	if err := snap.Decode(&chat); err != nil {
		return domain.Chat{}, fmt.Errorf("decoding chat: %w", err)
	}
	return chat, nil
}

func (m *Messenger) post(ctx context.Context, chatID string, chat domain.Chat, msg domain.Message, typ domain.NotificationType) (string, error) {
	msg.Timestamp = domain.Millis(time.Now())

	id, err := m.store.Push(ctx, tree.Join("messages", chatID), msg)
	if err != nil {
		return "", fmt.Errorf("writing message: %w", err)
	}
	last := domain.LastMessage{Text: msg.Text, Timestamp: msg.Timestamp}
	if err := m.store.Set(ctx, tree.Join("chats", chatID, "lastMessage"), last); err != nil {
		return "", fmt.Errorf("updating chat: %w", err)
	}

	for uid := range chat.Participants {
		if uid == msg.From {
			continue
		}
		if err := m.notifier.Notify(ctx, uid, typ); err != nil {
			m.logger.Warn("failed to notify chat participant", "chat_id", chatID, "user_id", uid, "error", err)
		}
	}
	return id, nil
}
