package domain

import "fmt"

// NotificationType is the closed set of notification kinds
type NotificationType string

const (
	NotificationFriendRequest  NotificationType = "friend_request"
	NotificationFriendAccepted NotificationType = "friend_accepted"
	NotificationNewMessage     NotificationType = "new_message"
	NotificationGameInvite     NotificationType = "game_invite"
	NotificationGroupMessage   NotificationType = "group_message"
)

// Notification is stored at notifications/{recipient}/{id}
type Notification struct {
	Type         NotificationType `json:"type"`
	FromUsername string           `json:"fromUsername"`
	Timestamp    int64            `json:"timestamp"`
	Read         bool             `json:"read"`
}

// NotificationView is a notification rendered for display
type NotificationView struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Text      string           `json:"text"`
	Timestamp int64            `json:"timestamp"`
	Unread    bool             `json:"unread"`
}

// Text renders the display line for a notification. Unknown types get a generic label.
func (n Notification) Text() string {
	switch n.Type {
	case NotificationFriendRequest:
		return fmt.Sprintf("%s sent you a friend request", n.FromUsername)
	case NotificationFriendAccepted:
		return fmt.Sprintf("%s accepted your friend request", n.FromUsername)
	case NotificationNewMessage:
		return fmt.Sprintf("%s sent you a message", n.FromUsername)
	case NotificationGameInvite:
		return fmt.Sprintf("%s invited you to play", n.FromUsername)
	case NotificationGroupMessage:
		return "New message in a group"
	default:
		return "New notification"
	}
}
