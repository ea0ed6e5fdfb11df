package domain

// Message kinds
const (
	MessageKindText       = "text"
	MessageKindGameInvite = "game_invite"
)

// Participant is the profile snippet kept per chat member
type Participant struct {
	Username string `json:"username"`
}

// LastMessage is the preview snapshot kept on a chat
type LastMessage struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Chat is stored at chats/{chatId}
type Chat struct {
	Participants map[string]Participant `json:"participants"`
	LastMessage  *LastMessage           `json:"lastMessage,omitempty"`
}

// Message is stored at messages/{chatId}/{msgId}
type Message struct {
	From         string `json:"from"`
	FromUsername string `json:"fromUsername"`
	Text         string `json:"text"`
	Kind         string `json:"kind"`
	Game         string `json:"game,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// ChatSummary is a conversation as listed to one participant
type ChatSummary struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Participants  map[string]Participant `json:"participants"`
	Preview       string                 `json:"preview"`
	LastMessageAt int64                  `json:"last_message_at"`
}
