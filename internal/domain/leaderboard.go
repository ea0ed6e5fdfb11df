package domain

import "time"

// MaxScore is the largest score accepted. Scores are also index weights, so
// they stay within the integers a float64 holds exactly.
const MaxScore int64 = 1<<53 - 1

// ScoreEntry is an append-only record under leaderboards/{game}
type ScoreEntry struct {
	Name   string `json:"name"`
	Score  int64  `json:"score"`
	UserID string `json:"userId"`
	TS     int64  `json:"ts"`
}

// RankedEntry is a score entry with its position in a leaderboard view
type RankedEntry struct {
	ID    string     `json:"id"`
	Rank  int        `json:"rank"`
	Entry ScoreEntry `json:"entry"`
}

// ScoreSubmission represents a score submitted by a trusted game server
type ScoreSubmission struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Game     string `json:"game"`
	Score    int64  `json:"score"`
	Name     string `json:"name,omitempty"`
}

// ArchivedScore is a leaderboard entry as kept in the score archive
type ArchivedScore struct {
	EntryID   string    `json:"entry_id"`
	Game      string    `json:"game"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Score     int64     `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}
