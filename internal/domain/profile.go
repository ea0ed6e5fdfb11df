package domain

import "time"

// Presence statuses stored on profiles and mirrored onto friend edges
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// DefaultUsername is used when no display name can be derived
const DefaultUsername = "Player"

// Stats holds aggregate per-player counters
type Stats struct {
	GamesPlayed int64 `json:"gamesPlayed"`
	TotalScore  int64 `json:"totalScore"`
}

// AverageScore returns the rounded mean score per game played
func (s Stats) AverageScore() int64 {
	played := s.GamesPlayed
	if played < 1 {
		played = 1
	}
	return (s.TotalScore + played/2) / played
}

// Profile is the user document stored at users/{uid}
type Profile struct {
	Username      string   `json:"username"`
	Email         string   `json:"email,omitempty"`
	PhotoURL      string   `json:"photoURL,omitempty"`
	Provider      string   `json:"provider,omitempty"`
	CreatedAt     int64    `json:"createdAt"`
	Stats         Stats    `json:"stats"`
	FavoriteGames []string `json:"favoriteGames,omitempty"`
	PinnedGames   []string `json:"pinnedGames,omitempty"`
	Status        string   `json:"status,omitempty"`
}

// ProfileView is a profile as returned to its owner
type ProfileView struct {
	UserID       string  `json:"user_id"`
	Profile      Profile `json:"profile"`
	AverageScore int64   `json:"average_score"`
}

// Account is an auth provider record
type Account struct {
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Millis converts a time to the Unix-millisecond timestamps used in the tree
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
