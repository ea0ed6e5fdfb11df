// Package preferences keeps a user's favorite and pinned games.
package preferences

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/session"
	"github.com/arcade-social/internal/tree"
)

// MaxPins is the most games a user can pin
const MaxPins = 3

// PinLimitWarning is reported when a fourth pin is refused
const PinLimitWarning = "You can pin at most 3 games"

// Lists is a user's saved game lists
type Lists struct {
	Favorites []string `json:"favorites"`
	Pinned    []string `json:"pinned"`
}

// ToggleResult reports the outcome of a toggle. A refused toggle carries a
// Warning and leaves List unchanged.
type ToggleResult struct {
	Game    string   `json:"game"`
	Active  bool     `json:"active"`
	List    []string `json:"list"`
	Warning string   `json:"warning,omitempty"`
}

// Service is the preferences component bound to one session
type Service struct {
	store  tree.Store
	games  *config.LeaderboardConfig
	sess   *session.Context
	logger *slog.Logger
}

// NewService creates a preferences component
func NewService(store tree.Store, games *config.LeaderboardConfig, sess *session.Context, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		games:  games,
		sess:   sess,
		logger: logger,
	}
}

// Load returns both lists
func (s *Service) Load(ctx context.Context) (Lists, error) {
	user, err := s.sess.Require()
	if err != nil {
		return Lists{}, err
	}
	favorites, err := s.read(ctx, user.ID, "favoriteGames")
	if err != nil {
		return Lists{}, err
	}
	pinned, err := s.read(ctx, user.ID, "pinnedGames")
	if err != nil {
		return Lists{}, err
	}
	return Lists{Favorites: favorites, Pinned: pinned}, nil
}

// ToggleFavorite adds or removes a favorite game
func (s *Service) ToggleFavorite(ctx context.Context, game string) (ToggleResult, error) {
	return s.toggle(ctx, "favoriteGames", game, 0)
}

// TogglePin adds or removes a pinned game, refusing a pin beyond MaxPins
func (s *Service) TogglePin(ctx context.Context, game string) (ToggleResult, error) {
	return s.toggle(ctx, "pinnedGames", game, MaxPins)
}

// toggle reads the whole list, edits it and writes it back. Concurrent
// toggles from two clients race and the last write wins.
func (s *Service) toggle(ctx context.Context, field, game string, limit int) (ToggleResult, error) {
	user, err := s.sess.Require()
	if err != nil {
		return ToggleResult{}, err
	}
	if !s.games.HasGame(game) {
		return ToggleResult{}, domain.ErrUnknownGame
	}

	list, err := s.read(ctx, user.ID, field)
	if err != nil {
		return ToggleResult{}, err
	}

	next := make([]string, 0, len(list)+1)
	removed := false
	for _, g := range list {
		if g == game {
			removed = true
			continue
		}
		next = append(next, g)
	}

	if !removed {
		if limit > 0 && len(list) >= limit {
			return ToggleResult{Game: game, Active: false, List: list, Warning: PinLimitWarning}, nil
		}
		next = append(next, game)
	}

	var value any = next
	if len(next) == 0 {
		value = nil
	}
	if err := s.store.Set(ctx, tree.Join("users", user.ID, field), value); err != nil {
		return ToggleResult{}, fmt.Errorf("saving %s: %w", field, err)
	}
	return ToggleResult{Game: game, Active: !removed, List: next}, nil
}

func (s *Service) read(ctx context.Context, uid, field string) ([]string, error) {
	snap, err := s.store.Get(ctx, tree.Join("users", uid, field))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", field, err)
	}
	list := []string{}
	if err := snap.Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", field, err)
	}
	return list, nil
}
