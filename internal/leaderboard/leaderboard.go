// Package leaderboard records scores and serves per-game leaderboards.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/session"
	"github.com/arcade-social/internal/tree"
)

// Archiver keeps a durable copy of every leaderboard entry
type Archiver interface {
	ArchiveScore(ctx context.Context, s domain.ArchivedScore) error
	BatchArchiveScores(ctx context.Context, scores []domain.ArchivedScore) error
}

// Board holds the session-independent leaderboard operations
type Board struct {
	store   tree.Store
	cfg     *config.LeaderboardConfig
	archive Archiver
	logger  *slog.Logger
}

// NewBoard creates a leaderboard. archive may be nil.
func NewBoard(store tree.Store, cfg *config.LeaderboardConfig, archive Archiver, logger *slog.Logger) *Board {
	return &Board{
		store:   store,
		cfg:     cfg,
		archive: archive,
		logger:  logger,
	}
}

// Games returns the configured game identifiers
func (b *Board) Games() []string {
	return b.cfg.Games
}

// Top returns the first N entries of a game ordered by ascending score
func (b *Board) Top(ctx context.Context, game string) ([]domain.RankedEntry, error) {
	if !b.cfg.HasGame(game) {
		return nil, domain.ErrUnknownGame
	}
	rows, err := b.store.Query(ctx, boardPath(game), b.topQuery())
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	return b.rank(rows), nil
}

// Watch delivers the Top view now and after every change until the
// subscription is closed
func (b *Board) Watch(ctx context.Context, game string, fn func([]domain.RankedEntry)) (tree.Subscription, error) {
	if !b.cfg.HasGame(game) {
		return nil, domain.ErrUnknownGame
	}
	sub, err := b.store.Subscribe(ctx, boardPath(game), b.topQuery(), func(rows []tree.Snapshot) {
		fn(b.rank(rows))
	})
	if err != nil {
		return nil, fmt.Errorf("watching leaderboard: %w", err)
	}
	return sub, nil
}

// SubmitScoreBatch records scores reported by trusted game servers
func (b *Board) SubmitScoreBatch(ctx context.Context, subs []domain.ScoreSubmission) error {
	var errs []error
	archived := make([]domain.ArchivedScore, 0, len(subs))
	for _, s := range subs {
		if s.UserID == "" {
			errs = append(errs, fmt.Errorf("%w: missing user id", domain.ErrInvalidRequest))
			continue
		}
		name := displayName(s.Name, s.Username)
		entry, err := b.record(ctx, s.UserID, s.Game, s.Score, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("recording score for %s: %w", s.UserID, err))
			continue
		}
		archived = append(archived, entry)
	}

	if b.archive != nil && len(archived) > 0 {
		if err := b.archive.BatchArchiveScores(ctx, archived); err != nil {
			b.logger.Warn("failed to archive score batch", "count", len(archived), "error", err)
		}
	}
	return errors.Join(errs...)
}

// record writes the stats transaction and the leaderboard entry concurrently.
// The stats update is best effort; the entry write decides the outcome.
func (b *Board) record(ctx context.Context, uid, game string, score int64, name string) (domain.ArchivedScore, error) {
	if !b.cfg.HasGame(game) {
		return domain.ArchivedScore{}, domain.ErrUnknownGame
	}
	if score < 0 || score > domain.MaxScore {
		return domain.ArchivedScore{}, domain.ErrInvalidScore
	}

	now := time.Now()
	entry := domain.ScoreEntry{
		Name:   name,
		Score:  score,
		UserID: uid,
		TS:     domain.Millis(now),
	}

	var entryID string
	var g errgroup.Group
	g.Go(func() error {
		if err := b.bumpStats(ctx, uid, score); err != nil {
			b.logger.Warn("failed to update player stats", "user_id", uid, "game", game, "error", err)
		}
		return nil
	})
	g.Go(func() error {
		id, err := b.store.Push(ctx, boardPath(game), entry)
		if err != nil {
			return fmt.Errorf("writing score entry: %w", err)
		}
		entryID = id
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.ArchivedScore{}, err
	}

	b.logger.Debug("score recorded", "user_id", uid, "game", game, "score", score, "entry_id", entryID)
	return domain.ArchivedScore{
		EntryID:   entryID,
		Game:      game,
		UserID:    uid,
		Name:      name,
		Score:     score,
		CreatedAt: now,
	}, nil
}

func (b *Board) bumpStats(ctx context.Context, uid string, score int64) error {
	_, err := b.store.Transaction(ctx, tree.Join("users", uid, "stats"), func(cur tree.Snapshot) (any, error) {
		var stats domain.Stats
		if err := cur.Decode(&stats); err != nil {
			return nil, err
		}
		stats.GamesPlayed++
		if stats.TotalScore > math.MaxInt64-score {
			stats.TotalScore = math.MaxInt64
		} else {
			stats.TotalScore += score
		}
		return stats, nil
	})
	return err
}

func (b *Board) topQuery() tree.Query {
	return tree.Query{OrderBy: "score", LimitFirst: b.cfg.TopN}
}

func (b *Board) rank(rows []tree.Snapshot) []domain.RankedEntry {
	out := make([]domain.RankedEntry, 0, len(rows))
	for _, row := range rows {
		var e domain.ScoreEntry
		if err := row.Decode(&e); err != nil {
			b.logger.Warn("skipping malformed score entry", "entry_id", row.Key, "error", err)
			continue
		}
		out = append(out, domain.RankedEntry{ID: row.Key, Rank: len(out) + 1, Entry: e})
	}
	return out
}

// Service is the leaderboard component bound to one session
type Service struct {
	*Board
	sess *session.Context
}

// NewService binds a board to a session
func NewService(board *Board, sess *session.Context) *Service {
	return &Service{Board: board, sess: sess}
}

// Submit records a score for the signed-in user. name overrides the
// session's display name when not empty.
func (s *Service) Submit(ctx context.Context, game string, score int64, name string) (string, error) {
	user, err := s.sess.Require()
	if err != nil {
		return "", err
	}

	entry, err := s.record(ctx, user.ID, game, score, displayName(name, user.Username))
	if err != nil {
		return "", err
	}

	if s.archive != nil {
		if err := s.archive.ArchiveScore(ctx, entry); err != nil {
			s.logger.Warn("failed to archive score", "entry_id", entry.EntryID, "error", err)
		}
	}
	return entry.EntryID, nil
}

func displayName(override, username string) string {
	switch {
	case override != "":
		return override
	case username != "":
		return username
	default:
		return domain.DefaultUsername
	}
}

func boardPath(game string) string {
	return tree.Join("leaderboards", game)
}
