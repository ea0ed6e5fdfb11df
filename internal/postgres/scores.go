package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arcade-social/internal/domain"
)

const archiveQuery = `
	INSERT INTO score_entries (entry_id, game, user_id, name, score, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (entry_id) DO NOTHING
`

// ArchiveScore records a leaderboard entry in the append-only archive
func (r *Repository) ArchiveScore(ctx context.Context, s domain.ArchivedScore) error {
	_, err := r.pool.Exec(ctx, archiveQuery, s.EntryID, s.Game, s.UserID, s.Name, s.Score, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("archiving score: %w", err)
	}
	return nil
}

// BatchArchiveScores archives several entries in one round trip
func (r *Repository) BatchArchiveScores(ctx context.Context, scores []domain.ArchivedScore) error {
	if len(scores) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range scores {
		batch.Queue(archiveQuery, s.EntryID, s.Game, s.UserID, s.Name, s.Score, s.CreatedAt)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range scores {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch archiving scores: %w", err)
		}
	}
	return nil
}

// ScoreHistory returns a player's most recent archived entries
func (r *Repository) ScoreHistory(ctx context.Context, userID string, limit int) ([]domain.ArchivedScore, error) {
	query := `
		SELECT entry_id, game, user_id, name, score, created_at
		FROM score_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("getting score history: %w", err)
	}
	defer rows.Close()

	var history []domain.ArchivedScore
	for rows.Next() {
		var s domain.ArchivedScore
		if err := rows.Scan(&s.EntryID, &s.Game, &s.UserID, &s.Name, &s.Score, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		history = append(history, s)
	}
	return history, rows.Err()
}
