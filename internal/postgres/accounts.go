package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arcade-social/internal/domain"
)

const accountColumns = `user_id, COALESCE(email, ''), COALESCE(password_hash, ''), provider, COALESCE(provider_user_id, ''), created_at`

// CreateAccount stores a new account
func (r *Repository) CreateAccount(ctx context.Context, acc domain.Account) error {
	query := `
		INSERT INTO accounts (user_id, email, password_hash, provider, provider_user_id, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''), $6)
	`
	_, err := r.pool.Exec(ctx, query,
		acc.UserID,
		acc.Email,
		acc.PasswordHash,
		acc.Provider,
		acc.ProviderUserID,
		acc.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("creating account: %w", err)
	}
	return nil
}

// AccountByEmail looks up a password account
func (r *Repository) AccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1) AND provider = 'password'`
	return r.scanAccount(r.pool.QueryRow(ctx, query, email))
}

// AccountByProvider looks up a federated account
func (r *Repository) AccountByProvider(ctx context.Context, provider, providerUserID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE provider = $1 AND provider_user_id = $2`
	return r.scanAccount(r.pool.QueryRow(ctx, query, provider, providerUserID))
}

// DeleteAccount removes an account by user id
func (r *Repository) DeleteAccount(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *Repository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	err := row.Scan(
		&acc.UserID,
		&acc.Email,
		&acc.PasswordHash,
		&acc.Provider,
		&acc.ProviderUserID,
		&acc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return &acc, nil
}
