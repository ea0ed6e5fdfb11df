package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505"}
	require.True(t, isUniqueViolation(dup))
	require.True(t, isUniqueViolation(fmt.Errorf("insert: %w", dup)))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("boom")))
}

func TestEmbeddedMigrationsAreSequential(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	require.EqualValues(t, 1, first)

	next, err := src.Next(first)
	require.NoError(t, err)
	require.EqualValues(t, 2, next)

	for _, v := range []uint{1, 2} {
		up, _, err := src.ReadUp(v)
		require.NoError(t, err)
		up.Close()
		down, _, err := src.ReadDown(v)
		require.NoError(t, err)
		down.Close()
	}
}
