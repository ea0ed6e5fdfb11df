// Package treetest provides an in-process tree store for tests.
package treetest

import (
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/arcade-social/internal/redis"
)

// New returns a tree backed by a fresh miniredis server
func New(t testing.TB) *redis.Tree {
	t.Helper()
	tree, _ := NewWithServer(t)
	return tree
}

// NewWithServer also returns the server so tests can inspect raw keys
func NewWithServer(t testing.TB) (*redis.Tree, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewTreeWithClient(client, 0, Logger()), mr
}

// Logger discards everything
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
