// Package tree defines the contract of the hierarchical JSON store the arcade
// keeps its state in. Paths follow Layout; values are JSON documents.
package tree

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrInvalidPath = errors.New("invalid tree path")
	ErrNotIndexed  = errors.New("order field is not indexed")
	ErrTxConflict  = errors.New("transaction retries exhausted")
	ErrTxAborted   = errors.New("transaction aborted")
)

// Snapshot is the value found at a path at read time
type Snapshot struct {
	Key   string
	Value json.RawMessage
}

// Exists reports whether the snapshot holds a value
func (s Snapshot) Exists() bool {
	return len(s.Value) > 0 && string(s.Value) != "null"
}

// Decode unmarshals the snapshot value into dst
func (s Snapshot) Decode(dst any) error {
	if !s.Exists() {
		return nil
	}
	return json.Unmarshal(s.Value, dst)
}

// Query selects children of a collection. OrderBy must be the collection's
// indexed field, or empty to order by key. At most one limit applies.
type Query struct {
	OrderBy    string
	LimitFirst int
	LimitLast  int
}

// TxFunc computes the new value at a path from its current value. Returning
// ErrTxAborted (or any error) leaves the path untouched. It may run more than once.
type TxFunc func(current Snapshot) (any, error)

// Subscription is a live query; Close releases it
type Subscription interface {
	Close() error
}

// Store is the remote tree. A nil value written anywhere deletes that path.
type Store interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	Set(ctx context.Context, path string, value any) error
	Push(ctx context.Context, collection string, value any) (string, error)
	Remove(ctx context.Context, path string) error
	Update(ctx context.Context, values map[string]any) error
	Transaction(ctx context.Context, path string, fn TxFunc) (Snapshot, error)
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)
	Subscribe(ctx context.Context, collection string, q Query, fn func([]Snapshot)) (Subscription, error)
}
