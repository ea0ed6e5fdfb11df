package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/tree"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Tree stores the arcade tree in Redis. Every collection is a hash of child
// key to JSON document; indexed collections keep a sorted set beside it.
type Tree struct {
	client     *redis.Client
	logger     *slog.Logger
	maxRetries int
}

var _ tree.Store = (*Tree)(nil)

// NewTree creates a new Redis-backed tree
func NewTree(cfg *config.RedisConfig, logger *slog.Logger) (*Tree, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewTreeWithClient(client, cfg.TxRetries, logger), nil
}

// NewTreeWithClient wraps an existing client
func NewTreeWithClient(client *redis.Client, maxRetries int, logger *slog.Logger) *Tree {
	if maxRetries <= 0 {
		maxRetries = 25
	}
	return &Tree{
		client:     client,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Close closes the Redis connection
func (t *Tree) Close() error {
	return t.client.Close()
}

// Client returns the underlying Redis client
func (t *Tree) Client() *redis.Client {
	return t.client
}

// hashKey returns the Redis key holding a collection's children
func (t *Tree) hashKey(collection string) string {
	return fmt.Sprintf("tree:%s", collection)
}

// indexKey returns the Redis key of a collection's sorted index
func (t *Tree) indexKey(collection, field string) string {
	return fmt.Sprintf("tree:%s:by:%s", collection, field)
}

// changesChannel returns the pub/sub channel announcing collection writes
func (t *Tree) changesChannel(collection string) string {
	return fmt.Sprintf("tree:%s:changes", collection)
}

func remote(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrRemoteOperationFailed, op, err)
}

type docRef struct {
	collection string
	key        string
}

type write struct {
	path  tree.Path
	value any
}

// abortError carries an error returned by a transaction function out of Watch
type abortError struct{ err error }

func (e abortError) Error() string { return e.err.Error() }

// Get reads the value at a path
func (t *Tree) Get(ctx context.Context, path string) (tree.Snapshot, error) {
	p, err := tree.Parse(path)
	if err != nil {
		return tree.Snapshot{}, err
	}
	doc, err := t.loadDoc(ctx, t.client, docRef{p.Collection, p.Key})
	if err != nil {
		return tree.Snapshot{}, remote("get", err)
	}
	return snapshotOf(p, tree.GetField(doc, p.Field))
}

// Set replaces the value at a path
func (t *Tree) Set(ctx context.Context, path string, value any) error {
	w, err := newWrite(path, value)
	if err != nil {
		return err
	}
	return t.apply(ctx, "set", []write{w})
}

// Remove deletes the value at a path
func (t *Tree) Remove(ctx context.Context, path string) error {
	return t.Set(ctx, path, nil)
}

// Push inserts a value under a fresh, time-ordered child key
func (t *Tree) Push(ctx context.Context, collection string, value any) (string, error) {
	coll, err := tree.ParseCollection(collection)
	if err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	key := id.String()
	if err := t.Set(ctx, tree.Join(coll, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Update writes several paths in one atomic step
func (t *Tree) Update(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	writes := make([]write, 0, len(paths))
	for _, p := range paths {
		w, err := newWrite(p, values[p])
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}
	return t.apply(ctx, "update", writes)
}

// Transaction runs fn against the current value at path and writes its result,
// retrying while another writer touches the same collection
func (t *Tree) Transaction(ctx context.Context, path string, fn tree.TxFunc) (tree.Snapshot, error) {
	p, err := tree.Parse(path)
	if err != nil {
		return tree.Snapshot{}, err
	}
	ref := docRef{p.Collection, p.Key}

	var result tree.Snapshot
	for attempt := 0; attempt < t.maxRetries; attempt++ {
		err = t.client.Watch(ctx, func(tx *redis.Tx) error {
			doc, err := t.loadDoc(ctx, tx, ref)
			if err != nil {
				return err
			}
			current, err := snapshotOf(p, tree.GetField(doc, p.Field))
			if err != nil {
				return err
			}

			next, err := fn(current)
			if err != nil {
				return abortError{err}
			}
			value, err := tree.Normalize(next)
			if err != nil {
				return abortError{err}
			}

			docs := map[docRef]any{ref: tree.SetField(doc, p.Field, value)}
			if err := t.commit(ctx, tx, docs); err != nil {
				return err
			}
			result, err = snapshotOf(p, value)
			return err
		}, t.hashKey(p.Collection))

		if errors.Is(err, redis.TxFailedErr) {
			t.logger.Debug("transaction conflict, retrying", "path", path, "attempt", attempt+1)
			continue
		}
		var abort abortError
		if errors.As(err, &abort) {
			return tree.Snapshot{}, abort.err
		}
		if err != nil {
			return tree.Snapshot{}, remote("transaction", err)
		}
		t.publish(ctx, p.Collection, p.Key)
		return result, nil
	}
	return tree.Snapshot{}, tree.ErrTxConflict
}

// Query returns the children of a collection in the requested order
func (t *Tree) Query(ctx context.Context, collection string, q tree.Query) ([]tree.Snapshot, error) {
	coll, err := tree.ParseCollection(collection)
	if err != nil {
		return nil, err
	}
	if q.OrderBy == "" {
		return t.queryByKey(ctx, coll, q)
	}
	if q.OrderBy != tree.IndexOf(coll) {
		return nil, fmt.Errorf("%w: %s on %s", tree.ErrNotIndexed, q.OrderBy, coll)
	}

	start, stop := int64(0), int64(-1)
	switch {
	case q.LimitFirst > 0:
		stop = int64(q.LimitFirst - 1)
	case q.LimitLast > 0:
		start = int64(-q.LimitLast)
	}

	keys, err := t.client.ZRange(ctx, t.indexKey(coll, q.OrderBy), start, stop).Result()
	if err != nil {
		return nil, remote("query", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := t.client.HMGet(ctx, t.hashKey(coll), keys...).Result()
	if err != nil {
		return nil, remote("query", err)
	}

	snapshots := make([]tree.Snapshot, 0, len(keys))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// removed between the index read and the hash read
			continue
		}
		snapshots = append(snapshots, tree.Snapshot{Key: keys[i], Value: json.RawMessage(s)})
	}
	return snapshots, nil
}

func (t *Tree) queryByKey(ctx context.Context, coll string, q tree.Query) ([]tree.Snapshot, error) {
	all, err := t.client.HGetAll(ctx, t.hashKey(coll)).Result()
	if err != nil {
		return nil, remote("query", err)
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	switch {
	case q.LimitFirst > 0 && len(keys) > q.LimitFirst:
		keys = keys[:q.LimitFirst]
	case q.LimitLast > 0 && len(keys) > q.LimitLast:
		keys = keys[len(keys)-q.LimitLast:]
	}

	snapshots := make([]tree.Snapshot, len(keys))
	for i, k := range keys {
		snapshots[i] = tree.Snapshot{Key: k, Value: json.RawMessage(all[k])}
	}
	return snapshots, nil
}

// Subscribe delivers the query result now and again after every write to the
// collection, until the subscription is closed
func (t *Tree) Subscribe(ctx context.Context, collection string, q tree.Query, fn func([]tree.Snapshot)) (tree.Subscription, error) {
	coll, err := tree.ParseCollection(collection)
	if err != nil {
		return nil, err
	}

	ps := t.client.Subscribe(ctx, t.changesChannel(coll))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, remote("subscribe", err)
	}

	rows, err := t.Query(ctx, coll, q)
	if err != nil {
		ps.Close()
		return nil, err
	}
	fn(rows)

	sub := &subscription{ps: ps}
	go sub.run(context.WithoutCancel(ctx), t, coll, q, fn)

	t.logger.Debug("subscription opened", "collection", coll)
	return sub, nil
}

type subscription struct {
	ps *redis.PubSub

	// mu is held while a callback runs, so Close waits for it
	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (s *subscription) run(ctx context.Context, t *Tree, coll string, q tree.Query, fn func([]tree.Snapshot)) {
	for range s.ps.Channel() {
		rows, err := t.Query(ctx, coll, q)
		if err != nil {
			t.logger.Warn("subscription refresh failed", "collection", coll, "error", err)
			continue
		}
		if !s.deliver(rows, fn) {
			return
		}
	}
}

func (s *subscription) deliver(rows []tree.Snapshot, fn func([]tree.Snapshot)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fn(rows)
	return true
}

// Close stops delivery. It waits for a callback already running, and none
// starts after it returns; a callback must not close its own subscription.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		err = s.ps.Close()
	})
	return err
}

func newWrite(path string, value any) (write, error) {
	p, err := tree.Parse(path)
	if err != nil {
		return write{}, err
	}
	v, err := tree.Normalize(value)
	if err != nil {
		return write{}, err
	}
	return write{path: p, value: v}, nil
}

// apply writes all values inside one WATCH/MULTI block over every touched collection
func (t *Tree) apply(ctx context.Context, op string, writes []write) error {
	var keys []string
	seen := map[string]bool{}
	for _, w := range writes {
		if !seen[w.path.Collection] {
			seen[w.path.Collection] = true
			keys = append(keys, t.hashKey(w.path.Collection))
		}
	}

	for attempt := 0; attempt < t.maxRetries; attempt++ {
		err := t.client.Watch(ctx, func(tx *redis.Tx) error {
			docs := make(map[docRef]any)
			for _, w := range writes {
				ref := docRef{w.path.Collection, w.path.Key}
				if _, ok := docs[ref]; !ok {
					doc, err := t.loadDoc(ctx, tx, ref)
					if err != nil {
						return err
					}
					docs[ref] = doc
				}
				docs[ref] = tree.SetField(docs[ref], w.path.Field, w.value)
			}
			return t.commit(ctx, tx, docs)
		}, keys...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return remote(op, err)
		}
		for _, w := range writes {
			t.publish(ctx, w.path.Collection, w.path.Key)
		}
		return nil
	}
	return tree.ErrTxConflict
}

func (t *Tree) loadDoc(ctx context.Context, c redis.Cmdable, ref docRef) (any, error) {
	raw, err := c.HGet(ctx, t.hashKey(ref.collection), ref.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc, err := tree.DecodeDoc([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding %s/%s: %w", ref.collection, ref.key, err)
	}
	return doc, nil
}

func (t *Tree) commit(ctx context.Context, tx *redis.Tx, docs map[docRef]any) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for ref, doc := range docs {
			hash := t.hashKey(ref.collection)
			field := tree.IndexOf(ref.collection)

			if doc == nil {
				pipe.HDel(ctx, hash, ref.key)
				if field != "" {
					pipe.ZRem(ctx, t.indexKey(ref.collection, field), ref.key)
				}
				continue
			}

			data, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("encoding %s/%s: %w", ref.collection, ref.key, err)
			}
			pipe.HSet(ctx, hash, ref.key, data)

			if field == "" {
				continue
			}
			if n, ok := tree.NumberOf(tree.GetField(doc, []string{field})); ok {
				pipe.ZAdd(ctx, t.indexKey(ref.collection, field), redis.Z{Score: n, Member: ref.key})
			} else {
				pipe.ZRem(ctx, t.indexKey(ref.collection, field), ref.key)
			}
		}
		return nil
	})
	return err
}

func (t *Tree) publish(ctx context.Context, collection, key string) {
	if err := t.client.Publish(ctx, t.changesChannel(collection), key).Err(); err != nil {
		t.logger.Warn("failed to publish change", "collection", collection, "error", err)
	}
}

func snapshotOf(p tree.Path, v any) (tree.Snapshot, error) {
	key := p.Key
	if len(p.Field) > 0 {
		key = p.Field[len(p.Field)-1]
	}
	if v == nil {
		return tree.Snapshot{Key: key}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return tree.Snapshot{}, fmt.Errorf("encoding value: %w", err)
	}
	return tree.Snapshot{Key: key, Value: data}, nil
}
