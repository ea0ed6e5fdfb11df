// Package dispatch routes named client commands to the component handlers
// registered for them.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/arcade-social/internal/domain"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrDuplicateCommand = errors.New("command already registered")
)

// Command is one action emitted by a client
type Command struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler executes a command payload
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Dispatcher maps command types to handlers
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates an empty dispatcher
func New() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register binds a handler to a command type
func (d *Dispatcher) Register(name string, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	d.handlers[name] = h
	return nil
}

// MustRegister is Register for wiring code; it panics on duplicates
func (d *Dispatcher) MustRegister(name string, h Handler) {
	if err := d.Register(name, h); err != nil {
		panic(err)
	}
}

// Dispatch runs the handler owning cmd.Type
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[cmd.Type]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return h(ctx, cmd.Payload)
}

// Commands lists the registered command types
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Typed adapts a handler taking a decoded payload. An absent payload decodes
// to the zero value; unknown fields are rejected.
func Typed[T any](fn func(ctx context.Context, in T) (any, error)) Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var in T
		if len(bytes.TrimSpace(payload)) > 0 && string(payload) != "null" {
			dec := json.NewDecoder(bytes.NewReader(payload))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&in); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
			}
		}
		return fn(ctx, in)
	}
}

// NoPayload adapts a handler that ignores its payload
func NoPayload(fn func(ctx context.Context) (any, error)) Handler {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		return fn(ctx)
	}
}
