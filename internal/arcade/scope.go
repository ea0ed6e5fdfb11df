package arcade

import (
	"log/slog"
	"sync"

	"github.com/arcade-social/internal/tree"
)

// Scope owns the live subscriptions of the view a client is showing.
// Entering a view releases everything the previous view held.
type Scope struct {
	mu     sync.Mutex
	view   string
	subs   []tree.Subscription
	logger *slog.Logger
}

// NewScope creates an empty scope
func NewScope(logger *slog.Logger) *Scope {
	return &Scope{logger: logger}
}

// Enter releases the current view and makes name current with the
// subscriptions acquire returns. On error the scope is left empty.
func (s *Scope) Enter(name string, acquire func() ([]tree.Subscription, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	if acquire == nil {
		s.view = name
		return nil
	}
	subs, err := acquire()
	if err != nil {
		closeAll(subs, s.logger)
		return err
	}
	s.view = name
	s.subs = subs
	return nil
}

// Release closes the current view's subscriptions
func (s *Scope) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

// View returns the current view name and the number of live subscriptions
func (s *Scope) View() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view, len(s.subs)
}

func (s *Scope) releaseLocked() {
	if s.view != "" || len(s.subs) > 0 {
		s.logger.Debug("view released", "view", s.view, "subscriptions", len(s.subs))
	}
	closeAll(s.subs, s.logger)
	s.subs = nil
	s.view = ""
}

func closeAll(subs []tree.Subscription, logger *slog.Logger) {
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			logger.Warn("failed to close subscription", "error", err)
		}
	}
}
