// Package session holds the identity an arcade client is acting as.
//
// A Context is created per client (socket connection or REST request) and
// injected into every component bound for that client. Only the auth
// transitions write to it; everything else reads.
package session

import (
	"sync"
	"time"

	"github.com/arcade-social/internal/domain"
)

// User is the signed-in identity
type User struct {
	ID         string
	Username   string
	Provider   string
	SignedInAt time.Time
}

// Listener observes sign-in and sign-out transitions
type Listener func(user User, signedIn bool)

// Context is the current session of one client
type Context struct {
	mu        sync.RWMutex
	user      *User
	listeners map[int]Listener
	nextID    int
}

// New returns a signed-out session
func New() *Context {
	return &Context{listeners: make(map[int]Listener)}
}

// NewSignedIn returns a session already bound to a user
func NewSignedIn(id, username string) *Context {
	c := New()
	c.user = &User{ID: id, Username: username, SignedInAt: time.Now()}
	return c
}

// SignIn binds the session to a user
func (c *Context) SignIn(id, username, provider string) User {
	u := User{ID: id, Username: username, Provider: provider, SignedInAt: time.Now()}

	c.mu.Lock()
	c.user = &u
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(u, true)
	}
	return u
}

// SignOut clears the session. Signing out twice is a no-op.
func (c *Context) SignOut() {
	c.mu.Lock()
	prev := c.user
	c.user = nil
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	if prev == nil {
		return
	}
	for _, fn := range listeners {
		fn(*prev, false)
	}
}

// Rename updates the display name of the signed-in user
func (c *Context) Rename(username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return domain.ErrNotAuthenticated
	}
	c.user.Username = username
	return nil
}

// Current returns the signed-in user, if any
func (c *Context) Current() (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return User{}, false
	}
	return *c.user, true
}

// Require returns the signed-in user or ErrNotAuthenticated
func (c *Context) Require() (User, error) {
	u, ok := c.Current()
	if !ok {
		return User{}, domain.ErrNotAuthenticated
	}
	return u, nil
}

// OnChange registers fn for later transitions and returns its removal func
func (c *Context) OnChange(fn Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Context) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(c.listeners))
	for i := 0; i < c.nextID; i++ {
		if fn, ok := c.listeners[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}
