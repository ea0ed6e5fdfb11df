// Package authtest provides in-memory account storage for tests.
package authtest

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/arcade-social/internal/auth"
	"github.com/arcade-social/internal/domain"
)

// Accounts is an in-memory auth.AccountStore
type Accounts struct {
	mu       sync.Mutex
	accounts []domain.Account
}

func (m *Accounts) CreateAccount(_ context.Context, acc domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if acc.Provider == auth.ProviderPassword && a.Provider == auth.ProviderPassword && strings.EqualFold(a.Email, acc.Email) {
			return domain.ErrAccountExists
		}
		if acc.ProviderUserID != "" && a.Provider == acc.Provider && a.ProviderUserID == acc.ProviderUserID {
			return domain.ErrAccountExists
		}
	}
	m.accounts = append(m.accounts, acc)
	return nil
}

func (m *Accounts) AccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Provider == auth.ProviderPassword && strings.EqualFold(a.Email, email) {
			acc := a
			return &acc, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *Accounts) AccountByProvider(_ context.Context, provider, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Provider == provider && a.ProviderUserID == id {
			acc := a
			return &acc, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *Accounts) DeleteAccount(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.accounts {
		if a.UserID == userID {
			m.accounts = append(m.accounts[:i], m.accounts[i+1:]...)
			return nil
		}
	}
	return domain.ErrAccountNotFound
}

// NewProvider returns a password provider over fresh in-memory accounts,
// hashing at the minimum bcrypt cost
func NewProvider() *auth.PasswordProvider {
	return auth.NewPasswordProvider(&Accounts{}).WithCost(bcrypt.MinCost)
}
