package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/moderation"
)

// MinPasswordLength is the shortest password accepted at sign-up
const MinPasswordLength = 6

// ProviderPassword names email/password accounts
const ProviderPassword = "password"

// Identity is what the provider knows about an authenticated user
type Identity struct {
	UserID   string
	Email    string
	Provider string
}

// FederatedUser is an identity asserted by an OAuth provider
type FederatedUser struct {
	Provider       string
	ProviderUserID string
	Email          string
	DisplayName    string
	PhotoURL       string
}

// Provider authenticates users
type Provider interface {
	SignUp(ctx context.Context, email, password string) (Identity, error)
	SignIn(ctx context.Context, email, password string) (Identity, error)
	Federate(ctx context.Context, user FederatedUser) (Identity, error)
	Remove(ctx context.Context, userID string) error
}

// AccountStore persists accounts
type AccountStore interface {
	CreateAccount(ctx context.Context, acc domain.Account) error
	AccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	AccountByProvider(ctx context.Context, provider, providerUserID string) (*domain.Account, error)
	DeleteAccount(ctx context.Context, userID string) error
}

// PasswordProvider keeps bcrypt-hashed accounts in an AccountStore
type PasswordProvider struct {
	accounts AccountStore
	cost     int
}

// NewPasswordProvider creates a provider over accounts
func NewPasswordProvider(accounts AccountStore) *PasswordProvider {
	return &PasswordProvider{accounts: accounts, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost
func (p *PasswordProvider) WithCost(cost int) *PasswordProvider {
	p.cost = cost
	return p
}

// SignUp creates a password account
func (p *PasswordProvider) SignUp(ctx context.Context, email, password string) (Identity, error) {
	email = strings.TrimSpace(email)
	if err := moderation.Email(email); err != nil {
		return Identity{}, newError(CodeInvalidEmail, err)
	}
	if len(password) < MinPasswordLength {
		return Identity{}, newError(CodeWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Identity{}, fmt.Errorf("hashing password: %w", err)
	}

	acc := domain.Account{
		UserID:       uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Provider:     ProviderPassword,
		CreatedAt:    time.Now(),
	}
	if err := p.accounts.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, domain.ErrAccountExists) {
			return Identity{}, newError(CodeEmailInUse, err)
		}
		return Identity{}, err
	}
	return Identity{UserID: acc.UserID, Email: acc.Email, Provider: ProviderPassword}, nil
}

// SignIn checks an email and password
func (p *PasswordProvider) SignIn(ctx context.Context, email, password string) (Identity, error) {
	acc, err := p.accounts.AccountByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return Identity{}, newError(CodeUserNotFound, err)
		}
		return Identity{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return Identity{}, newError(CodeWrongPassword, err)
	}
	return Identity{UserID: acc.UserID, Email: acc.Email, Provider: ProviderPassword}, nil
}

// Federate finds or creates the account linked to an OAuth identity
func (p *PasswordProvider) Federate(ctx context.Context, user FederatedUser) (Identity, error) {
	if user.Provider == "" || user.ProviderUserID == "" {
		return Identity{}, fmt.Errorf("%w: missing provider identity", domain.ErrInvalidRequest)
	}

	acc, err := p.accounts.AccountByProvider(ctx, user.Provider, user.ProviderUserID)
	if err == nil {
		return Identity{UserID: acc.UserID, Email: acc.Email, Provider: acc.Provider}, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return Identity{}, err
	}

	created := domain.Account{
		UserID:         uuid.NewString(),
		Email:          user.Email,
		Provider:       user.Provider,
		ProviderUserID: user.ProviderUserID,
		CreatedAt:      time.Now(),
	}
	if err := p.accounts.CreateAccount(ctx, created); err != nil {
		if !errors.Is(err, domain.ErrAccountExists) {
			return Identity{}, err
		}
		// lost a race with a concurrent first login
		acc, err = p.accounts.AccountByProvider(ctx, user.Provider, user.ProviderUserID)
		if err != nil {
			return Identity{}, err
		}
		return Identity{UserID: acc.UserID, Email: acc.Email, Provider: acc.Provider}, nil
	}
	return Identity{UserID: created.UserID, Email: created.Email, Provider: created.Provider}, nil
}

// Remove deletes an account that never got a profile
func (p *PasswordProvider) Remove(ctx context.Context, userID string) error {
	return p.accounts.DeleteAccount(ctx, userID)
}
