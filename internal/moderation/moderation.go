// Package moderation validates user-chosen names and emails.
package moderation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
)

// Checker applies the configured username rules
type Checker struct {
	minLength int
	maxLength int
	banned    []string
}

// NewChecker creates a checker from moderation config
func NewChecker(cfg *config.ModerationConfig) *Checker {
	banned := make([]string, 0, len(cfg.BannedUsernames))
	for _, b := range cfg.BannedUsernames {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			banned = append(banned, b)
		}
	}
	return &Checker{
		minLength: cfg.MinLength,
		maxLength: cfg.MaxLength,
		banned:    banned,
	}
}

// Username trims name and checks length, characters and the blocklist
func (c *Checker) Username(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < c.minLength || n > c.maxLength {
		return "", fmt.Errorf("%w: must be %d to %d characters", domain.ErrInvalidUsername, c.minLength, c.maxLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) || r == '/' {
			return "", fmt.Errorf("%w: contains %q", domain.ErrInvalidUsername, r)
		}
	}

	lower := strings.ToLower(name)
	for _, b := range c.banned {
		if strings.Contains(lower, b) {
			return "", domain.ErrUsernameBanned
		}
	}
	return name, nil
}

// Email checks the syntax of a bare address
func Email(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr || !strings.Contains(addr, "@") {
		return fmt.Errorf("%w: invalid email", domain.ErrInvalidRequest)
	}
	return nil
}

// ClaimKey is the lookup key of a username in the claims collection
func ClaimKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
