package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
)

func TestUsername(t *testing.T) {
	c := NewChecker(&config.ModerationConfig{
		BannedUsernames: []string{"Admin", " "},
		MinLength:       3,
		MaxLength:       20,
	})

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"valid", "alice", "alice", nil},
		{"trimmed", "  bob99 ", "bob99", nil},
		{"too short", "ab", "", domain.ErrInvalidUsername},
		{"too long", "abcdefghijklmnopqrstu", "", domain.ErrInvalidUsername},
		{"exactly max", "abcdefghijklmnopqrst", "abcdefghijklmnopqrst", nil},
		{"multibyte counted as runes", "éèà", "éèà", nil},
		{"slash", "a/b/c", "", domain.ErrInvalidUsername},
		{"banned substring", "TheAdmin", "", domain.ErrUsernameBanned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Username(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEmail(t *testing.T) {
	require.NoError(t, Email("alice@example.com"))
	require.ErrorIs(t, Email("alice"), domain.ErrInvalidRequest)
	require.ErrorIs(t, Email("Alice <alice@example.com>"), domain.ErrInvalidRequest)
	require.ErrorIs(t, Email(""), domain.ErrInvalidRequest)
}

func TestClaimKey(t *testing.T) {
	require.Equal(t, "alice", ClaimKey(" Alice "))
}
