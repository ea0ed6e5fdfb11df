package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	token, err := issuer.Issue("u1", "alice")
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "alice", claims.Username)
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	token, err := NewIssuer("other", time.Hour).Issue("u1", "alice")
	require.NoError(t, err)
	_, err = NewIssuer("secret", time.Hour).Parse(token)
	require.Error(t, err)

	expired, err := NewIssuer("secret", -time.Minute).Issue("u1", "alice")
	require.NoError(t, err)
	_, err = NewIssuer("secret", time.Hour).Parse(expired)
	require.Error(t, err)

	_, err = NewIssuer("secret", time.Hour).Parse("not-a-token")
	require.Error(t, err)
}

func TestGothNames(t *testing.T) {
	require.Equal(t, "microsoftonline", GothName("microsoft"))
	require.Equal(t, "google", GothName("google"))
	require.Equal(t, "microsoft", providerName("microsoftonline"))
}
