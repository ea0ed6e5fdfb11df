package tree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name   string
		raw    string
		want   Path
		expErr bool
	}{
		{
			name: "user document",
			raw:  "users/u1",
			want: Path{Collection: "users", Key: "u1", Field: []string{}},
		},
		{
			name: "nested user field",
			raw:  "users/u1/stats/gamesPlayed",
			want: Path{Collection: "users", Key: "u1", Field: []string{"stats", "gamesPlayed"}},
		},
		{
			name: "notification read flag",
			raw:  "notifications/u1/n1/read",
			want: Path{Collection: "notifications/u1", Key: "n1", Field: []string{"read"}},
		},
		{name: "collection only", raw: "friends/u1", expErr: true},
		{name: "unknown root", raw: "widgets/a/b", expErr: true},
		{name: "empty segment", raw: "users//x", expErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.raw)
			if tc.expErr {
				require.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseCollection(t *testing.T) {
	c, err := ParseCollection("leaderboards/memory")
	require.NoError(t, err)
	require.Equal(t, "leaderboards/memory", c)
	require.Equal(t, "score", IndexOf(c))

	_, err = ParseCollection("leaderboards")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestSetField(t *testing.T) {
	doc := map[string]any{"username": "Alice", "stats": map[string]any{"gamesPlayed": 3.0}}

	out := SetField(doc, []string{"stats", "totalScore"}, 10.0)
	require.Equal(t, 10.0, GetField(out, []string{"stats", "totalScore"}))
	require.Equal(t, 3.0, GetField(out, []string{"stats", "gamesPlayed"}))
	require.Nil(t, GetField(doc, []string{"stats", "totalScore"}), "input must not be mutated")

	out = SetField(out, []string{"stats"}, nil)
	require.Nil(t, GetField(out, []string{"stats"}))

	require.Nil(t, SetField(map[string]any{"read": true}, []string{"read"}, nil))
}

func TestNormalizeKeepsIntegerPrecision(t *testing.T) {
	out, err := Normalize(map[string]int64{"totalScore": 1<<62 + 1})
	require.NoError(t, err)

	n, ok := NumberOf(GetField(out, []string{"totalScore"}))
	require.True(t, ok)
	require.Equal(t, float64(1<<62), n)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	require.Equal(t, `{"totalScore":4611686018427387905}`, string(data))
}
