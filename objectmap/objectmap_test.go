package objectmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/redis/resp"
)

type session struct {
	User      string        `redis:"user"`
	Hits      int           `redis:"hits"`
	Admin     bool          `redis:"admin"`
	Score     float64       `redis:"score"`
	TTL       time.Duration `redis:"ttl"`
	CreatedAt time.Time     `redis:"created_at"`
	Token     []byte        `redis:"token"`
}

func fields(kv ...string) resp.Pairs[[]byte] {
	var p resp.Pairs[[]byte]
	for i := 0; i+1 < len(kv); i += 2 {
		p = append(p, resp.Pair[[]byte]{Key: kv[i], Value: []byte(kv[i+1])})
	}
	return p
}

func TestDecoder_Struct(t *testing.T) {
	d := New(Options{})

	var s session
	err := d.Deserialize(fields(
		"user", "ada",
		"hits", "42",
		"admin", "1",
		"score", "2.5",
		"ttl", "1m30s",
		"created_at", "2024-03-01T10:00:00Z",
		"token", "\x00\x01",
	), &s)
	require.NoError(t, err)

	assert.Equal(t, "ada", s.User)
	assert.Equal(t, 42, s.Hits)
	assert.True(t, s.Admin)
	assert.Equal(t, 2.5, s.Score)
	assert.Equal(t, 90*time.Second, s.TTL)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), s.CreatedAt.UTC())
	assert.Equal(t, []byte{0, 1}, s.Token)
}

func TestDecoder_LastDuplicateWins(t *testing.T) {
	var s session
	err := New(Options{}).Deserialize(fields("user", "a", "user", "b"), &s)
	require.NoError(t, err)
	assert.Equal(t, "b", s.User)
}

func TestDecoder_Map(t *testing.T) {
	var m map[string]string
	err := New(Options{}).Deserialize(fields("a", "1", "b", "2"), &m)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, m)
}

func TestDecoder_InvalidValue(t *testing.T) {
	var s session
	err := New(Options{}).Deserialize(fields("hits", "many"), &s)
	assert.Error(t, err)
}

func TestDecoder_ErrorUnused(t *testing.T) {
	var s session

	err := New(Options{}).Deserialize(fields("user", "ada", "extra", "x"), &s)
	assert.NoError(t, err)

	err = New(Options{ErrorUnused: true}).Deserialize(fields("user", "ada", "extra", "x"), &s)
	assert.ErrorContains(t, err, "extra")
}

func TestDecoder_ErrorUnset(t *testing.T) {
	type pair struct {
		A string `redis:"a"`
		B string `redis:"b"`
	}

	var p pair
	err := New(Options{ErrorUnset: true}).Deserialize(fields("a", "1"), &p)
	assert.ErrorContains(t, err, "b")
}

func TestDecoder_MatchName(t *testing.T) {
	type profile struct {
		UserName string
		Email    string
	}

	t.Run("fold", func(t *testing.T) {
		var p profile
		require.NoError(t, New(Options{}).Deserialize(fields("USERNAME", "ada"), &p))
		assert.Equal(t, "ada", p.UserName)
	})

	t.Run("snake", func(t *testing.T) {
		var p profile
		require.NoError(t, New(Options{MatchName: MatchSnake}).Deserialize(fields("user_name", "ada", "email", "a@x"), &p))
		assert.Equal(t, profile{UserName: "ada", Email: "a@x"}, p)
	})

	t.Run("exact", func(t *testing.T) {
		var p profile
		require.NoError(t, New(Options{MatchName: MatchExact}).Deserialize(fields("username", "ada", "UserName", "bob"), &p))
		assert.Equal(t, "bob", p.UserName)
	})
}

func TestDecoder_WithParseObject(t *testing.T) {
	reply := resp.ArrayFrame(
		resp.BulkFrame([]byte("user")), resp.BulkFrame([]byte("ada")),
		resp.BulkFrame([]byte("hits")), resp.BulkFrame([]byte("7")),
	)

	got, err := resp.ParseObject[session](New(Options{}))(reply)
	require.NoError(t, err)
	require.True(t, got.Found)
	assert.Equal(t, "ada", got.Value.User)
	assert.Equal(t, 7, got.Value.Hits)
}
