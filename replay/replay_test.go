package replay_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialrss/replay"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name      string
		providerA string
		paramsA   map[string]string
		providerB string
		paramsB   map[string]string
		same      bool
	}{
		{
			name:      "identical requests",
			providerA: "twitter",
			paramsA:   map[string]string{"endpoint": "timeline", "count": "50"},
			providerB: "twitter",
			paramsB:   map[string]string{"count": "50", "endpoint": "timeline"},
			same:      true,
		},
		{
			name:      "different cursor",
			providerA: "twitter",
			paramsA:   map[string]string{"endpoint": "timeline", "cursor": "abc"},
			providerB: "twitter",
			paramsB:   map[string]string{"endpoint": "timeline", "cursor": "def"},
			same:      false,
		},
		{
			name:      "different provider",
			providerA: "twitter",
			paramsA:   map[string]string{"endpoint": "timeline"},
			providerB: "vk",
			paramsB:   map[string]string{"endpoint": "timeline"},
			same:      false,
		},
		{
			name:      "extra parameter",
			providerA: "vk",
			paramsA:   map[string]string{"endpoint": "newsfeed.get"},
			providerB: "vk",
			paramsB:   map[string]string{"endpoint": "newsfeed.get", "start_from": "10"},
			same:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := replay.Fingerprint(tt.providerA, tt.paramsA)
			b := replay.Fingerprint(tt.providerB, tt.paramsB)
			if tt.same {
				assert.Equal(t, a, b)
			} else {
				assert.NotEqual(t, a, b)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"live", "write", "replay"} {
		mode, err := replay.ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(mode))
	}

	_, err := replay.ParseMode("offline")
	assert.Error(t, err)
}

func TestLiveModePassesThrough(t *testing.T) {
	cache, err := replay.New(replay.ModeLive, "")
	require.NoError(t, err)

	called := 0
	response, err := cache.Do("twitter", map[string]string{"endpoint": "timeline"}, func() ([]byte, error) {
		called++
		return []byte("payload"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), response)
	assert.Equal(t, 1, called)
}

func TestWriteThenReplay(t *testing.T) {
	root := t.TempDir()
	params := map[string]string{"endpoint": "timeline", "count": "50"}

	writer, err := replay.New(replay.ModeWrite, root)
	require.NoError(t, err)

	recorded, err := writer.Do("twitter", params, func() ([]byte, error) {
		return []byte(`{"data":[{"id":"1"}]}`), nil
	})
	require.NoError(t, err)

	// One record file per fingerprint.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, replay.Fingerprint("twitter", params)+".json", entries[0].Name())

	replayer, err := replay.New(replay.ModeReplay, root)
	require.NoError(t, err)

	replayed, err := replayer.Do("twitter", params, func() ([]byte, error) {
		t.Fatal("replay mode must not touch the network")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, recorded, replayed)
}

func TestReplayMissIsFatal(t *testing.T) {
	cache, err := replay.New(replay.ModeReplay, t.TempDir())
	require.NoError(t, err)

	called := false
	_, err = cache.Do("vk", map[string]string{"endpoint": "newsfeed.get"}, func() ([]byte, error) {
		called = true
		return []byte("live"), nil
	})

	assert.True(t, errors.Is(err, replay.ErrMiss))
	assert.False(t, called, "replay miss must not fall back to the network")
}

func TestWriteModeErrorsAreNotPersisted(t *testing.T) {
	root := t.TempDir()
	cache, err := replay.New(replay.ModeWrite, root)
	require.NoError(t, err)

	_, err = cache.Do("twitter", map[string]string{"endpoint": "timeline"}, func() ([]byte, error) {
		return nil, errors.New("upstream exploded")
	})
	require.Error(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteModeDirectoryCreationIsIdempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")

	_, err := replay.New(replay.ModeWrite, root)
	require.NoError(t, err)

	// Pre-existing directory is not an error.
	_, err = replay.New(replay.ModeWrite, root)
	require.NoError(t, err)
}

func TestNonLiveModesRequireRoot(t *testing.T) {
	_, err := replay.New(replay.ModeWrite, "")
	assert.Error(t, err)

	_, err = replay.New(replay.ModeReplay, "")
	assert.Error(t, err)
}
