package state_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/laruecivic/civic-intel/internal/state"
)

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	store := state.Load(filepath.Join(t.TempDir(), "none.json"), 100, zap.New(core))

	assert.Equal(t, 0, store.Size())
	assert.Equal(t, state.URLState{}, store.URL("https://example.org"))
	assert.Zero(t, logs.Len(), "a missing file is the normal first run, not a warning")
}

func TestLoadMalformedFileResetsWithWarning(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	core, logs := observer.New(zap.WarnLevel)
	store := state.Load(path, 100, zap.New(core))

	assert.Equal(t, 0, store.Size())
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "Malformed state file")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	logger := zap.NewNop()

	store := state.Load(path, 100, logger)
	store.MarkSeen("https://example.org/a", "wayback:1111")
	store.MarkSeen("https://example.org/a", "wayback:2222")
	store.Advance("https://example.org/a", "20210101000000", "deadbeef", "https://example.org/a/page")
	require.NoError(t, store.Save())

	reloaded := state.Load(path, 100, logger)
	st := reloaded.URL("https://example.org/a")
	assert.Equal(t, "20210101000000", st.LastProcessed)
	assert.Equal(t, "deadbeef", st.LastHash)
	assert.Equal(t, "https://example.org/a/page", st.LastOriginal)
	assert.True(t, reloaded.Seen("https://example.org/a", "wayback:1111"))
	assert.True(t, reloaded.Seen("https://example.org/a", "wayback:2222"))
	assert.False(t, reloaded.Seen("https://example.org/a", "wayback:3333"))
	assert.False(t, reloaded.Seen("https://example.org/b", "wayback:1111"))
}

func TestMarkSeenIsIdempotent(t *testing.T) {
	t.Parallel()

	store := state.Load(filepath.Join(t.TempDir(), "state.json"), 100, zap.NewNop())
	store.MarkSeen("u", "id")
	store.MarkSeen("u", "id")
	assert.Equal(t, 1, store.Size())
}

func TestAdvanceNeverRegresses(t *testing.T) {
	t.Parallel()

	store := state.Load(filepath.Join(t.TempDir(), "state.json"), 100, zap.NewNop())
	store.Advance("u", "20210101000000", "new", "https://example.org/new")
	store.Advance("u", "20200101000000", "old", "https://example.org/old")

	st := store.URL("u")
	assert.Equal(t, "20210101000000", st.LastProcessed)
	assert.Equal(t, "new", st.LastHash)
	assert.Equal(t, "https://example.org/new", st.LastOriginal)
}

func TestSaveTrimsSeenIDsToRetention(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	store := state.Load(path, 3, zap.NewNop())
	for i := 0; i < 5; i++ {
		store.MarkSeen("u", fmt.Sprintf("wayback:%04d", i))
	}
	require.NoError(t, store.Save())

	reloaded := state.Load(path, 3, zap.NewNop())
	assert.Equal(t, 3, reloaded.Size())
	assert.False(t, reloaded.Seen("u", "wayback:0000"))
	assert.False(t, reloaded.Seen("u", "wayback:0001"))
	assert.True(t, reloaded.Seen("u", "wayback:0002"))
	assert.True(t, reloaded.Seen("u", "wayback:0004"))
}

func TestSaveEmitsEmptySliceNotNull(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	store := state.Load(path, 100, zap.NewNop())
	store.Advance("u", "20210101000000", "hash", "u")
	require.NoError(t, store.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	seen, ok := decoded["u"]["seen_ids"]
	require.True(t, ok)
	assert.NotNil(t, seen)
	assert.IsType(t, []any{}, seen)
}
