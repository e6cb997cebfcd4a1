package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_MissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "bot_state.json"))
	require.NoError(t, err)
	_, ok := s.Load().Baseline()
	assert.False(t, ok)
}

func TestStore_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot_state.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveBaseline(1234.5))

	v, ok := s.Load().Baseline()
	require.True(t, ok)
	assert.Equal(t, 1234.5, v)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	v, ok = reopened.Load().Baseline()
	require.True(t, ok)
	assert.Equal(t, 1234.5, v)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"smart_baseline": 1234.5}`, string(data))
}

func TestStore_IdempotentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot_state.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.SaveBaseline(1000))
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveBaseline(1000))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestStore_NullAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	nullPath := filepath.Join(dir, "null.json")
	require.NoError(t, os.WriteFile(nullPath, []byte(`{"smart_baseline": null}`), 0o644))
	s, err := Open(nullPath)
	require.NoError(t, err)
	_, ok := s.Load().Baseline()
	assert.False(t, ok)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{not json`), 0o644))
	s, err = Open(badPath)
	assert.Error(t, err)
	require.NotNil(t, s)
	_, ok = s.Load().Baseline()
	assert.False(t, ok)
}

func TestStore_ClosedRejectsWrites(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Error(t, s.SaveBaseline(1))
}
