package tools

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "registry.json")

	s := NewStore(path)
	require.NoError(t, s.Load())
	assert.Empty(t, s.Names())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.Set(Registration{Name: "nmap", CommandTemplate: "nmap {input} -oX {output}", InputMode: InputTarget, OutputMode: OutputXML, RegisteredAt: at})
	require.NoError(t, s.Save())
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	reloaded := NewStore(path)
	require.NoError(t, reloaded.Load())
	got, ok := reloaded.Get("nmap")
	require.True(t, ok)
	assert.Equal(t, OutputXML, got.OutputMode)
	assert.True(t, at.Equal(got.RegisteredAt))
}

func TestStoreRejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.json")
	require.NoError(t, os.WriteFile(target, []byte(`{"tools":{}}`), 0o600))
	link := filepath.Join(dir, "registry.json")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	s := NewStore(link)
	assert.Error(t, s.Load())
	assert.Error(t, s.Save())
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	assert.Error(t, NewStore(path).Load())
}

func TestStoreLoadReplacesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	s := NewStore(path)
	s.Set(Registration{Name: "stale"})
	require.NoError(t, s.Load())
	_, ok := s.Get("stale")
	assert.False(t, ok)
}
