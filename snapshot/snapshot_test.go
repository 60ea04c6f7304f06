package snapshot_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avastar/GraftNetwork/snapshot"
)

type payload struct {
	Values []uint64
	Name   string
}

func TestStoreLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := snapshot.Filename(dir, "example", 1)

	in := payload{Values: []uint64{1, 2, 3}, Name: "hello"}
	require.NoError(t, snapshot.Store(path, 1, in))
	require.True(t, snapshot.Exists(path))

	var out payload
	require.NoError(t, snapshot.Load(path, 1, &out))
	require.Equal(t, in, out)
}

func TestLoadVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := snapshot.Filename(dir, "example", 1)

	require.NoError(t, snapshot.Store(path, 1, payload{Name: "v1"}))

	var out payload
	err := snapshot.Load(path, 2, &out)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.bin")
	require.False(t, snapshot.Exists(path))

	var out payload
	err := snapshot.Load(path, 1, &out)
	require.Error(t, err)
}

func TestStoreIsAtomicNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := snapshot.Filename(dir, "example", 1)
	require.NoError(t, snapshot.Store(path, 1, payload{Name: "v1"}))

	entries, err := filepathGlobTmp(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "no leftover temp files after a successful Store")
}

func filepathGlobTmp(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.tmp-*"))
}
