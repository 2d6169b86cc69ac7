package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	s := New(ModeDev)
	s.ExecutivePID = 42
	s.AttachedPids[7] = Attachment{StartID: StartIdentifier{StorePath: "/nix/store/x", Timestamp: 1}}

	unlock, err := store.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Write(s))
	require.NoError(t, unlock())

	unlock, err = store.Lock(context.Background())
	require.NoError(t, err)
	defer unlock() //nolint:errcheck

	got, err := store.Read()
	require.NoError(t, err)
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_ReadOrNew_MissingFileReturnsFresh(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	s, err := store.ReadOrNew(ModeRun)
	require.NoError(t, err)
	require.Equal(t, ModeRun, s.Mode)
	require.Equal(t, LatestVersion, s.Version)
}

func TestStore_CheckVersion(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir()))

	current := New(ModeDev)
	require.NoError(t, store.CheckVersion(current))

	stale := New(ModeDev)
	stale.Version = LatestVersion - 1
	require.NoError(t, store.CheckVersion(stale), "no attached pids means stale version is harmless")

	stale.AttachedPids[123] = Attachment{StartID: StartIdentifier{StorePath: "x", Timestamp: 1}}
	err := store.CheckVersion(stale)
	require.Error(t, err)
}
