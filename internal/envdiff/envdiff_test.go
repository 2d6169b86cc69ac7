package envdiff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env_diff.added"), []byte("FOO=bar\nBAZ=qux\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env_diff.modified"), []byte("PATH=/new/path\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env_diff.deleted"), []byte("OLDVAR\n"), 0644))

	diff, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "bar", diff.Added["FOO"])
	require.Equal(t, "qux", diff.Added["BAZ"])
	require.Equal(t, "/new/path", diff.Modified["PATH"])
	require.Equal(t, []string{"OLDVAR"}, diff.Deleted)
}

func TestLoad_MissingFilesAreEmpty(t *testing.T) {
	dir := t.TempDir()
	diff, err := Load(dir)
	require.NoError(t, err)
	require.Empty(t, diff.Added)
	require.Empty(t, diff.Modified)
	require.Empty(t, diff.Deleted)
}
