package executive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcadelabs/envctl/internal/logging"
	"github.com/arcadelabs/envctl/internal/state"
)

type countingServices struct {
	starts int
}

func (c *countingServices) StartServices(context.Context) error {
	c.starts++
	return nil
}

func newTestExecutive(t *testing.T) (*Executive, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "activation")
	require.NoError(t, os.MkdirAll(dir, 0755))
	store := state.NewStore(dir)
	engine := state.NewEngine()
	ex := New(store, engine, logging.Discard(), nil)
	return ex, dir
}

func TestCleanupAll_RemovesActivationDirectory(t *testing.T) {
	ex, dir := newTestExecutive(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{}"), 0644))

	require.NoError(t, ex.cleanupAll(context.Background()))

	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

func TestCleanupAll_MissingDirectoryIsNotAnError(t *testing.T) {
	ex, dir := newTestExecutive(t)
	require.NoError(t, os.RemoveAll(dir))

	require.NoError(t, ex.cleanupAll(context.Background()))
}

func TestHandleStartServices_IsIdempotent(t *testing.T) {
	ex, _ := newTestExecutive(t)
	svc := &countingServices{}
	ex.Services = svc

	ex.handleStartServices(context.Background())
	ex.handleStartServices(context.Background())
	ex.handleStartServices(context.Background())

	require.Equal(t, 1, svc.starts)
}
