package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/arcadelabs/envctl/internal/config"
	"github.com/arcadelabs/envctl/internal/logging"
	"github.com/arcadelabs/envctl/internal/state"
)

type fakeBuilder struct {
	buildDir string
	builds   int
}

func (f *fakeBuilder) Resolve(ctx context.Context, dotFloxPath string, mode state.Mode) (string, error) {
	return "/nix/store/fake-" + dotFloxPath, nil
}

func (f *fakeBuilder) Build(ctx context.Context, storePath string, mode state.Mode) (string, error) {
	f.builds++
	return f.buildDir, nil
}

type fakeSpawner struct{ spawned int }

func (f *fakeSpawner) Spawn(ctx context.Context, activationDir string, mode state.Mode) (int, error) {
	f.spawned++
	return 1000 + f.spawned, nil
}

type fakeHook struct{ ran int }

func (f *fakeHook) RunOnActivate(ctx context.Context, buildDir string) error {
	f.ran++
	return nil
}

func TestActivate_InPlace_FirstActivationRendersScript(t *testing.T) {
	runtimeDir := t.TempDir()
	buildDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(buildDir, "env_diff.added"), []byte("FOO=bar\n"), 0644))

	builder := &fakeBuilder{buildDir: buildDir}
	spawner := &fakeSpawner{}
	hook := &fakeHook{}

	d := &Driver{
		RuntimeDir: runtimeDir,
		Builder:    builder,
		Executive:  spawner,
		Hook:       hook,
		Config:     &config.EnvConfig{},
		Log:        logging.Discard(),
	}

	script, err := d.Activate(context.Background(), Request{
		DotFloxPath: filepath.Join(t.TempDir(), ".flox"),
		Mode:        state.ModeDev,
		Invocation:  InPlace,
		Shell:       "bash",
	})

	require.NoError(t, err)
	require.Contains(t, script, "export FOO='bar'")
	require.Equal(t, 1, builder.builds)
	require.Equal(t, 1, spawner.spawned)
	require.Equal(t, 1, hook.ran)
}

func TestActivate_InPlace_SecondCallerAttachesWithoutRespawningExecutive(t *testing.T) {
	runtimeDir := t.TempDir()
	buildDir := t.TempDir()

	builder := &fakeBuilder{buildDir: buildDir}
	spawner := &fakeSpawner{}
	hook := &fakeHook{}

	d := &Driver{
		RuntimeDir: runtimeDir,
		Builder:    builder,
		Executive:  spawner,
		Hook:       hook,
		Config:     &config.EnvConfig{},
		Log:        logging.Discard(),
		Engine:     &state.Engine{Clock: clockwork.NewRealClock(), IsAlive: func(int) bool { return true }},
	}

	dotFlox := filepath.Join(t.TempDir(), ".flox")

	_, err := d.Activate(context.Background(), Request{
		DotFloxPath: dotFlox,
		Mode:        state.ModeDev,
		Invocation:  InPlace,
		Shell:       "bash",
	})
	require.NoError(t, err)
	require.Equal(t, 1, builder.builds)
	require.Equal(t, 1, spawner.spawned)

	_, err = d.Activate(context.Background(), Request{
		DotFloxPath: dotFlox,
		Mode:        state.ModeDev,
		Invocation:  InPlace,
		Shell:       "bash",
	})
	require.NoError(t, err)
	require.Equal(t, 2, builder.builds, "attach still calls the idempotent Build to learn the build dir")
	require.Equal(t, 1, spawner.spawned, "attaching to a running executive must not respawn it")
}
