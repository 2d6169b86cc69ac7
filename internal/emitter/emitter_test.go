package emitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcadelabs/envctl/internal/envdiff"
)

func TestRender_Bash(t *testing.T) {
	out, err := Render(Bash, Args{
		Diff: &envdiff.Diff{
			Added:   map[string]string{"FOO": "bar"},
			Deleted: []string{"STALE"},
		},
		PromptPrefix: "(env) ",
	})
	require.NoError(t, err)
	require.Contains(t, out, "export FOO='bar'")
	require.Contains(t, out, "unset STALE")
	require.Contains(t, out, "export PS1='(env) '")
}

func TestRender_Fish(t *testing.T) {
	out, err := Render(Fish, Args{
		Diff: &envdiff.Diff{Added: map[string]string{"FOO": "bar"}},
	})
	require.NoError(t, err)
	require.Contains(t, out, "set -gx FOO 'bar'")
}

func TestRender_SelfDeleteTrailer(t *testing.T) {
	out, err := Render(Bash, Args{
		Diff:           &envdiff.Diff{},
		SelfPath:       "/tmp/rc.bash",
		RemoveAfterRun: true,
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(strings.TrimSpace(out), "rm -f '/tmp/rc.bash'"))
}

func TestRender_UnsupportedShell(t *testing.T) {
	_, err := Render(Shell("powershell"), Args{Diff: &envdiff.Diff{}})
	require.Error(t, err)
}

func TestShellQuote_EscapesEmbeddedQuote(t *testing.T) {
	require.Equal(t, `'it'\''s'`, shellQuote("it's"))
}
