package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/arcadelabs/envctl/internal/apperr"
	"github.com/arcadelabs/envctl/internal/emitter"
	"github.com/arcadelabs/envctl/internal/envdiff"
)

// invoke renders the startup script for buildDir and, depending on
// req.Invocation, either execs a process in place (never returning) or
// returns the script text for the caller to emit. activeEnvironments, when
// non-empty, is the updated FLOX_ACTIVE_ENVIRONMENTS value to export into
// the activated shell (empty in profile-only re-activations, which must
// not push onto the list again).
func (d *Driver) invoke(req Request, buildDir, activeEnvironments string) (string, error) {
	diff, err := envdiff.Load(buildDir)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOFatal, "loading environment diff", err)
	}

	dialect := dialectOf(req.Shell)
	if dialect == "" {
		dialect = "bash"
	}
	shell := emitter.Shell(dialect)

	switch req.Invocation {
	case Interactive:
		if activeEnvironments != "" {
			os.Setenv("FLOX_ACTIVE_ENVIRONMENTS", activeEnvironments) //nolint:errcheck
		}
		script, err := emitter.Render(shell, emitter.Args{Diff: diff})
		if err != nil {
			return "", apperr.Wrap(apperr.KindShellExecFailed, "rendering startup script", err)
		}
		return "", execShellWithScript(req.Shell, script)

	case ShellCommand:
		if activeEnvironments != "" {
			os.Setenv("FLOX_ACTIVE_ENVIRONMENTS", activeEnvironments) //nolint:errcheck
		}
		script, err := emitter.Render(shell, emitter.Args{Diff: diff})
		if err != nil {
			return "", apperr.Wrap(apperr.KindShellExecFailed, "rendering startup script", err)
		}
		return "", execShellCommand(req.Shell, script, req.Command)

	case ExecCommand:
		if activeEnvironments != "" {
			os.Setenv("FLOX_ACTIVE_ENVIRONMENTS", activeEnvironments) //nolint:errcheck
		}
		if err := applyDiffToEnv(diff); err != nil {
			return "", apperr.Wrap(apperr.KindShellExecFailed, "applying environment diff", err)
		}
		if len(req.ExecArgs) == 0 {
			return "", apperr.New(apperr.KindShellExecFailed, "exec invocation requires a command")
		}
		return "", execDirect(req.ExecArgs)

	case InPlace:
		script, err := emitter.Render(shell, emitter.Args{
			Diff:           diff,
			RemoveAfterRun: true,
		})
		if err != nil {
			return "", apperr.Wrap(apperr.KindShellExecFailed, "rendering startup script", err)
		}
		// The in-place script is eval'd by the caller's own shell, not
		// exec'd by us, so the active-environments export has to travel as
		// text rather than via os.Setenv.
		if activeEnvironments != "" {
			script = fmt.Sprintf("export FLOX_ACTIVE_ENVIRONMENTS=%s\n%s", shellQuote(activeEnvironments), script)
		}
		return script, nil

	default:
		return "", fmt.Errorf("driver: unknown invocation mode %d", req.Invocation)
	}
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 30 * time.Second
	}
	return ttl
}

// dialectOf maps a shell path/name to one of the four supported dialects,
// falling back to "" (treated like bash) for anything unrecognized.
func dialectOf(shell string) string {
	switch base := filepath.Base(shell); base {
	case "bash", "zsh", "fish", "tcsh":
		return base
	default:
		return ""
	}
}

// execShellWithScript writes script to a per-dialect rc location and execs
// the interactive shell with the flags that make it source that location,
// replacing the current process image. It never returns on success.
func execShellWithScript(shell, script string) error {
	switch dialectOf(shell) {
	case "zsh":
		zdotdir, err := writeDotDir(script, ".zshrc")
		if err != nil {
			return err
		}
		os.Setenv("ZDOTDIR", zdotdir) //nolint:errcheck
		return syscall.Exec(lookPath(shell), []string{shell, "-i"}, os.Environ())

	case "fish":
		rc, err := writeTempScript(script)
		if err != nil {
			return err
		}
		argv := []string{shell, "--init-command", "source " + shellQuote(rc), "-i"}
		return syscall.Exec(lookPath(shell), argv, os.Environ())

	case "tcsh":
		home, err := writeDotDir(script, ".tcshrc")
		if err != nil {
			return err
		}
		os.Setenv("HOME", home) //nolint:errcheck
		return syscall.Exec(lookPath(shell), []string{shell, "-i"}, os.Environ())

	default: // bash, or an unrecognized dialect treated as bash-compatible
		rc, err := writeTempScript(script)
		if err != nil {
			return err
		}
		argv := []string{shell, "--noprofile", "--rcfile", rc, "-i"}
		return syscall.Exec(lookPath(shell), argv, os.Environ())
	}
}

// execShellCommand runs cmd in a shell that has sourced script first, then
// exits, replacing the current process image.
func execShellCommand(shell, script, cmd string) error {
	switch dialectOf(shell) {
	case "zsh":
		// .zshenv is sourced for every zsh invocation, interactive or not,
		// unlike .zshrc which only non-interactive -c shells skip.
		zdotdir, err := writeDotDir(script, ".zshenv")
		if err != nil {
			return err
		}
		os.Setenv("ZDOTDIR", zdotdir) //nolint:errcheck
		return syscall.Exec(lookPath(shell), []string{shell, "-c", cmd}, os.Environ())

	case "fish":
		rc, err := writeTempScript(script)
		if err != nil {
			return err
		}
		argv := []string{shell, "--init-command", "source " + shellQuote(rc), "-c", cmd}
		return syscall.Exec(lookPath(shell), argv, os.Environ())

	case "tcsh":
		home, err := writeDotDir(script, ".tcshrc")
		if err != nil {
			return err
		}
		os.Setenv("HOME", home) //nolint:errcheck
		return syscall.Exec(lookPath(shell), []string{shell, "-c", cmd}, os.Environ())

	default:
		// bash ignores --rcfile for non-interactive -c shells, so the
		// script has to reach bash as piped stdin instead: bash with no
		// -c and a non-tty stdin reads and runs its stdin as a script,
		// letting us source the rc then run cmd in the same shell.
		return execBashCommandViaStdin(shell, script, cmd)
	}
}

// execBashCommandViaStdin wires "source '<rc>' && <cmd>" into the exec'd
// bash's stdin through a pipe: we write and close the pipe's write end
// before exec, then dup2 the read end onto fd 0, so no separate process is
// needed to feed it.
func execBashCommandViaStdin(shell, script, cmd string) error {
	rc, err := writeTempScript(script)
	if err != nil {
		return err
	}

	r, w, err := os.Pipe()
	if err != nil {
		return err
	}
	payload := fmt.Sprintf("source %s && %s\n", shellQuote(rc), cmd)
	if _, err := w.WriteString(payload); err != nil {
		w.Close() //nolint:errcheck
		r.Close() //nolint:errcheck
		return err
	}
	if err := w.Close(); err != nil {
		r.Close() //nolint:errcheck
		return err
	}

	if err := syscall.Dup2(int(r.Fd()), 0); err != nil {
		r.Close() //nolint:errcheck
		return err
	}
	r.Close() //nolint:errcheck

	return syscall.Exec(lookPath(shell), []string{shell}, os.Environ())
}

// writeDotDir creates a fresh temp directory containing a single rc file
// (name) with script as its content, for shells selected into a scratch
// home/ZDOTDIR via an environment variable rather than a command-line flag.
func writeDotDir(script, name string) (string, error) {
	dir, err := os.MkdirTemp("", "envctl-dotdir-*")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0600); err != nil {
		return "", err
	}
	return dir, nil
}

// execDirect execs args[0] with args[1:], replacing the current process
// image.
func execDirect(args []string) error {
	return syscall.Exec(lookPath(args[0]), args, os.Environ())
}

func applyDiffToEnv(diff *envdiff.Diff) error {
	for k, v := range diff.Added {
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	for k, v := range diff.Modified {
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	for _, k := range diff.Deleted {
		if err := os.Unsetenv(k); err != nil {
			return err
		}
	}
	return nil
}

func writeTempScript(script string) (string, error) {
	f, err := os.CreateTemp("", "envctl-rc-*.sh")
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck
	if _, err := f.WriteString(script); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func lookPath(name string) string {
	if p, err := execLookPath(name); err == nil {
		return p
	}
	return name
}

// shellQuote single-quotes s for embedding in a generated POSIX-family
// script, the same conservative escaping the emitter package uses.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
