// Package emitter renders the startup script sourced into (or evaluated
// by) the user's shell once activation succeeds. It is pure: given a
// shell dialect and an env diff, Render always produces the same text, no
// filesystem or process interaction involved.
package emitter

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"

	"github.com/arcadelabs/envctl/internal/envdiff"
)

// Shell identifies a shell dialect to render for.
type Shell string

const (
	Bash Shell = "bash"
	Zsh  Shell = "zsh"
	Fish Shell = "fish"
	Tcsh Shell = "tcsh"
)

// Args parameterizes a render: what changed in the environment, and what
// else the script should do once sourced.
type Args struct {
	Diff *envdiff.Diff

	// ActivateDDir, if non-empty, is a directory of dialect-specific
	// fragments to source after the env diff is applied (per-environment
	// customization hooks).
	ActivateDDir string

	// HookCommand, if non-empty, is run once after the environment and
	// activate.d fragments are in place.
	HookCommand string

	// SelfPath is this script's own path; if non-empty and
	// RemoveAfterRun is true, the script deletes itself as its last act.
	SelfPath       string
	RemoveAfterRun bool

	// PromptPrefix, if non-empty, is prepended to the shell prompt.
	PromptPrefix string
}

type renderVars struct {
	Args
	AddedKeys    []string
	ModifiedKeys []string
}

func (a Args) vars() renderVars {
	rv := renderVars{Args: a}
	if a.Diff != nil {
		rv.AddedKeys = sortedKeys(a.Diff.Added)
		rv.ModifiedKeys = sortedKeys(a.Diff.Modified)
	}
	return rv
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Render produces the startup script text for shell.
func Render(shell Shell, args Args) (string, error) {
	tmpl, ok := templates[shell]
	if !ok {
		return "", fmt.Errorf("emitter: unsupported shell %q", shell)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, args.vars()); err != nil {
		return "", fmt.Errorf("emitter: rendering %s script: %w", shell, err)
	}
	return buf.String(), nil
}

var funcMap = template.FuncMap{
	"shq": shellQuote,
}

var templates = map[Shell]*template.Template{
	Bash: template.Must(template.New("bash").Funcs(funcMap).Parse(bashTemplate)),
	Zsh:  template.Must(template.New("zsh").Funcs(funcMap).Parse(bashTemplate)), // zsh is bash-compatible for export/unset
	Fish: template.Must(template.New("fish").Funcs(funcMap).Parse(fishTemplate)),
	Tcsh: template.Must(template.New("tcsh").Funcs(funcMap).Parse(tcshTemplate)),
}

const bashTemplate = `# generated by envctl, do not edit
{{- range $k := .AddedKeys }}
export {{ $k }}={{ shq (index $.Diff.Added $k) }}
{{- end }}
{{- range $k := .ModifiedKeys }}
export {{ $k }}={{ shq (index $.Diff.Modified $k) }}
{{- end }}
{{- range .Diff.Deleted }}
unset {{ . }}
{{- end }}
{{- if .PromptPrefix }}
export PS1={{ shq .PromptPrefix }}"$PS1"
{{- end }}
{{- if .ActivateDDir }}
if [ -d {{ shq .ActivateDDir }} ]; then
  for _envctl_frag in {{ shq .ActivateDDir }}/*.bash; do
    [ -e "$_envctl_frag" ] && . "$_envctl_frag"
  done
  unset _envctl_frag
fi
{{- end }}
{{- if .HookCommand }}
{{ .HookCommand }}
{{- end }}
{{- if and .SelfPath .RemoveAfterRun }}
rm -f {{ shq .SelfPath }}
{{- end }}
`

const fishTemplate = `# generated by envctl, do not edit
{{- range $k := .AddedKeys }}
set -gx {{ $k }} {{ shq (index $.Diff.Added $k) }}
{{- end }}
{{- range $k := .ModifiedKeys }}
set -gx {{ $k }} {{ shq (index $.Diff.Modified $k) }}
{{- end }}
{{- range .Diff.Deleted }}
set -e {{ . }}
{{- end }}
{{- if .ActivateDDir }}
if test -d {{ shq .ActivateDDir }}
  for _envctl_frag in {{ shq .ActivateDDir }}/*.fish
    test -e "$_envctl_frag"; and source "$_envctl_frag"
  end
end
{{- end }}
{{- if .HookCommand }}
{{ .HookCommand }}
{{- end }}
{{- if and .SelfPath .RemoveAfterRun }}
rm -f {{ shq .SelfPath }}
{{- end }}
`

const tcshTemplate = `# generated by envctl, do not edit
{{- range $k := .AddedKeys }}
setenv {{ $k }} {{ shq (index $.Diff.Added $k) }}
{{- end }}
{{- range $k := .ModifiedKeys }}
setenv {{ $k }} {{ shq (index $.Diff.Modified $k) }}
{{- end }}
{{- range .Diff.Deleted }}
unsetenv {{ . }}
{{- end }}
{{- if .ActivateDDir }}
if ( -d {{ shq .ActivateDDir }} ) then
  foreach _envctl_frag ( {{ shq .ActivateDDir }}/*.tcsh )
    if ( -e "$_envctl_frag" ) source "$_envctl_frag"
  end
endif
{{- end }}
{{- if .HookCommand }}
{{ .HookCommand }}
{{- end }}
{{- if and .SelfPath .RemoveAfterRun }}
rm -f {{ shq .SelfPath }}
{{- end }}
`

// shellQuote wraps s in single quotes, escaping embedded single quotes the
// POSIX-portable way. This is deliberately conservative (no dialect-
// specific quoting rules) since single-quote escaping works identically
// in bash, zsh, fish, and tcsh.
func shellQuote(s string) string {
	var buf bytes.Buffer
	buf.WriteByte('\'')
	for _, r := range s {
		if r == '\'' {
			buf.WriteString(`'\''`)
		} else {
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('\'')
	return buf.String()
}
