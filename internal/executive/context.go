package executive

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arcadelabs/envctl/internal/state"
)

// ContextFile is written by the Driver to a temp path before forking the
// Executive, and is the only way the two processes exchange arguments:
// everything the Executive needs to know is in this file rather than on
// its argv, so the Executive's own process listing stays free of
// environment-specific paths.
type ContextFile struct {
	ActivationDir      string    `json:"activation_dir"`
	Mode               state.Mode `json:"mode"`
	ServicesSocketPath string    `json:"services_socket_path,omitempty"`
	Verbosity          int       `json:"verbosity"`
}

// WriteContextFile serializes ctx to path.
func WriteContextFile(path string, ctx *ContextFile) error {
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling executive context: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// ReadAndDeleteContextFile reads ctx from path and removes it: the
// Executive consumes its context exactly once at startup so a stale file
// left behind by a crash can't be picked up by an unrelated later process.
func ReadAndDeleteContextFile(path string) (*ContextFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading executive context: %w", err)
	}
	defer os.Remove(path) //nolint:errcheck

	var ctx ContextFile
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("parsing executive context: %w", err)
	}
	return &ctx, nil
}
