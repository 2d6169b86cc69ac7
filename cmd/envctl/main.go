// Command envctl manages the activation lifecycle of development
// environments: resolving and building them, supervising attached
// shells, and emitting the startup script each shell sources.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/arcadelabs/envctl/internal/cmd"
)

func main() {
	root := cmd.NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "envctl:", err)
		os.Exit(1)
	}
}
