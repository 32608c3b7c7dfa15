// Package main provides the archiver CLI, which logs into the Enrollware
// admin console and archives every location that can still be archived.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	cmd := newRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// Run failures are already reported by the logger.
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
