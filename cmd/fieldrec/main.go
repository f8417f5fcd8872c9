package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"fieldrec/internal/recorder"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	// A recorder's watchdog may still be blocked on stdin; exiting here is
	// the forced exit after orderly joins.
	os.Exit(recorder.ExitCode(err))
}
