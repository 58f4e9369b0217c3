package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCommand().Execute(); err != nil {
		// A cancelled context means the daemon or a follow-mode command
		// was interrupted; the signal already told the user why.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "herald:", err)
		}
		return 1
	}
	return 0
}
