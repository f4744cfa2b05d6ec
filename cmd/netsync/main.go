package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// exitFunc is swapped out by tests.
var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		exitFunc(1)
	}
}
