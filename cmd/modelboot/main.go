package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"modelboot/internal/cli"
)

func main() {
	// Cancels the sequence before hand-off. A spawned server gets signals
	// from the hand-off forwarder instead.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
