// Package main is the entry point for the doppel CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/corvid-labs/doppel/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
