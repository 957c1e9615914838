// ./main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/wayfarer-cli/cmd"
)

// main is the entry point for the wayfarer CLI application.
func main() {
	// Ctrl-C cancels the run context so the browser and loop unwind cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.ExecuteContext(ctx)
}
