// Concord runs the agent coordination core from the command line.
//
// Executors are declared in the config file and answer with a rendered
// template, which makes the CLI a harness for trying decomposition,
// validation and policy settings without wiring real agents.
//
// Usage:
//
//	# Run one task
//	concord run "Review the auth and billing modules" --file auth.go --file billing.go
//
//	# Make a policy decision and execute it
//	concord decide --goal "Redesign onboarding" --complexity 8 --novelty --execute
//
//	# Render YAML and expose Prometheus metrics until interrupted
//	concord decide --goal "Ship the release" --output yaml --metrics-addr :9464
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
