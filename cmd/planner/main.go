// Command planner plans trips from the command line and writes the itinerary
// as Markdown and JSON.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kjstillabower/travel-planner/internal/validation"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(defaultDeps(), os.Stdin, os.Stdout)
	err := cmd.Run(ctx, os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return exitCode(err)
}

// exitCode is 2 for rejected input and 1 for any other failure.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case validation.IsInvalid(err):
		return 2
	default:
		return 1
	}
}
