// Command hive is the HabitHive client: profile, community posts and habit
// tasks, kept in a remote document store and mirrored to a local database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/habithive/internal/app"
	"github.com/and161185/habithive/internal/errs"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&cli{open: app.Open})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalid):
		return 2
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrRateLimited):
		return 3
	case errors.Is(err, errs.ErrNotFound):
		return 4
	default:
		return 1
	}
}
