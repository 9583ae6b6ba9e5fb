package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"visuallab/internal/api"
	"visuallab/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, formatCommandError(err))
		}
		os.Exit(1)
	}
}

// formatCommandError renders a failed command with a next step for the
// failures a user can act on.
func formatCommandError(err error) string {
	msg := "visuallab: " + err.Error()
	if api.IsUnavailable(err) {
		return msg + "\nhint: is the daemon running? start it with `visuallab serve`"
	}
	kind, ok := services.KindOf(err)
	if !ok {
		return msg
	}
	switch kind {
	case services.KindPrecondition:
		return msg + "\nhint: `visuallab status` lists the permitted actions"
	case services.KindConcurrentOperation:
		return msg + "\nhint: an operation of this kind is still running; follow it with `visuallab watch`"
	default:
		return msg
	}
}
