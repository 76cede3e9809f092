package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/comfforts/logger"
)

func main() {
	l := logger.GetSlogLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, l)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
