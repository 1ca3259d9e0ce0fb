package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/pickem/internal/dragsim"
	"github.com/okian/pickem/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dragsim.NewApp(logger.Named("dragsim")).RunContext(ctx, os.Args); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}
