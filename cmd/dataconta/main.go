package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"dataconta/cmd/dataconta/cmd"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()

	os.Exit(cmd.NewCLIErrorHandler(os.Stderr, cmd.Verbose()).HandleError(err))
}
