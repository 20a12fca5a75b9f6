// Command quantlab backtests trading strategies and optimizes portfolios
// from the command line.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"

	"strategy-lab/internal/app"
	"strategy-lab/internal/cli"
)

func main() {
	// Load .env file if exists
	app.LoadEnvFile(".env")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	cli.Register(commander)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
