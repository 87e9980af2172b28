// Command prontodb is the ProntoDB command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/roach88/prontodb/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ll := &slog.LevelVar{}
	ll.Set(slog.LevelWarn)
	slog.SetDefault(slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	err := cli.NewRootCommand(cli.WithLogLevel(ll)).ExecuteContext(ctx)

	// Commands report their own failures; anything else (flag parsing,
	// argument counts) is printed here.
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "prontodb:", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
