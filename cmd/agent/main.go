package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/deviceguard/internal/agent/cli"
	"github.com/dmitrijs2005/deviceguard/internal/agent/config"
	"github.com/dmitrijs2005/deviceguard/internal/buildinfo"
	"github.com/dmitrijs2005/deviceguard/internal/flagx"
	"github.com/dmitrijs2005/deviceguard/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "configuration error:", r)
			code = 2
		}
	}()

	buildinfo.PrintBuildData(os.Stderr)

	cfg := config.LoadConfig()
	log := logging.NewText(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "agent init failed", "error", err)
		return 1
	}

	return app.Run(ctx, flagx.Positional(os.Args[1:], config.ValueFlags))
}
