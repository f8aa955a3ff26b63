package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/deviceguard/internal/buildinfo"
	"github.com/dmitrijs2005/deviceguard/internal/logging"
	"github.com/dmitrijs2005/deviceguard/internal/server"
	"github.com/dmitrijs2005/deviceguard/internal/server/config"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "configuration error:", r)
			os.Exit(2)
		}
	}()

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSON(os.Stdout, cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "collector init failed", "error", err)
		os.Exit(1)
	}

	app.Run(ctx)
}
