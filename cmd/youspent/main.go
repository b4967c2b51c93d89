package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"youspent/internal/cli"
	"youspent/internal/commands"
)

func main() {
	cli.LoadEnvFile()

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	open := func(ctx context.Context) (*cli.App, error) {
		cfg, err := cli.LoadAndValidateConfig()
		if err != nil {
			return nil, err
		}
		logger, err := cli.SetupLogger(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		return cli.Open(ctx, cfg, logger, prometheus.DefaultRegisterer)
	}

	if err := commands.NewRootCommand(open).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
