package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/maltedev/product-extractor/internal/app"
	"github.com/maltedev/product-extractor/internal/config"
	"github.com/maltedev/product-extractor/internal/logging"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(func(ctx context.Context, verbose bool) (Pipeline, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}

		level := "warn"
		if verbose {
			level = "debug"
		}
		logger := logging.New(os.Stderr, level, "text")

		application, err := app.New(ctx, cfg, logger, prometheus.NewRegistry())
		if err != nil {
			return nil, nil, err
		}
		return application.Service, application.Close, nil
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
