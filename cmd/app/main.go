package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"Volatile/internal/di"
	"Volatile/internal/service/yahoo"
	"Volatile/internal/services/features"
	"Volatile/internal/services/trend"
	"Volatile/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "config file path (defaults only when empty)")
	symbols := flag.String("symbols", "", "comma or space separated symbols, overrides the config")
	rank := flag.String("rank", "", "rank stocks by 'rate' or 'growth'")
	serve := flag.Bool("serve", false, "keep serving the estimation over HTTP")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *symbols != "" {
		cfg.Source.Symbols = config.SplitList(*symbols)
	}
	if *rank != "" {
		cfg.Rank = strings.ToLower(*rank)
	}
	if *serve {
		cfg.Server.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	tickers, err := cfg.ResolveSymbols()
	if err != nil {
		log.Fatalf("symbols: %v", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = app.Run(ctx, tickers)
	stop()
	cleanup()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		log.Printf("interrupted")
		os.Exit(130)
	case errors.Is(err, yahoo.ErrNoSeries), errors.Is(err, features.ErrNoData):
		log.Printf("no usable price data for %d symbols: %v", len(tickers), err)
		os.Exit(2)
	case errors.Is(err, trend.ErrDivergence):
		log.Printf("training diverged, try a smaller learning rate: %v", err)
		os.Exit(1)
	default:
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
