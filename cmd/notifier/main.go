package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bmhenry/classy-slack-notifier/internal/app"
)

func main() {
	var cfgPath, logLevel string
	flag.StringVar(&cfgPath, "config", "", "path to config yaml (default: ~/.config/classy-slack-notifier/config.yaml)")
	flag.StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	flag.Parse()

	// Slack tokens may live in a local .env during development.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	<-ctx.Done()
	_ = a.Stop(context.Background())
}
