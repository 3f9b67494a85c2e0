package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"jellywatch/internal/config"
	"jellywatch/internal/daemonrun"
)

func main() {
	if err := run(context.Background(), os.Getenv("JELLYWATCH_CONFIG")); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads configuration from configPath (or the default locations when
// empty) and runs the daemon until ctx ends or a signal arrives.
func run(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return daemonrun.Run(ctx, cfg, daemonrun.Options{})
}
