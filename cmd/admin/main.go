package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"trueface/internal/attendance"
	"trueface/internal/config"
	"trueface/internal/store"
)

func main() {
	root := newRootCmd(openService)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openService opens the configured medium without simulated latency.
func openService(ctx context.Context) (*attendance.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	medium, err := store.OpenMedium(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return attendance.Open(medium, attendance.Options{
		AllowDuplicateEmails: !cfg.UniqueEmails,
		Logger:               zap.NewNop(),
	}), nil
}
