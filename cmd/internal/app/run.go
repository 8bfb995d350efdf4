package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/linechat. args excludes the program name.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run(args []string) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	log := NewLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
