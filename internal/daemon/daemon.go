package daemon

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Config holds daemon runtime parameters.
type Config struct {
	Inbox        string
	Outbox       string
	Workers      int
	Debounce     time.Duration
	PollMode     bool
	PollInterval time.Duration
}

// Daemon wires the inbox watcher to the job processor.
type Daemon struct {
	cfg       Config
	processor *Processor
}

// New creates a daemon over the given engine services.
func New(cfg Config, services Services) *Daemon {
	return &Daemon{
		cfg:       cfg,
		processor: NewProcessor(cfg.Outbox, services),
	}
}

// Run creates the inbox/outbox directories, drains any jobs that
// arrived while the daemon was down, then watches the inbox until the
// context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	for _, dir := range []string{d.cfg.Inbox, d.cfg.Outbox} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("daemon: create %s: %w", dir, err)
		}
	}

	handler := func(path string) {
		if err := d.processor.Process(ctx, path); err != nil {
			fmt.Fprintf(os.Stderr, "daemon: process %s: %v\n", path, err)
		}
	}

	if err := ScanExisting(d.cfg.Inbox, handler); err != nil {
		return fmt.Errorf("daemon: scan existing: %w", err)
	}

	if d.cfg.PollMode {
		pw := NewPollWatcher(d.cfg.Inbox, handler, d.cfg.PollInterval)
		return pw.Run(ctx)
	}

	watcher := NewInboxWatcher(d.cfg.Inbox, handler, d.cfg.Workers, d.cfg.Debounce)
	return watcher.Run(ctx)
}
