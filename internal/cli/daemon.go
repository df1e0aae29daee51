package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/policypulse/policypulse/internal/daemon"
)

var daemonPoll bool

func init() {
	daemonCmd.Flags().BoolVar(&daemonPoll, "poll", false, "poll the inbox instead of using filesystem events")
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the inbox/outbox job daemon",
	Long:  "Watches the inbox directory for JSON job files (scan, remediate,\norchestrate, predict, advise), runs them against the engine, and\nwrites results to the outbox.",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	d := daemon.New(daemon.Config{
		Inbox:        app.cfg.Daemon.InboxDir,
		Outbox:       app.cfg.Daemon.OutboxDir,
		Workers:      app.cfg.Daemon.Workers,
		Debounce:     time.Duration(app.cfg.Daemon.DebounceMS) * time.Millisecond,
		PollMode:     daemonPoll || app.cfg.Daemon.PollMode,
		PollInterval: time.Duration(app.cfg.Daemon.PollIntervalMS) * time.Millisecond,
	}, daemon.Services{
		Scan:         app.scan,
		Agent:        app.agent,
		Orchestrator: app.orchestrator,
		Predictor:    app.predictor,
		Advisor:      app.advisor,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down daemon...")
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "policypulse daemon watching %s\n", app.cfg.Daemon.InboxDir)
	return d.Run(ctx)
}
