// Binary tui runs a negotiation overlay in the terminal. Keys stand in for page
// engagement (scrolling, leaving, clicking checkout) until the overlay reveals.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"haggle-go/internal/analytics"
	"haggle-go/internal/config"
	"haggle-go/internal/loop"
	"haggle-go/internal/negotiation"
	"haggle-go/internal/overlay"
	"haggle-go/internal/util"
)

const (
	defaultConfigPath = "internal/config/config.yaml"
	logPath           = "tmp/tui.log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	path := defaultConfigPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	log := util.NewConsoleLogger(logFile, cfg.App.LogLevel)

	sink, err := analytics.Open(cfg.Analytics, log)
	if err != nil {
		return err
	}
	var opts []negotiation.Option
	if sink != nil {
		async := analytics.NewAsync(sink, cfg.Analytics.QueueSize, log)
		defer async.Close()
		opts = append(opts, negotiation.WithNotifier(async))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// timers fire on runtime goroutines and are replayed inside Update
	var prog *tea.Program
	sched := loop.Deferred(func(fn func()) { prog.Send(runMsg{fn: fn}) })

	ov, err := overlay.New(ctx, overlay.FromConfig(cfg), sched, log, opts...)
	if err != nil {
		return err
	}
	defer ov.Close()

	prog = tea.NewProgram(newModel(ov), tea.WithAltScreen(), tea.WithContext(ctx))
	ov.Start()
	log.Info().Str("session", ov.SessionID()).Msg("terminal overlay started")

	if _, err := prog.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run program: %w", err)
	}
	log.Info().Str("state", string(ov.Machine().State())).Msg("terminal overlay closed")
	return nil
}
