package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/plotmap/mapview"
)

func main() {
	configPath := flag.String("config", "", "path to plotmap.yaml config file")
	sourceURL := flag.String("url", "", "plot source URL (overrides config)")
	sourceFile := flag.String("file", "", "local JSON plot file (overrides config)")
	logPath := flag.String("log", "", "write JSON logs to this file (default: discard)")
	flag.Parse()

	// The terminal belongs to the UI; logs go to a file or nowhere.
	logOut := os.DevNull
	if *logPath != "" {
		logOut = *logPath
	}
	lf, err := os.OpenFile(logOut, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Error("open log", "error", err)
		os.Exit(1)
	}
	defer lf.Close()
	logger := slog.New(slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := &mapview.Config{}
	if *configPath != "" {
		cfg, err = mapview.LoadConfigFile(*configPath)
		if err != nil {
			slog.Error("load config", "error", err)
			os.Exit(1)
		}
	}
	if *sourceURL != "" {
		cfg.Source.URL, cfg.Source.File = *sourceURL, ""
	}
	if *sourceFile != "" {
		cfg.Source.File, cfg.Source.URL = *sourceFile, ""
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := mapview.New(cfg, mapview.WithLogger(logger))
	if err != nil {
		slog.Error("plotmap service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()
	svc.Start(ctx)

	p := tea.NewProgram(NewModel(ctx, svc), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		slog.Error("tui", "error", err)
		os.Exit(1)
	}
}
