package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/plotmap/mapview"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	configPath := flag.String("config", "", "path to plotmap.yaml config file")
	sourceURL := flag.String("url", "", "plot source URL (overrides config)")
	sourceFile := flag.String("file", "", "local JSON plot file (overrides config)")
	flag.Parse()

	port := env("PORT", "8090")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// stdout belongs to the MCP stream in stdio mode.
	out := os.Stdout
	if mcpTransport == "stdio" {
		out = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg := &mapview.Config{}
	if *configPath != "" {
		var err error
		cfg, err = mapview.LoadConfigFile(*configPath)
		if err != nil {
			slog.Error("load config", "error", err)
			os.Exit(1)
		}
	}
	if v := firstNonEmpty(*sourceURL, os.Getenv("SOURCE_URL")); v != "" {
		cfg.Source.URL, cfg.Source.File = v, ""
	}
	if v := firstNonEmpty(*sourceFile, os.Getenv("SOURCE_FILE")); v != "" {
		cfg.Source.File, cfg.Source.URL = v, ""
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("POLL_INTERVAL", "error", err)
			os.Exit(1)
		}
		cfg.Poll.Interval = d
	}
	if v := os.Getenv("HISTORY_DB"); v != "" {
		cfg.History.Path = v
	}
	if os.Getenv("PLACEHOLDER") == "1" {
		cfg.Poll.Placeholder = true
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

	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "plotmap",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
			cancel()
		}()
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
