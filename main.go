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

	"harvestbot/internal/api"
	"harvestbot/internal/chat"
	"harvestbot/internal/config"
	"harvestbot/internal/database"
	"harvestbot/internal/harvest"
	"harvestbot/internal/llm"
	"harvestbot/internal/mail"
	"harvestbot/internal/report"
	"harvestbot/internal/sched"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	loc := cfg.GetTimezone()
	slog.Info("local time", "time", time.Now().In(loc).Format(time.RFC3339))

	// Harvest client is optional at startup; without credentials the service
	// still answers chat small talk and serves stored drafts.
	var provider report.Provider
	var tester api.ConnectionTester
	if cfg.Configured() {
		hc := harvest.NewClient(cfg.Harvest.AccountID, cfg.Harvest.Token)
		provider = hc
		tester = hc
	} else {
		slog.Warn("harvest credentials not configured, report building disabled")
	}

	assembler := report.NewAssembler(provider, cfg.ReportTargets(), cfg.RatePolicy(), loc)
	parser := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	chatSvc := chat.NewService(db, parser, provider, assembler, loc)
	sender := mail.NewSender(cfg.SMTP)

	// Start background report scheduler
	scheduler := sched.New(cfg, db, assembler, sender)
	scheduler.Start()

	// Setup HTTP server
	handler := api.NewHandler(cfg, db, chatSvc, assembler, tester, sender, mail.RenderHTML)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		scheduler.Stop() // Stop cron scheduler
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
