package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/submitlink/internal/auth"
	"github.com/dukerupert/submitlink/internal/config"
	"github.com/dukerupert/submitlink/internal/database"
	"github.com/dukerupert/submitlink/internal/email"
	"github.com/dukerupert/submitlink/internal/extract"
	"github.com/dukerupert/submitlink/internal/logging"
	"github.com/dukerupert/submitlink/internal/server"
	"github.com/dukerupert/submitlink/internal/submission"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "staff-token" {
		if err := staffToken(cfg, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := serve(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// staffToken prints a signed staff bearer token for an existing person.
func staffToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("staff-token", flag.ContinueOnError)
	person := fs.Int64("person", 0, "staff person id")
	role := fs.String("role", string(auth.RoleHR), "ADMIN, MANAGER or HR")
	ttl := fs.Duration("ttl", 8*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *person <= 0 {
		return errors.New("staff-token: -person is required")
	}
	if !auth.IsStaffRole(auth.Role(*role)) {
		return fmt.Errorf("staff-token: unknown role %q", *role)
	}

	tok, err := auth.NewJWTResolver(cfg.JWTSecret).Issue(*person, auth.Role(*role), *ttl)
	if err != nil {
		return fmt.Errorf("issue staff token: %w", err)
	}
	fmt.Println(tok)
	return nil
}

func mailTransport(cfg *config.Config, logger *slog.Logger) email.Transport {
	if pm := email.NewPostmarkClient(cfg.PostmarkToken, cfg.MailFrom); pm.Configured() {
		logger.Info("mail via postmark", "from", cfg.MailFrom)
		return pm
	}
	if cfg.SMTP.Host != "" && cfg.SMTP.From != "" {
		logger.Info("mail via smtp", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
		return email.NewSMTPClient(cfg.SMTP)
	}
	logger.Warn("no mail provider configured, messages will be logged")
	return email.LogTransport{Logger: logger.With("component", "email")}
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	mailer := email.NewSender(mailTransport(cfg, logger), cfg.ProductName)

	var extractor submission.Extractor
	if x := extract.NewClient(cfg.ExtractionURL, cfg.ExtractionAPIKey); x.Configured() {
		extractor = x
	} else {
		logger.Info("document analysis disabled, SUBMITLINK_EXTRACTION_URL not set")
	}

	srv := server.New(server.Config{
		Engine:          cfg.Engine,
		JWTSecret:       cfg.JWTSecret,
		AllowedOrigins:  cfg.AllowedOrigins,
		Backup:          cfg.Backup,
		VerifyRateLimit: cfg.VerifyRateLimit,
	}, db, mailer, extractor, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				challenges, sessions, err := srv.Engine().CleanupExpired(ctx)
				if err != nil {
					logger.Error("cleanup expired verification state", "error", err)
				} else if challenges > 0 || sessions > 0 {
					logger.Info("cleaned up expired verification state", "challenges", challenges, "sessions", sessions)
				}
				srv.RateLimiter().Cleanup(time.Hour)
			case <-ctx.Done():
				return
			}
		}
	}()

	srv.BackupManager().Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("submitlink starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	logger.Info("shutting down")
	cancel()
	srv.BackupManager().Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
