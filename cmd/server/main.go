// Package main is the entry point for the FitForge auth server. It loads
// configuration, selects the credential store and rate-limiter backends,
// wires the auth components, and starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Carl26-1/fitforge-email-auth/internal/app"
	"github.com/Carl26-1/fitforge-email-auth/internal/auth"
	"github.com/Carl26-1/fitforge-email-auth/internal/config"
	"github.com/Carl26-1/fitforge-email-auth/internal/database"
	"github.com/Carl26-1/fitforge-email-auth/internal/mailer"
)

func main() {
	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting FitForge auth server",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
	)

	if cfg.EphemeralSecret() {
		slog.Warn("SESSION_SECRET not set; using an ephemeral secret. Sessions will not survive a restart.")
	}

	// --- Select Credential Store ---
	store, cleanup, err := selectStore(cfg)
	if err != nil {
		slog.Error("failed to set up credential store", slog.Any("error", err))
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := store.EnsureReady(ctx)
		cancel()
		if err != nil {
			slog.Error("credential store not ready", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// --- Select Rate Limiter ---
	limiter, err := selectLimiter(cfg)
	if err != nil {
		slog.Error("failed to set up rate limiter", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Mailer ---
	mail := mailer.NewResend(cfg.Email.APIBase, cfg.Email.APIKey, cfg.Email.From)
	if !mail.IsConfigured() {
		if cfg.AllowUnsafeCodeFallback {
			slog.Warn("email delivery unconfigured; verification codes will be returned onscreen")
		} else {
			slog.Warn("email delivery unconfigured; send-code requests will fail with 503")
		}
	}

	// --- Create Application ---
	application := app.New(cfg, store, limiter, mail)
	application.RegisterRoutes()

	// --- Graceful Shutdown ---
	// Listen for interrupt/term signals to drain connections cleanly.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		// Give in-flight requests 10 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(ctx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown, which is expected.
		slog.Info("server stopped", slog.Any("reason", err))
	}
}

// selectStore picks the credential store from configuration: none in proxy
// mode, SQL when DATABASE_URL is set, the JSON file store otherwise. The
// returned cleanup closes the SQL pool.
func selectStore(cfg *config.Config) (auth.UserStore, func(), error) {
	if cfg.UseProxy() {
		slog.Info("auth proxy mode", slog.String("upstream", cfg.AuthProxyBaseURL))
		return nil, nil, nil
	}

	if cfg.DatabaseURL != "" {
		db, dialect, err := database.OpenSQL(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using SQL credential store", slog.String("dialect", string(dialect)))
		return auth.NewSQLStore(db, dialect), func() { db.Close() }, nil
	}

	slog.Info("using file credential store", slog.String("path", cfg.UsersFile))
	return auth.NewFileStore(cfg.UsersFile), nil, nil
}

// selectLimiter picks the rate-limiter backend: Redis-backed shared counters
// when REDIS_URL is set, per-process memory otherwise.
func selectLimiter(cfg *config.Config) (auth.CodeLimiter, error) {
	if cfg.RedisURL == "" {
		return auth.NewMemoryLimiter(), nil
	}

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	slog.Info("using Redis-backed rate limiter")
	return auth.NewRedisLimiter(rdb), nil
}

// setupLogging configures the global slog logger based on the environment.
// Development uses text format for readability. Production uses JSON for
// structured log aggregation.
func setupLogging(cfg *config.Config) {
	var handler slog.Handler

	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	slog.SetDefault(slog.New(handler))
}
