package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bloxradio/bloxradio-server/internal/api"
	"github.com/bloxradio/bloxradio-server/internal/clock"
	"github.com/bloxradio/bloxradio-server/internal/config"
	"github.com/bloxradio/bloxradio-server/internal/httputil"
	"github.com/bloxradio/bloxradio-server/internal/metrics"
	"github.com/bloxradio/bloxradio-server/internal/ratelimit"
	"github.com/bloxradio/bloxradio-server/internal/scheduler"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run() error {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}

	log.Info().Str("env", cfg.ServerEnv).Msg("Starting bloxradio server")

	if cfg.RobloxServerKey == "" {
		log.Warn().Msg("ROBLOX_SERVER_KEY is not set. All game-server calls will be rejected as unauthorized.")
	}
	if !cfg.TokensEnabled() {
		log.Warn().Msg("WEB_TOKEN_SECRET is not set. Capability tokens are disabled and token-gated routes run open (test/dev mode).")
	}

	st := api.NewState(cfg, clock.System(), metrics.New(), log.Logger)

	app := fiber.New(fiber.Config{
		AppName:               "bloxradio",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Internal faults never leak text; Fiber's built-in errors map to the
			// closest closed code.
			status := fiber.StatusInternalServerError
			code := httputil.CodeInternal
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
				if status == fiber.StatusNotFound || status == fiber.StatusMethodNotAllowed {
					code = httputil.CodeNotFound
				}
			} else {
				log.Error().Err(err).
					Str("method", c.Method()).
					Str("path", c.Path()).
					Msg("Unhandled error")
			}
			return httputil.Fail(c, status, code)
		},
	})

	app.Use(requestid.New())
	app.Use(httputil.RequestLogger(log.Logger))

	allowOrigins := cfg.AllowedOrigins
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type, x-roblox-key, x-radio-token",
		MaxAge:       86400,
	}))

	api.Register(app, st)

	// Periodic GC for every TTL-indexed structure. Tasks tick independently and
	// take the same locks as request handlers.
	gcCtx, gcCancel := context.WithCancel(context.Background())
	defer gcCancel()

	sched := scheduler.New(log.Logger)
	sched.Add("pairing", 30*time.Second, st.Pairing.Sweep)
	sched.Add("events", time.Minute, st.Events.Sweep)
	sched.Add("radio-state", 5*time.Second, st.Radio.Sweep)
	sched.Add("revocation-epochs", time.Minute, func() int {
		keep := cfg.WebTokenTTLMs
		if min := int64(10 * 60 * 1000); keep < min {
			keep = min
		}
		return st.Epochs.Sweep(keep)
	})
	sched.Add("rate-limits", time.Minute, func() int {
		return st.Limits.Sweep(ratelimit.SweepCap)
	})
	sched.Start(gcCtx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server")
		gcCancel()
		st.Hub.Shutdown()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	log.Info().Str("addr", addr).Msg("Server listening")
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	sched.Wait()
	return nil
}
