package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/parley-chat/parley-server/internal/api"
	"github.com/parley-chat/parley-server/internal/auth"
	"github.com/parley-chat/parley-server/internal/chat"
	"github.com/parley-chat/parley-server/internal/config"
	"github.com/parley-chat/parley-server/internal/gateway"
	"github.com/parley-chat/parley-server/internal/httputil"
	"github.com/parley-chat/parley-server/internal/invite"
	"github.com/parley-chat/parley-server/internal/message"
	"github.com/parley-chat/parley-server/internal/postgres"
	"github.com/parley-chat/parley-server/internal/presence"
	"github.com/parley-chat/parley-server/internal/user"
	"github.com/parley-chat/parley-server/internal/valkey"
)

// sessionPurgeInterval is how often expired session rows are swept out.
const sessionPurgeInterval = time.Hour

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}

	log.Info().Str("env", cfg.ServerEnv).Msg("Starting Parley Server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect PostgreSQL
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConn, cfg.DatabaseMinConn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	log.Info().Msg("PostgreSQL connected")

	// Run migrations
	if err := postgres.Migrate(cfg.DatabaseURL, log.With().Str("component", "migrations").Logger()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("Database migrations complete")

	// Connect Valkey. The presence mirror is an optional observability aid; the server runs without it.
	var rdb *redis.Client
	var mirror gateway.StatusMirror
	if cfg.ValkeyURL != "" {
		rdb, err = valkey.Connect(ctx, cfg.ValkeyURL)
		if err != nil {
			log.Warn().Err(err).Msg("Valkey unavailable, presence mirror disabled")
			rdb = nil
		} else {
			defer rdb.Close()
			mirror = presence.NewMirror(rdb, log.With().Str("component", "presence").Logger())
			log.Info().Msg("Valkey connected")
		}
	}

	// Repositories
	userRepo := user.NewPGRepository(db, log.With().Str("component", "user").Logger())
	sessionRepo := auth.NewPGSessionRepository(db)
	chatRepo := chat.NewPGRepository(db, log.With().Str("component", "chat").Logger())
	inviteRepo := invite.NewPGRepository(db, log.With().Str("component", "invite").Logger())
	messageRepo := message.NewPGRepository(db, log.With().Str("component", "message").Logger())

	// Registry and services. The invite service pushes through the registry, the chat service invites through the
	// invite service, and the message service broadcasts through the registry.
	registry := gateway.NewRegistry(mirror, log.With().Str("component", "registry").Logger())
	authService := auth.NewService(userRepo, sessionRepo, cfg, log.With().Str("component", "auth").Logger())
	gate := auth.NewGate(cfg.JWTSecretKey, auth.TokenIssuer, sessionRepo, chatRepo, log.With().Str("component", "gate").Logger())
	inviteService := invite.NewService(inviteRepo, userRepo, registry, log.With().Str("component", "invite").Logger())
	chatService := chat.NewService(chatRepo, inviteService, log.With().Str("component", "chat").Logger())
	messageService := message.NewService(messageRepo, registry, cfg.MaxMessageLength, log.With().Str("component", "message").Logger())

	// Background sweep of expired session rows.
	go purgeSessions(ctx, sessionRepo)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "Parley",
		DisableStartupMessage: true,
		// ErrorHandler catches errors returned by handlers that are not already mapped to structured API responses
		// (e.g. Fiber's built-in 404/405).
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			msg := "An internal error occurred"
			code := httputil.CodeInternal
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
				msg = e.Message
				code = statusToCode(e.Code)
			} else {
				log.Error().Err(err).
					Str("method", c.Method()).
					Str("path", c.Path()).
					Msg("Unhandled error")
			}
			return httputil.Fail(c, status, code, msg)
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(httputil.RequestLogger(log.With().Str("component", "http").Logger()))
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitAPIRequests,
		Expiration: time.Duration(cfg.RateLimitAPIWindowSeconds) * time.Second,
	}))

	health := &api.HealthHandler{DB: db, Valkey: rdb}
	app.Get("/health", health.Health)

	registerRoutes(app, cfg, gate, authService, chatService, messageService, inviteService, userRepo, registry)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server")
		cancel()
		_ = app.Shutdown()
	}()

	addr := cfg.ListenAddr()
	log.Info().Str("addr", addr).Msg("Server listening")
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func registerRoutes(
	app *fiber.App,
	cfg *config.Config,
	gate *auth.Gate,
	authService *auth.Service,
	chatService *chat.Service,
	messageService *message.Service,
	inviteService *invite.Service,
	users user.Repository,
	registry *gateway.Registry,
) {
	authHandler := api.NewAuthHandler(authService, log.With().Str("handler", "auth").Logger())
	chatHandler := api.NewChatHandler(chatService, log.With().Str("handler", "chat").Logger())
	messageHandler := api.NewMessageHandler(messageService, log.With().Str("handler", "message").Logger())
	inviteHandler := api.NewInviteHandler(inviteService, log.With().Str("handler", "invite").Logger())
	gatewayHandler := api.NewGatewayHandler(gate, users, registry, messageService, log.With().Str("handler", "gateway").Logger())

	// Unauthenticated routes carry a stricter limiter keyed to credential guessing.
	authLimiter := limiter.New(limiter.Config{
		Max:        cfg.RateLimitAuthCount,
		Expiration: time.Duration(cfg.RateLimitAuthWindowSeconds) * time.Second,
	})
	app.Post("/register", authLimiter, authHandler.Register)
	app.Post("/login", authLimiter, authHandler.Login)

	protected := auth.RequireAuth(gate)
	app.Post("/create_chat", protected, chatHandler.Create)
	app.Get("/get_messages/:chat_id", protected, messageHandler.History)
	app.Post("/send_message", protected, messageHandler.Send)
	app.Post("/invites/respond", protected, inviteHandler.Respond)

	// The stream endpoint authorizes inside the handler: the token may arrive as a query parameter and membership in
	// the target chat is required before the protocol switch.
	app.Get("/ws", gatewayHandler.Upgrade)
}

// purgeSessions periodically deletes expired session rows so the sessions table does not grow without bound.
func purgeSessions(ctx context.Context, sessions auth.SessionRepository) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Session purge failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Msg("Expired sessions removed")
			}
		}
	}
}

// statusToCode maps an HTTP status code from Fiber's built-in errors (404, 405, etc.) to the closest API error code.
func statusToCode(status int) httputil.Code {
	switch {
	case status == fiber.StatusNotFound:
		return httputil.CodeNotFound
	case status == fiber.StatusUnauthorized:
		return httputil.CodeUnauthorized
	case status == fiber.StatusForbidden:
		return httputil.CodeForbidden
	case status == fiber.StatusTooManyRequests:
		return httputil.CodeRateLimited
	case status >= 400 && status < 500:
		return httputil.CodeValidation
	default:
		return httputil.CodeInternal
	}
}
