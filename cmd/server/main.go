package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aryan0dhankhar/bloodbank/internal/featureflags"
	"github.com/aryan0dhankhar/bloodbank/internal/handler"
	"github.com/aryan0dhankhar/bloodbank/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/bloodbank/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/bloodbank/internal/notify"
	"github.com/aryan0dhankhar/bloodbank/internal/observability/metrics"
	"github.com/aryan0dhankhar/bloodbank/internal/observability/tracing"
	"github.com/aryan0dhankhar/bloodbank/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/bloodbank/internal/reliability/retry"
	"github.com/aryan0dhankhar/bloodbank/internal/repository"
	"github.com/aryan0dhankhar/bloodbank/internal/security/audit"
	"github.com/aryan0dhankhar/bloodbank/internal/security/auth"
	"github.com/aryan0dhankhar/bloodbank/internal/security/ratelimit"
	"github.com/aryan0dhankhar/bloodbank/internal/service"
	"github.com/aryan0dhankhar/bloodbank/internal/worker"
	"github.com/aryan0dhankhar/bloodbank/pkg/config"
	"github.com/aryan0dhankhar/bloodbank/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	format := "json"
	if cfg.Environment == "development" {
		format = "text"
	}
	log := logger.New(os.Stdout, cfg.LogLevel, format)
	log.Info("starting blood bank server",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, tracing.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "bloodbank",
		Environment: cfg.Environment,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Open the store
	store, redisClient, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	// 5. Security components
	credentials, err := auth.NewAdminCredentials(cfg.AdminUsername, cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		log.Error("failed to configure admin credentials", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, using an insecure development secret")
	}
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "bloodbank")

	var revoker auth.Revoker
	if redisClient != nil {
		revoker = auth.NewRedisRevoker(redisClient)
	} else {
		memRevoker := auth.NewMemoryRevoker()
		go memRevoker.RunJanitor(ctx, time.Minute)
		revoker = memRevoker
	}

	publicLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	loginLimiter := ratelimit.NewLimiter(cfg.LoginRateLimitPerMin, time.Minute)
	go publicLimiter.Run(ctx, time.Minute)
	go loginLimiter.Run(ctx, time.Minute)

	// 6. Events and services
	hub := notify.NewHub()
	defer hub.Close()

	donorService := service.NewDonorService(store.Donors, hub, log)
	requestService := service.NewRequestService(store.Requests, hub, log)
	statsService := service.NewStatsService(store.Donors, store.Requests, log)
	authService := service.NewAuthService(credentials, tokenManager, revoker, cfg.TokenTTL, log)

	if featureflags.Enabled(featureflags.SeedSampleData) {
		if _, err := service.SeedSampleData(ctx, donorService, requestService, log); err != nil {
			log.Error("failed to seed sample data", slog.String("error", err.Error()))
		}
	}

	// 7. Notification worker
	if featureflags.Enabled(featureflags.EmailNotifications) {
		var sender notify.Sender
		if cfg.ResendAPIKey != "" {
			sender = notify.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
		} else {
			log.Warn("RESEND_API_KEY not set, status emails will only be logged")
			sender = notify.NewLogSender(log)
		}
		events, unsubscribe := hub.Subscribe(cfg.NotificationQueueSize)
		defer unsubscribe()
		go worker.NewNotificationWorker(events, sender, retry.DefaultPolicy(), log).Start(ctx)
	}

	// 8. HTTP server
	router := handler.NewRouter(handler.Deps{
		Donors:         donorService,
		Requests:       requestService,
		Stats:          statsService,
		Auth:           authService,
		Hub:            hub,
		Audit:          audit.NewLogger(log),
		Checks:         map[string]handler.Pinger{"store": store},
		PublicLimiter:  publicLimiter,
		LoginLimiter:   loginLimiter,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         log,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// websocket streams manage their own write deadlines
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.Int("login_rate_limit", cfg.LoginRateLimitPerMin),
		slog.Any("flags", featureflags.Snapshot()),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// websocket streams end when the hub closes
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

// openStore builds the configured backend. Network backends are wrapped in
// retries and a circuit breaker. The redis client is returned so token
// revocation can share it.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repository.Store, *redis.Client, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		pool, err := database.NewConnectionPool(ctx, database.SQLiteConfig(cfg.SQLitePath), log)
		if err != nil {
			return nil, nil, err
		}
		store, err := repository.NewSQLStore(ctx, pool, log)
		if err != nil {
			_ = pool.Close()
			return nil, nil, err
		}
		return store, nil, nil

	case config.BackendPostgres:
		pool, err := database.NewConnectionPool(ctx, database.PostgresConfig(cfg.DatabaseURL), log)
		if err != nil {
			return nil, nil, err
		}
		store, err := repository.NewSQLStore(ctx, pool, log)
		if err != nil {
			_ = pool.Close()
			return nil, nil, err
		}
		return repository.WithResilience(store, newResilience(log)), nil, nil

	case config.BackendRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewRedisStore(client, log)
		return repository.WithResilience(store, newResilience(log)), client, nil

	default:
		return repository.NewMemoryStore(), nil, nil
	}
}

func newResilience(log *slog.Logger) *repository.Resilience {
	return repository.NewResilience(
		retry.DefaultPolicy(),
		circuitbreaker.Settings{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			OpenTimeout:      30 * time.Second,
			OnStateChange: func(from, to circuitbreaker.State) {
				metrics.SetStoreBreakerState(int(to))
				log.Warn("store circuit breaker changed state",
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		},
		log,
	)
}
