package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/activity"
	"github.com/lalithlochan/sentinel/internal/api"
	"github.com/lalithlochan/sentinel/internal/apiclient"
	"github.com/lalithlochan/sentinel/internal/config"
	"github.com/lalithlochan/sentinel/internal/db"
	"github.com/lalithlochan/sentinel/internal/digest"
	"github.com/lalithlochan/sentinel/internal/kv"
	"github.com/lalithlochan/sentinel/internal/metrics"
	"github.com/lalithlochan/sentinel/internal/notify"
	"github.com/lalithlochan/sentinel/internal/oauth"
	"github.com/lalithlochan/sentinel/internal/observ"
	"github.com/lalithlochan/sentinel/internal/redis"
	"github.com/lalithlochan/sentinel/internal/relay"
	"github.com/lalithlochan/sentinel/internal/services"
	"github.com/lalithlochan/sentinel/internal/session"
	"github.com/lalithlochan/sentinel/internal/toast"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting sentinel console",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.String("api", cfg.APIBaseURL()),
		zap.String("storage", cfg.StorageBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis backs rate limiting and idempotency whatever the storage backend.
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting and idempotency disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
		redisClient = nil
	}

	var (
		idempotency *redis.IdempotencyService
		rateLimiter *redis.RateLimiter
	)
	if redisClient != nil {
		defer redisClient.Close()
		idempotency = redis.NewIdempotencyService(redisClient, logger)
		rateLimiter = redis.NewRateLimiter(redisClient, logger,
			redis.RateLimitPolicy{Limit: cfg.RateLimit, Window: cfg.RateLimitWindow},
			map[string]redis.RateLimitPolicy{
				redis.GroupWrite: {Limit: cfg.RateLimitWrite, Window: cfg.RateLimitWindow},
				redis.GroupAuth:  {Limit: cfg.RateLimitAuth, Window: cfg.RateLimitWindow},
			})
	}

	state, closeState, err := openStorage(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer closeState()

	secrets, err := openSecrets(cfg, state, logger)
	if err != nil {
		return err
	}

	store, err := notify.Open(ctx, state, logger)
	if err != nil {
		return fmt.Errorf("failed to open notification store: %w", err)
	}

	sess, err := session.Open(ctx, state, secrets, logger, session.WithExpireHook(func() {
		store.Add(notify.KindWarning, "Session expired", "Sign in again to continue.", session.LoginRoute)
	}))
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	if sess.TokenExpired(time.Now()) {
		logger.Info("stored token has expired, signing out")
		if err := sess.Logout(ctx); err != nil {
			logger.Warn("failed to clear expired session", zap.Error(err))
		}
	}

	client := apiclient.New(apiclient.Config{
		BaseURL: cfg.APIBaseURL(),
		Timeout: cfg.APITimeout,
		Breaker: apiclient.NewBreaker(logger),
	}, sess, logger)
	svc := services.New(client)

	providers, err := config.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return fmt.Errorf("failed to load oauth providers: %w", err)
	}

	toasts := toast.New(store, toast.Config{
		Dwell: cfg.ToastDwell,
		Exit:  cfg.ToastExit,
	}, logger)

	activityCfg := activity.Config{}
	if cfg.ActivityMarksRead {
		activityCfg.MarkRead = store
	}

	var wg sync.WaitGroup
	background := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	updates, unsubscribe := store.Subscribe()
	background(func() { toasts.Run(ctx, updates) })

	if err := startOutbound(ctx, cfg, store, sess, background, logger); err != nil {
		return err
	}

	flow := oauth.NewFlow(providers, cfg.PublicURL, state, svc.Integrations, logger,
		oauth.WithAuthorizer(svc.Integrations))

	handler := api.NewHandler(logger, api.Deps{
		Notifications: store,
		Toasts:        toasts,
		Activity:      activity.NewCenter(svc.Activity, activityCfg, logger),
		OAuth:         flow,
		Session:       sess,
		Services:      svc,
		Idempotency:   idempotency,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(api.RequestLogger(logger))

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.OperatorSubject(sess)))
		handler.Routes(r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		stop()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	unsubscribe()
	wg.Wait()
	toasts.Close()

	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("failed to flush notifications", zap.Error(err))
	}

	logger.Info("server stopped gracefully")
	return nil
}

// openStorage selects the durable store for client state. The returned
// func releases it.
func openStorage(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (kv.Store, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, state is lost on restart")
		return kv.NewMemory(), func() {}, nil

	case config.StoragePostgres:
		database, err := db.New(ctx, db.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Database: cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		migrations, err := db.Migrations()
		if err != nil {
			database.Close()
			return nil, nil, err
		}
		if _, err := db.NewMigrator(database, migrations, logger).Up(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("migrate client_state: %w", err)
		}
		return db.NewStateRepository(database, logger), database.Close, nil

	case config.StorageRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("storage backend redis requires a reachable redis")
		}
		return redis.NewKVStore(redisClient), func() {}, nil

	default:
		store, err := kv.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite state: %w", err)
		}
		logger.Info("sqlite state opened", zap.String("path", cfg.SQLitePath))
		return store, func() { _ = store.Close() }, nil
	}
}

func openSecrets(cfg *config.Config, state kv.Store, logger *zap.Logger) (kv.Store, error) {
	if cfg.SecretBackend != config.SecretKeyring {
		return state, nil
	}
	ring, err := session.OpenKeyring(cfg.KeyringDir, cfg.KeyringPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	logger.Info("session token kept in keyring")
	return ring, nil
}

// startOutbound starts the relay and the digest mailer when configured.
func startOutbound(ctx context.Context, cfg *config.Config, store *notify.Store, sess *session.Session, background func(func()), logger *zap.Logger) error {
	needsAWS := cfg.RelaySNSTopic != "" || cfg.RelaySQSQueue != "" || cfg.SESFromEmail != ""

	var sinks []relay.Sink
	if cfg.RelayWebhookURL != "" {
		sinks = append(sinks, relay.NewWebhookSink(relay.WebhookConfig{URL: cfg.RelayWebhookURL}, logger))
	}

	if needsAWS {
		awsCfg, err := relay.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
		if err != nil {
			return err
		}
		if cfg.RelaySNSTopic != "" {
			sinks = append(sinks, relay.NewSNSSinkFromConfig(awsCfg, cfg.RelaySNSTopic, logger))
		}
		if cfg.RelaySQSQueue != "" {
			sinks = append(sinks, relay.NewSQSSinkFromConfig(awsCfg, cfg.RelaySQSQueue, logger))
		}
		if cfg.SESFromEmail != "" {
			mailer := digest.NewSESMailerFromConfig(awsCfg, cfg.SESFromEmail, logger)
			d := digest.New(store, sess, mailer, digest.Config{Interval: cfg.DigestInterval}, logger)
			background(func() { d.Start(ctx) })
			logger.Info("digest mail enabled", zap.Duration("interval", cfg.DigestInterval))
		}
	}

	if len(sinks) == 0 {
		logger.Info("no relay sinks configured")
		return nil
	}

	r := relay.New(sinks, relay.Config{Kinds: relay.ParseKinds(cfg.RelayKinds)}, logger)
	background(func() { r.Run(ctx, store) })
	return nil
}
