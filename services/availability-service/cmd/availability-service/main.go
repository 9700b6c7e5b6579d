package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/buildlance/buildlance/libs/auth"
	"github.com/buildlance/buildlance/libs/config"
	"github.com/buildlance/buildlance/libs/db"
	"github.com/buildlance/buildlance/libs/httpx"
	"github.com/buildlance/buildlance/libs/kafkax"
	otelx "github.com/buildlance/buildlance/libs/otel"
	"github.com/buildlance/buildlance/libs/runtime"
	"github.com/buildlance/buildlance/services/availability-service/internal/consumer"
	"github.com/buildlance/buildlance/services/availability-service/internal/handlers"
	"github.com/buildlance/buildlance/services/availability-service/internal/inbox"
	"github.com/buildlance/buildlance/services/availability-service/internal/outbox"
	"github.com/buildlance/buildlance/services/availability-service/internal/retention"
	"github.com/buildlance/buildlance/services/availability-service/internal/schedule"
	"github.com/buildlance/buildlance/services/availability-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)
	engine := schedule.NewEngine(repo, repo, repo, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: time.Duration(config.Int("OUTBOX_POLL_MS", 2000)) * time.Millisecond,
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "availability-service"),
		Topics: []string{
			"auth.builder.registered.v1",
			"billing.subscription.activated.v1",
			"billing.subscription.canceled.v1",
		},
	}, func(ctx context.Context, msg kafka.Message) error {
		switch msg.Topic {
		case "auth.builder.registered.v1":
			var payload struct {
				BuilderID string `json:"builder_id"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil || payload.BuilderID == "" {
				logger.Error("invalid builder registration event", "err", err)
				return nil
			}
			if _, err := repo.GetOrCreateProfile(ctx, payload.BuilderID); err != nil {
				return err
			}
			logger.Info("scheduling profile bootstrapped", "builder_id", payload.BuilderID)
			return nil
		case "billing.subscription.activated.v1", "billing.subscription.canceled.v1":
			var payload struct {
				BuilderID string `json:"builder_id"`
				Tier      string `json:"tier"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil || payload.BuilderID == "" || payload.Tier == "" {
				logger.Error("invalid subscription event", "err", err)
				return nil
			}
			if err := repo.UpsertEntitlements(ctx, payload.BuilderID, payload.Tier); err != nil {
				return err
			}
			logger.Info("entitlements updated", "builder_id", payload.BuilderID, "tier", payload.Tier)
			return nil
		default:
			logger.Warn("unexpected topic", "topic", msg.Topic)
			return nil
		}
	})
	go eventConsumer.Run(ctx)

	sweeper := retention.NewSweeper(pool, repo, logger, retention.Config{
		KeepDays:        config.Int("RETENTION_KEEP_DAYS", 90),
		BatchSize:       config.Int("RETENTION_BATCH_SIZE", 200),
		AdvisoryLockKey: int64(config.Int("RETENTION_LOCK_KEY", 0)),
	})
	go sweeper.Run(ctx, time.Duration(config.Int("RETENTION_SWEEP_HOURS", 24))*time.Hour)

	jwtSecret := config.String("JWT_SECRET", "dev-secret")
	var jwksClient *auth.JWKSClient
	if url := strings.TrimSpace(config.String("JWKS_URL", "")); url != "" {
		jwksClient = auth.NewJWKSClient(url, time.Duration(config.Int("JWKS_CACHE_SECONDS", 300))*time.Second)
	}

	crud := handlers.New(pool, repo, outboxRepo, logger)
	windows := handlers.NewWindowsHandler(engine, repo, logger)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:availability"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/api/v1/availability/rules", handlers.RequireBuilder(http.HandlerFunc(crud.Rules), jwtSecret, jwksClient))
	mux.Handle("/api/v1/availability/exceptions", handlers.RequireBuilder(http.HandlerFunc(crud.Exceptions), jwtSecret, jwksClient))
	mux.Handle("/api/v1/availability/profile", handlers.RequireBuilder(http.HandlerFunc(crud.Profile), jwtSecret, jwksClient))
	mux.Handle("/api/v1/availability/windows", rateLimitMW(http.HandlerFunc(windows.Windows)))

	bodyLimit := int64(1 << 20) // 1MB
	if v := config.Int("REQUEST_BODY_LIMIT_BYTES", 1048576); v > 0 {
		bodyLimit = int64(v)
	}
	requestTimeout := 10 * time.Second
	if v := config.Int("REQUEST_TIMEOUT_SECONDS", 10); v > 0 {
		requestTimeout = time.Duration(v) * time.Second
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PATCH,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
	)
	handler = otelhttp.NewHandler(handler, "availability")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	if err := startGrpcServer(ctx, logger, engine, repo); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
