package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/appointly/insights/libs/config"
	"github.com/appointly/insights/libs/db"
	"github.com/appointly/insights/libs/httpx"
	"github.com/appointly/insights/libs/kafkax"
	otelx "github.com/appointly/insights/libs/otel"
	"github.com/appointly/insights/libs/runtime"
	"github.com/appointly/insights/services/insights-service/internal/availability"
	"github.com/appointly/insights/services/insights-service/internal/cache"
	"github.com/appointly/insights/services/insights-service/internal/consumer"
	"github.com/appointly/insights/services/insights-service/internal/handlers"
	"github.com/appointly/insights/services/insights-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "insights-service")
	port, err := config.Port("PORT", "8087")
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

	var rdb *redis.Client
	var snapshotCache *cache.SnapshotCache
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		snapshotCache = cache.NewSnapshotCache(rdb, config.Duration("SNAPSHOT_CACHE_TTL", 5*time.Minute))
	}

	scheduleProvider, err := availability.NewProvider(config.String("SCHEDULE_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("schedule provider unavailable, using catalog schedules", "err", err)
		scheduleProvider = nil
	}

	brokers := config.String("KAFKA_BROKERS", "")
	if snapshotCache != nil && brokers != "" {
		invalidate := func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				BusinessID string `json:"business_id"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid booking event payload", "err", err)
				return nil
			}
			if payload.BusinessID == "" {
				logger.Error("missing business_id in booking event")
				return nil
			}
			if err := snapshotCache.Invalidate(ctx, payload.BusinessID); err != nil {
				logger.Error("snapshot invalidation failed", "business_id", payload.BusinessID, "err", err)
				return err
			}
			logger.Info("snapshot cache invalidated", "business_id", payload.BusinessID, "topic", msg.Topic)
			return nil
		}

		topics := []string{
			"booking.appointment.booked.v1",
			"booking.appointment.cancelled.v1",
			"booking.appointment.completed.v1",
		}
		for _, topic := range topics {
			c := consumer.New(logger, consumer.Config{
				Brokers: brokers,
				GroupID: config.String("KAFKA_GROUP_ID", "insights-service"),
				Topic:   topic,
			}, invalidate)
			go c.Run(ctx)
		}
	}

	analyticsHandler := handlers.NewAnalyticsHandler(repo, cacheOrNil(snapshotCache), scheduleProvider, logger)
	clientsHandler := handlers.NewClientsHandler(repo, logger, time.Now)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/v1/analytics/snapshot", analyticsHandler.Snapshot)
	mux.HandleFunc("/v1/clients", clientsHandler.List)
	mux.HandleFunc("/v1/clients/duplicates", clientsHandler.Duplicates)

	var corsOrigins []string
	if v := config.String("CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: corsOrigins,
			MaxAge:         10 * time.Minute,
		}),
	}
	if rdb != nil {
		limiter := httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT", 120), time.Minute, "insights")
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	} else {
		middlewares = append(middlewares, httpx.NewRateLimiter(config.Int("RATE_LIMIT", 120), time.Minute).Middleware())
	}

	handler := httpx.Chain(mux, middlewares...)
	handler = otelhttp.NewHandler(handler, "insights")
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

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// cacheOrNil keeps the handler's optional-cache check on a typed nil safe.
func cacheOrNil(c *cache.SnapshotCache) handlers.SnapshotCache {
	if c == nil {
		return nil
	}
	return c
}
