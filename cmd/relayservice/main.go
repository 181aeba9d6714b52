package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/fleetrelay/internal/auth"
	"github.com/example/fleetrelay/internal/relay/directory"
	"github.com/example/fleetrelay/internal/relay/domain"
	"github.com/example/fleetrelay/internal/relay/engine"
	"github.com/example/fleetrelay/internal/relay/events"
	"github.com/example/fleetrelay/internal/relay/geocode"
	"github.com/example/fleetrelay/internal/relay/presence"
	"github.com/example/fleetrelay/internal/relay/registry"
	"github.com/example/fleetrelay/internal/relay/stream"
	"github.com/example/fleetrelay/internal/relay/track"
	"github.com/example/fleetrelay/internal/relay/ws"
	"github.com/example/fleetrelay/pkg/observability"
)

type appConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	PostgresDSN     string
	RedisAddr       string
	NATSURL         string
	JWTSecret       string
	GeocodeURL      string
	GeocodeAgent    string
	GeocodeTimeout  time.Duration
	LocationSubject string
	PresenceTTL     time.Duration
	PresenceSweep   time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("relay-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "relay-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := loadConfig()

	store, dbClose := buildDirectoryStore(ctx, cfg, logger)
	defer dbClose()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed, location index disabled", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("relayservice")); err == nil {
			natsConn = conn
			defer conn.Drain() //nolint:errcheck
		} else {
			logger.Warn("nats connection failed, event sink disabled", zap.Error(err))
		}
	}

	cache := directory.NewCache(store)
	places := geocode.NewResolver(geocode.NewClient(geocode.ClientConfig{
		BaseURL:   cfg.GeocodeURL,
		UserAgent: cfg.GeocodeAgent,
		Timeout:   cfg.GeocodeTimeout,
	}), logger.Named("geocode"))
	reg := registry.New(logger.Named("registry"))

	tracker := presence.New(reg, domain.SystemClock{}, logger.Named("presence"), presence.Config{
		TTL:      cfg.PresenceTTL,
		Interval: cfg.PresenceSweep,
	})
	go func() {
		if err := tracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("presence tracker stopped", zap.Error(err))
		}
	}()

	opts := engine.Options{Presence: tracker}
	if natsConn != nil {
		opts.Sink = events.NewPublisher(natsConn, cfg.LocationSubject)
	}
	if redisClient != nil {
		opts.Tracker = track.NewRedisLocationIndex(redisClient, "")
	}

	eng := engine.New(cache, places, reg, logger.Named("engine"), opts)

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET unset, channel auth disabled")
	}

	wsHandler := ws.NewHandler(eng, verifier, logger.Named("ws"))

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Mount("/ws", wsHandler.Router())
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("relay listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	go runGRPC(cfg.GRPCAddr, eng, logger)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func runGRPC(addr string, eng *engine.Engine, logger *zap.Logger) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("listen grpc", zap.Error(err))
	}

	srv := grpc.NewServer()
	stream.RegisterRelayServer(srv, stream.NewServer(eng, logger.Named("stream")))
	logger.Info("relay grpc listening", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil {
		logger.Fatal("grpc serve", zap.Error(err))
	}
}

func buildDirectoryStore(ctx context.Context, cfg appConfig, logger *zap.Logger) (domain.DirectoryStore, func()) {
	if cfg.PostgresDSN == "" {
		logger.Warn("POSTGRES_DSN unset, using in-memory driver directory")
		return directory.NewMemoryStore(), func() {}
	}

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("postgres ping", zap.Error(err))
	}
	return directory.NewPostgresStore(db), func() { _ = db.Close() }
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getenv("GRPC_ADDR", ":9090"),
		PostgresDSN:     firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		NATSURL:         os.Getenv("NATS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		GeocodeURL:      os.Getenv("GEOCODE_URL"),
		GeocodeAgent:    getenv("GEOCODE_USER_AGENT", "fleetrelay/1.0"),
		GeocodeTimeout:  time.Duration(parseIntEnv("GEOCODE_TIMEOUT_MS", 3000)) * time.Millisecond,
		LocationSubject: getenv("LOCATION_SUBJECT", "fleet.locations"),
		PresenceTTL:     time.Duration(parseIntEnv("PRESENCE_TTL_SEC", 90)) * time.Second,
		PresenceSweep:   time.Duration(parseIntEnv("PRESENCE_SWEEP_SEC", 15)) * time.Second,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
