package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/triage-ai/palisade/services/intent_guard/internal/approval"
	"github.com/triage-ai/palisade/services/intent_guard/internal/auth"
	"github.com/triage-ai/palisade/services/intent_guard/internal/engine"
	"github.com/triage-ai/palisade/services/intent_guard/internal/engine/checks"
	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
	"github.com/triage-ai/palisade/services/intent_guard/internal/locking"
	"github.com/triage-ai/palisade/services/intent_guard/internal/recorder"
	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
	"github.com/triage-ai/palisade/services/intent_guard/internal/server"
	"github.com/triage-ai/palisade/services/intent_guard/internal/storage"
	"github.com/triage-ai/palisade/services/intent_guard/internal/trace"
)

func main() {
	logger := mustBuildLogger(envOrDefault("INTENT_GUARD_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	port := envOrDefault("INTENT_GUARD_PORT", "50054")
	workspaceRoot := envOrDefault("INTENT_GUARD_WORKSPACE_ROOT", mustGetwd())
	approvalTimeout := envOrDefaultDuration("INTENT_GUARD_APPROVAL_TIMEOUT", engine.DefaultApprovalTimeout)
	watchRegistry := envOrDefaultBool("INTENT_GUARD_WATCH_REGISTRY", true)
	validateArgs := envOrDefaultBool("INTENT_GUARD_VALIDATE_ARGS", false)
	authCacheTTL := envOrDefaultInt("INTENT_GUARD_AUTH_CACHE_TTL_S", 30)
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")

	cfg := engine.DefaultConfig()
	cfg.ApprovalTimeout = approvalTimeout
	cfg.ValidateArguments = validateArgs

	logger.Info("starting intent guard server",
		zap.String("port", port),
		zap.Duration("approval_timeout", approvalTimeout),
		zap.Bool("watch_registry", watchRegistry),
		zap.Bool("validate_args", validateArgs),
	)

	// Intent registry, cached behind fsnotify when possible.
	var intentRegistry intents.Registry
	if watchRegistry {
		watched, err := intents.NewWatchedRegistry(logger)
		if err != nil {
			logger.Warn("registry watcher unavailable, reading registry on every call", zap.Error(err))
			intentRegistry = intents.NewFileRegistry(logger)
		} else {
			defer watched.Close()
			intentRegistry = watched
		}
	} else {
		intentRegistry = intents.NewFileRegistry(logger)
	}

	catalog := registry.DefaultCatalog()
	store := locking.NewStore()

	// The remote agent answers the approval prompt through user_confirmed.
	gateChecks := checks.Default(intentRegistry, store, approval.Preconfirmed{}, cfg, logger)
	if cfg.ValidateArguments {
		gateChecks = checks.WithArgumentSchemas(gateChecks, catalog)
	}
	eng := engine.NewIntentGuardEngine(catalog, intentRegistry, gateChecks, logger)

	tracer := trace.NewTracer(catalog, intentRegistry, logger)
	rec := recorder.New(catalog, locking.DefaultRecorders(store, intentRegistry, cfg.Limits, logger), tracer, logger)

	// Storage: ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(clickhouseDSN, storage.DefaultBatchConfig(), logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer", zap.Error(err))
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// Auth: Postgres workspaces if DSN provided, otherwise one static workspace
	var authenticator auth.Authenticator
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: time.Duration(authCacheTTL) * time.Second,
			Logger:   logger,
		})
		logger.Info("postgres authenticator connected")
	} else {
		authenticator = auth.NewStaticAuthenticator(workspaceRoot)
		logger.Info("using static authenticator (no POSTGRES_DSN)", zap.String("workspace_root", workspaceRoot))
	}

	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 10 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(4*1024*1024),
		grpc.MaxSendMsgSize(4*1024*1024),
	)

	intentGuardServer := server.NewIntentGuardServer(eng, rec, store, intentRegistry, authenticator, writer, logger)
	server.RegisterIntentGuardServiceServer(grpcServer, intentGuardServer)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("port", port), zap.Error(err))
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		healthServer.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		grpcServer.GracefulStop()
	}()

	logger.Info("intent guard server listening", zap.String("addr", lis.Addr().String()))
	if err := grpcServer.Serve(lis); err != nil {
		logger.Fatal("grpc server failed", zap.Error(err))
	}
}

func mustBuildLogger(level string) *zap.Logger {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("failed to resolve working directory: %v", err))
	}
	return wd
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
