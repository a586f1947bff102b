package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/dicomgw/internal/config"
	"github.com/kailas-cloud/dicomgw/internal/db"
	"github.com/kailas-cloud/dicomgw/internal/db/memory"
	dbRedis "github.com/kailas-cloud/dicomgw/internal/db/redis"
	"github.com/kailas-cloud/dicomgw/internal/dicomobj"
	"github.com/kailas-cloud/dicomgw/internal/domain"
	logpkg "github.com/kailas-cloud/dicomgw/internal/logger"
	"github.com/kailas-cloud/dicomgw/internal/metrics"
	"github.com/kailas-cloud/dicomgw/internal/repository/cache"
	"github.com/kailas-cloud/dicomgw/internal/repository/freshness"
	chiTransport "github.com/kailas-cloud/dicomgw/internal/transport/chi"
	"github.com/kailas-cloud/dicomgw/internal/transport/dimse"
	healthuc "github.com/kailas-cloud/dicomgw/internal/usecase/health"
	metadatauc "github.com/kailas-cloud/dicomgw/internal/usecase/metadata"
	objectuc "github.com/kailas-cloud/dicomgw/internal/usecase/object"
	queryuc "github.com/kailas-cloud/dicomgw/internal/usecase/query"
	"github.com/kailas-cloud/dicomgw/internal/usecase/retrieval"
	"github.com/kailas-cloud/dicomgw/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting dicomgw",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("archive", fmt.Sprintf("%s@%s:%d", cfg.Archive.AET, cfg.Archive.Host, cfg.Archive.Port)),
		zap.String("retrieval", cfg.DIMSE.Retrieval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register gateway metrics explicitly (no init())
	metrics.RegisterGatewayMetrics()

	local := domain.Peer{AET: cfg.Local.AET, Host: cfg.Local.Host, Port: cfg.Local.Port}
	archive := domain.Peer{AET: cfg.Archive.AET, Host: cfg.Archive.Host, Port: cfg.Archive.Port}
	dimseCfg := &dimse.Config{
		Local:       local,
		Archive:     archive,
		Mode:        cfg.DIMSE.Retrieval,
		IncomingDir: cfg.DIMSE.IncomingDir,
		Verbose:     cfg.DIMSE.Verbose,
		Runner:      dimse.ExecRunner{BinDir: cfg.DIMSE.BinDir},
		Logger:      logger,
	}
	client := dimse.NewClient(dimseCfg)

	// Cache tree + freshness index
	objects := cache.New(
		cfg.Cache.StoragePath,
		cfg.Cache.Retention(),
		freshness.New(store, cfg.Storage.KeyPrefix),
		logger,
		cache.WithEvictionCounter(metrics.CacheEvictionsTotal),
	)
	prepareCache(ctx, objects, cfg.Cache.ClearOnStartup, logger)

	// Retrieval core
	coord := retrieval.New(client, objects, retrieval.NewLockRegistry(), logger)
	resolver := retrieval.NewResolver(objects, coord, cfg.Cache.RefreshOnHit, logger)

	// Use case services
	translator := queryuc.NewTranslator(local, archive, queryuc.Policy{
		MinPatientNameChars: cfg.QIDO.MinChars,
		AppendWildcard:      cfg.QIDO.AppendWildcard,
	})
	querySvc := queryuc.New(translator, client, logger)
	metadataSvc := metadatauc.New(querySvc, resolver, dicomobj.Reader{}, logger)
	objectSvc := objectuc.New(resolver, dicomobj.Reader{}, objects, logger)
	healthSvc := healthuc.New(store, client)

	if err := client.Echo(ctx); err != nil {
		logger.Warn("Archive did not answer C-ECHO", zap.Error(err))
	} else {
		logger.Info("Archive answered C-ECHO")
	}

	// Create chi server
	server := chiTransport.NewServer(querySvc, metadataSvc, objectSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Location"},
		MaxAge:         300,
	}))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	chiTransport.Handler(server, chiTransport.HandlerOptions{
		BaseRouter: r,
		StaticDir:  cfg.HTTP.StaticDir,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.DIMSE.Retrieval == config.RetrievalMove {
		scp := dimse.NewSCP(dimseCfg)
		g.Go(func() error { return scp.Run(gctx) })
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// newStore picks the freshness index backend. Valkey speaks the Redis
// protocol and is served by the same driver.
func newStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "redis", "valkey":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// prepareCache empties the cache tree or evicts what expired while the
// gateway was down.
func prepareCache(ctx context.Context, objects *cache.Store, wipe bool, logger *zap.Logger) {
	if wipe {
		if err := objects.Clear(ctx); err != nil {
			logger.Error("Failed to clear cache", zap.Error(err))
			return
		}
		logger.Info("Cache cleared", zap.String("path", objects.Root()))
		return
	}
	n, err := objects.Sweep(ctx, "")
	if err != nil {
		logger.Warn("Startup sweep failed", zap.Error(err))
	}
	if n > 0 {
		logger.Info("Evicted expired studies", zap.Int("count", n))
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
