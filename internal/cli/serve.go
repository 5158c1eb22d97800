package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"jobmate/marketplace-service/internal/config"
	"jobmate/marketplace-service/internal/db"
	"jobmate/marketplace-service/internal/grpcserver"
	"jobmate/marketplace-service/internal/marketplace"
	"jobmate/marketplace-service/internal/metrics"
	"jobmate/marketplace-service/internal/moderation"
	"jobmate/marketplace-service/internal/notify"
	"jobmate/marketplace-service/internal/ratelimit"
	"jobmate/marketplace-service/internal/scheduler"
	"jobmate/marketplace-service/internal/version"
)

// ServeCmd runs the HTTP and gRPC servers and the deadline sweep.
func ServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the marketplace HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the store schema before serving")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, migrate bool) error {
	logger := newLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Tracing ──────────────────────────────────────────────────────────────
	tp := newTracerProvider(cfg.TraceSampleRatio, logger)
	otel.SetTracerProvider(tp)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown error", "err", err)
		}
	}()

	// ── Store ────────────────────────────────────────────────────────────────
	logger.Info("connecting to store", "driver", cfg.StoreDriver)
	store, closeStore, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	// ── Redis (optional) ─────────────────────────────────────────────────────
	opts := []marketplace.Option{
		marketplace.WithUserDirectory(store),
		marketplace.WithModeration(moderation.New(cfg.BlockedTerms)),
		marketplace.WithLogger(logger),
	}
	if cfg.RedisURL != "" {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		opts = append(opts, marketplace.WithPublisher(notify.NewRedisPublisher(rdb)))
		logger.Info("redis connected, events enabled")
	} else {
		logger.Warn("REDIS_URL not set, domain events are disabled")
	}

	// ── Metrics ──────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts = append(opts, marketplace.WithMetrics(metrics.New(reg)))

	svc := marketplace.NewService(store, opts...)
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst})

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler(store))
	mux.Handle("GET /metrics", metrics.Handler(reg))
	marketplace.NewHandler(svc, limiter).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// ── gRPC server ──────────────────────────────────────────────────────────
	gs := grpcserver.NewGRPCServer(svc, limiter, logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	// ── Deadline sweep ───────────────────────────────────────────────────────
	sched := scheduler.New(svc, cfg.DeadlineSweepSpec, logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	errc := make(chan error, 2)
	go func() {
		logger.Info("http listening", "port", cfg.Port, "version", version.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("grpc listening", "port", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errc:
		logger.Error("server failed", "err", err)
		stop()
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "err", err)
	}
	gs.GracefulStop()
	logger.Info("stopped")
	return nil
}

func healthHandler(store backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if err := store.Ping(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  status,
			"service": "marketplace-service",
			"version": version.String(),
		})
	}
}

// MigrateCmd applies the store schema and exits.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, collections and indexes for the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			store, closeStore, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s schema up to date\n", cfg.StoreDriver)
			return nil
		},
	}
}
