// Command efficio-server serves the efficio account API over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
	"github.com/ghost-in-the-sushi/efficio-webapp/httpapi"
	"github.com/ghost-in-the-sushi/efficio-webapp/internal/stores"
	"github.com/ghost-in-the-sushi/efficio-webapp/metrics/export/prometheus"
)

func main() {
	cfg, err := ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg Config, out io.Writer) *slog.Logger {
	level, _ := cfg.level()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

func openRedis(cfg Config, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.Memory {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Warn("using in-memory store, data is lost on exit", "addr", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return client, func() { _ = client.Close() }, nil
}

// newServer builds the engine and the router. The caller closes the engine;
// the Redis client stays with the caller too.
func newServer(cfg Config, rdb redis.UniversalClient, logger *slog.Logger, auditOut io.Writer) (http.Handler, *efficio.Engine, error) {
	engineCfg := cfg.EngineConfig()
	for _, w := range engineCfg.Lint() {
		logger.Warn("configuration warning", "code", w.Code, "message", w.Message)
	}

	resources := stores.NewResources(rdb)
	builder := efficio.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithResourceDeleter(resources).
		WithLogger(logger)
	if cfg.Audit {
		builder = builder.WithAuditSink(efficio.NewJSONWriterSink(auditOut))
	}

	engine, err := builder.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build engine: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.New(engine, resources, logger))
	if cfg.Metrics {
		mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(engine).Handler())
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if _, err := engine.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return mux, engine, nil
}

func run(ctx context.Context, cfg Config, logOut io.Writer) error {
	logger := newLogger(cfg, logOut)

	rdb, closeRedis, err := openRedis(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	handler, engine, err := newServer(cfg, rdb, logger, logOut)
	if err != nil {
		return err
	}
	defer engine.Close()

	rtt, err := engine.Ping(ctx)
	if err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	logger.Info("redis reachable", "rtt", rtt)

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("efficio ready for requests", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
