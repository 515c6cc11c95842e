package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fluxdbc"
	_ "fluxdbc/driver/mongo"
	_ "fluxdbc/driver/mysql"
	_ "fluxdbc/driver/pgx"
	_ "fluxdbc/driver/postgres"
	_ "fluxdbc/driver/redis"
	"fluxdbc/internal/config"
	"fluxdbc/internal/gateway"
	"fluxdbc/internal/keystore"
	"fluxdbc/metrics"
	"fluxdbc/pool"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	slog.Info("starting fluxdbc gateway", "env", cfg.AppEnv, "drivers", fluxdbc.Drivers())

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET not set")
		os.Exit(1)
	}
	if cfg.APISecret == "" {
		slog.Warn("API_SECRET not set; /query requests will be rejected")
	}

	gw, err := config.LoadGateway(cfg.GatewayFile)
	if err != nil {
		slog.Error("gateway file unusable", "path", cfg.GatewayFile, "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	sources := make(map[string]fluxdbc.ConnectionFactory, len(gw.Datasources))
	for name, rawURL := range gw.Datasources {
		opts, err := fluxdbc.ParseURL(rawURL)
		if err != nil {
			slog.Error("datasource URL unusable", "source", name, "error", err)
			os.Exit(1)
		}
		factory, err := fluxdbc.Discover(opts)
		if err != nil {
			slog.Error("no driver for datasource", "source", name, "error", err)
			os.Exit(1)
		}
		sources[name] = m.Wrap(pool.Wrap(factory, gw.Limits.MaxConnections))
		slog.Info("datasource ready",
			"source", name,
			"driver", factory.Metadata().Name(),
			"max_connections", gw.Limits.MaxConnections)
	}

	keys := buildKeystore(cfg, gw)
	if keys == nil {
		slog.Error("no api keys: gateway file has none and FLUXDBC_URL is not set")
		os.Exit(1)
	}

	server := gateway.NewServer(sources, gateway.Config{
		Keys:         keys,
		JWTSecret:    cfg.JWTSecret,
		APISecret:    cfg.APISecret,
		TokenTTL:     cfg.TokenTTL,
		MaxRows:      gw.Limits.MaxRows,
		QueryTimeout: gw.Limits.QueryTimeout.Std(),
	})

	mux := server.Routes()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: gateway.CORS(cfg.AllowedOrigins, cfg.AppEnv)(mux),
	}

	go func() {
		slog.Info("gateway listening", "port", cfg.ServerPort, "sources", len(sources))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("gateway shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	server.CloseSessions()
}

// buildKeystore prefers keys from the gateway file; without any it falls back
// to an api_keys table behind FLUXDBC_URL.
func buildKeystore(cfg *config.Config, gw *config.Gateway) keystore.Store {
	if len(gw.Keys) > 0 {
		hashes := make(map[string]string, len(gw.Keys))
		for _, k := range gw.Keys {
			hashes[k.ID] = k.Hash
		}
		slog.Info("api keys loaded from gateway file", "keys", len(gw.Keys))
		return keystore.NewStatic(hashes)
	}

	if cfg.DatabaseURL == "" {
		return nil
	}
	opts, err := fluxdbc.ParseURL(cfg.DatabaseURL)
	if err != nil {
		slog.Error("FLUXDBC_URL unusable", "error", err)
		os.Exit(1)
	}
	factory, err := fluxdbc.Discover(opts)
	if err != nil {
		slog.Error("no driver for FLUXDBC_URL", "error", err)
		os.Exit(1)
	}
	slog.Info("api keys served from database")
	return keystore.NewDatabase(pool.Wrap(factory, cfg.MaxConnections))
}
