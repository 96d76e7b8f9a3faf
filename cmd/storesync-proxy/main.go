// Command storesync-proxy exposes the resource-protocol operations of one
// store over HTTP, next to health, readiness and Prometheus endpoints. With
// Redis configured the product listing is served from a snapshot kept for
// cache_ttl.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/storesync/pkg/cache"
	"github.com/Sternrassler/storesync/pkg/client"
	"github.com/Sternrassler/storesync/pkg/logging"
	"github.com/Sternrassler/storesync/pkg/ratelimit"
	"github.com/Sternrassler/storesync/pkg/rest"
)

func main() {
	cfg, err := loadConfig(newViper())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(logging.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Output:  os.Stderr,
		Service: logging.DefaultService,
		Fields:  map[string]string{"store": cfg.StoreURL},
	})
	logger := logging.NewLogger(logging.ComponentProxy)

	restCfg := rest.DefaultConfig(cfg.StoreURL)
	restCfg.UserAgent = cfg.UserAgent
	if cfg.Token != "" {
		restCfg.Signer = bearer(cfg.Token)
	}
	resource, err := rest.New(restCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create resource client")
	}

	clientCfg := client.DefaultConfig()
	if cfg.RequestsPerSecond > 0 {
		rl := ratelimit.DefaultConfig()
		rl.RequestsPerSecond = cfg.RequestsPerSecond
		rl.Burst = 0
		clientCfg.Limiter = ratelimit.New(rl, logging.NewLogger(logging.ComponentRateLimit))
	}

	var (
		redisClient *redis.Client
		catalog     snapshotCache
	)
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Str("redis", cfg.RedisURL).Msg("Failed to connect to Redis")
		}
		catalog = cache.NewLookup(cache.NewManager(redisClient), cfg.StoreURL, cfg.CacheTTL)
		logger.Info().Str("redis", cfg.RedisURL).Dur("ttl", cfg.CacheTTL).Msg("Catalog snapshot cache enabled")
	}

	engine, err := client.New(nil, resource, clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create sync client")
	}

	srv := &server{
		sync:    engine,
		redis:   redisClient,
		catalog: catalog,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Starting storesync proxy")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
	logger.Info().Msg("Proxy stopped")
}

// bearer signs resource requests with a static access token.
func bearer(token string) rest.SignerFunc {
	return func(req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
}
