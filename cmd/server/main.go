package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/engageautomations/ghl-api-backend/internal/adapter/cache"
	"github.com/engageautomations/ghl-api-backend/internal/adapter/ghl"
	"github.com/engageautomations/ghl-api-backend/internal/config"
	httptransport "github.com/engageautomations/ghl-api-backend/internal/http"
	"github.com/engageautomations/ghl-api-backend/internal/http/handler"
	httpmiddleware "github.com/engageautomations/ghl-api-backend/internal/http/middleware"
	"github.com/engageautomations/ghl-api-backend/internal/repository"
	"github.com/engageautomations/ghl-api-backend/internal/secrets"
	"github.com/engageautomations/ghl-api-backend/internal/server"
	"github.com/engageautomations/ghl-api-backend/internal/service/installation"
	"github.com/engageautomations/ghl-api-backend/internal/service/locationtoken"
	"github.com/engageautomations/ghl-api-backend/internal/service/proxy"
	"github.com/engageautomations/ghl-api-backend/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newTokenCipher,
			newInstallationRepository,
			newDirectoryRepository,
			newRedisClient,
			newLocationTokenStore,
			newInstallStateStore,
			newGHLClient,
			newRateLimiter,
			installation.NewService,
			locationtoken.NewConverter,
			proxy.NewService,
			handler.NewOAuthHandler,
			handler.NewInstallationHandler,
			handler.NewDirectoryHandler,
			handler.NewProxyHandler,
			newInstallationResolver,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := repository.ApplyMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newTokenCipher(cfg config.Config) (*secrets.TokenCipher, error) {
	return secrets.NewTokenCipher(cfg.TokenEncryptionKey)
}

func newInstallationRepository(pool *pgxpool.Pool, cipher *secrets.TokenCipher) repository.InstallationRepository {
	return repository.NewPostgresInstallationRepo(pool, cipher)
}

func newDirectoryRepository(pool *pgxpool.Pool) repository.DirectoryRepository {
	return repository.NewPostgresDirectoryRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newLocationTokenStore(client redis.UniversalClient) repository.LocationTokenStore {
	return cacheadapter.NewRedisLocationTokenStore(client)
}

func newInstallStateStore(client redis.UniversalClient) repository.InstallStateStore {
	return cacheadapter.NewRedisInstallStateStore(client)
}

func newGHLClient(cfg config.Config) ghl.Client {
	return ghl.NewHTTPClient(ghl.Options{
		BaseURL:      cfg.APIBaseURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		APIVersion:   cfg.APIVersion,
		Timeout:      cfg.UpstreamTimeout,
	}, nil)
}

func newRateLimiter(cfg config.Config) *httpmiddleware.RateLimiter {
	return httpmiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newInstallationResolver(installations installation.Service) *httpmiddleware.InstallationResolver {
	return &httpmiddleware.InstallationResolver{Installations: installations}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
