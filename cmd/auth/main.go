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

	cacheadapter "github.com/smallbiznis/teamdocs-auth/internal/adapter/cache"
	googleadapter "github.com/smallbiznis/teamdocs-auth/internal/adapter/google"
	"github.com/smallbiznis/teamdocs-auth/internal/bootstrap"
	"github.com/smallbiznis/teamdocs-auth/internal/config"
	"github.com/smallbiznis/teamdocs-auth/internal/db"
	httptransport "github.com/smallbiznis/teamdocs-auth/internal/http"
	"github.com/smallbiznis/teamdocs-auth/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/teamdocs-auth/internal/http/middleware"
	"github.com/smallbiznis/teamdocs-auth/internal/identity"
	apimiddleware "github.com/smallbiznis/teamdocs-auth/internal/middleware"
	"github.com/smallbiznis/teamdocs-auth/internal/provision"
	"github.com/smallbiznis/teamdocs-auth/internal/repository"
	"github.com/smallbiznis/teamdocs-auth/internal/server"
	signinsvc "github.com/smallbiznis/teamdocs-auth/internal/service/signin"
	"github.com/smallbiznis/teamdocs-auth/internal/session"
	"github.com/smallbiznis/teamdocs-auth/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newTeamRepository,
			newUserRepository,
			newCollectionRepository,
			newRedisClient,
			newStateStore,
			newGoogleClient,
			newSeeder,
			newProvisioner,
			newSigner,
			newSigninService,
			newRateLimiter,
			handler.NewSigninHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, migrate, startHTTPServer),
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
	node, err := snowflake.NewNode(1)
	return node, err
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

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newTeamRepository(pool *pgxpool.Pool) repository.TeamRepository {
	return repository.NewPostgresTeamRepo(pool)
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newCollectionRepository(pool *pgxpool.Pool) repository.CollectionRepository {
	return repository.NewPostgresCollectionRepo(pool)
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

func newStateStore(client redis.UniversalClient) repository.SigninStateStore {
	return cacheadapter.NewRedisStateStore(client)
}

func newGoogleClient(cfg config.Config) (identity.HandshakeClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return googleadapter.New(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL())
}

func newSeeder(collections repository.CollectionRepository, node *snowflake.Node) *bootstrap.Seeder {
	return bootstrap.NewSeeder(collections, node)
}

func newProvisioner(teams repository.TeamRepository, users repository.UserRepository, seeder *bootstrap.Seeder, node *snowflake.Node, logger *zap.Logger) *provision.Provisioner {
	return provision.NewProvisioner(teams, users, seeder, node, logger)
}

func newSigner(cfg config.Config) *session.Signer {
	return session.NewSigner([]byte(cfg.SessionSecret), cfg.PublicURL, cfg.SessionTTL)
}

func newSigninService(handshake identity.HandshakeClient, stateStore repository.SigninStateStore, provisioner *provision.Provisioner, signer *session.Signer, logger *zap.Logger) signinsvc.Service {
	return signinsvc.NewService(handshake, googleadapter.ProviderName, stateStore, provisioner, signer, logger)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newAuthMiddleware(signer *session.Signer) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Signer: signer}
}

func migrate(lc fx.Lifecycle, pool *pgxpool.Pool) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return db.Migrate(ctx, pool)
		},
	})
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
