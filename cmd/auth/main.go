package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/theseyan/418-nits-hacks/internal/adapter/cache"
	"github.com/theseyan/418-nits-hacks/internal/adapter/captcha"
	"github.com/theseyan/418-nits-hacks/internal/adapter/identity"
	"github.com/theseyan/418-nits-hacks/internal/config"
	httptransport "github.com/theseyan/418-nits-hacks/internal/http"
	"github.com/theseyan/418-nits-hacks/internal/http/handler"
	"github.com/theseyan/418-nits-hacks/internal/http/middleware"
	"github.com/theseyan/418-nits-hacks/internal/repository"
	"github.com/theseyan/418-nits-hacks/internal/server"
	"github.com/theseyan/418-nits-hacks/internal/service"
	"github.com/theseyan/418-nits-hacks/internal/telemetry"
	"github.com/theseyan/418-nits-hacks/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newTokenLedger,
			newAuthCodeStore,
			newIdentityVerifier,
			newCaptchaVerifier,
			newTokenIssuer,
			service.NewAuthService,
			handler.NewAuthHandler,
			newAuthMiddleware,
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

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newTokenLedger(pool *pgxpool.Pool) repository.RefreshTokenLedger {
	return repository.NewPostgresTokenLedger(pool)
}

// newAuthCodeStore picks Redis when configured, otherwise the in-process map.
// The memory store is only safe for single-instance deployments.
func newAuthCodeStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (repository.AuthCodeStore, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, using in-memory authorization code store")
		return cacheadapter.NewMemoryCodeStore(), nil
	}

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
	return cacheadapter.NewRedisCodeStore(client), nil
}

func newIdentityVerifier(cfg config.Config) identity.Verifier {
	return identity.NewGoogleVerifier(&http.Client{Timeout: 10 * time.Second}, cfg.GoogleClientIDs)
}

func newCaptchaVerifier(cfg config.Config) captcha.Verifier {
	if !cfg.CaptchaEnabled() {
		return nil
	}
	return captcha.NewTurnstileVerifier(&http.Client{Timeout: 10 * time.Second}, cfg.TurnstileSecret)
}

func newTokenIssuer(cfg config.Config) (*token.Issuer, error) {
	accessKey, err := token.LoadRSAPrivateKey(cfg.AccessKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load access token key: %w", err)
	}
	refreshKey, err := token.LoadRSAPrivateKey(cfg.RefreshKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load refresh token key: %w", err)
	}
	return token.NewIssuer(accessKey, refreshKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL), nil
}

func newAuthMiddleware(authService *service.AuthService) *middleware.Auth {
	return middleware.NewAuth(authService)
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

			logger.Info("http server listening", zap.String("addr", addr))
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
