// @title           Auth Service API
// @version         1.0
// @description     User registration, login, token refresh, password reset and profile management.
// @BasePath        /
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/99minutos/auth-service/internal/api"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/service"
	"github.com/99minutos/auth-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/auth-service/internal/infrastructure/db/redis"
	"github.com/99minutos/auth-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/99minutos/auth-service/internal/infrastructure/queue"
	"github.com/99minutos/auth-service/internal/infrastructure/scheduler"
	"github.com/99minutos/auth-service/internal/pkg/config"
	"github.com/99minutos/auth-service/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "auth-service",
		Env:     cfg.Env,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Get()
	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("auth service stopped with error")
	}
	log.Info().Msg("auth service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	// --- Credential store ---
	client, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect failed")
		}
	}()

	users := mongo.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

	// --- Optional refresh lock ---
	var (
		rdb    *goredis.Client
		locker service.RotationLocker
	)
	if cfg.Redis.Enabled {
		rdb, err = redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = redis.NewRefreshLock(rdb, cfg.Redis.LockTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	// --- Optional event stream ---
	var publisher ports.EventPublisher
	if cfg.AMQP.Enabled {
		amqpPub, err := rabbitmq.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer amqpPub.Close()

		workersCtx, cancelWorkers := context.WithCancel(context.Background())
		dispatcher := queue.NewDispatcher(cfg.AMQP.Workers, amqpPub, logger.Component("events"))
		dispatcher.Start(workersCtx)
		defer func() {
			cancelWorkers()
			dispatcher.Wait()
		}()
		publisher = dispatcher
		log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("publishing auth events")
	}

	// --- Core ---
	hasher := service.NewPasswordHasher(cfg.Bcrypt.Cost)
	tokens := service.NewTokenIssuer(users, service.TokenIssuerConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	}, locker, logger.Component("tokens"))
	resets := service.NewResetTokenGenerator(users, hasher, cfg.Reset.TTL)

	authService, err := service.NewAuthService(users, hasher, tokens, resets, publisher, logger.Component("auth"))
	if err != nil {
		return err
	}

	if cfg.AdminSeedEnabled() {
		admin, created, err := authService.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			return err
		}
		log.Info().Str("user_id", admin.ID).Bool("created", created).Msg("admin account ensured")
	}

	// --- Reset-token sweeper ---
	sweeper, err := scheduler.NewResetSweeper(cfg.Reset.SweepSchedule, users, logger.Component("sweeper"))
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		AuthService:    authService,
		Tokens:         tokens,
		Users:          users,
		Mongo:          client,
		Redis:          rdb,
		SwaggerEnabled: cfg.SwaggerEnabled,
		Logger:         logger.Component("http"),
	})

	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case err := <-srvErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	return nil
}
