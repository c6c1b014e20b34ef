package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/policy"
	"storefront/internal/realtime"
	"storefront/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx := context.Background()
	gdb, closeDB, err := db.Open(ctx, db.Config{
		Driver:   cfg.DBDriver,
		URL:      cfg.DatabaseURL,
		Debug:    cfg.DBDebug,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.Migrate(ctx, gdb); err != nil {
		log.Fatal(err)
	}

	pol := policy.Default()
	broker := realtime.NewBroker(pol, cfg.RealtimeBuffer, logger)

	// Without Redis, events only reach this instance's subscribers.
	var notify realtime.Notifier = broker
	relayCtx, stopRelay := context.WithCancel(ctx)
	closeRedis := func() error { return nil }
	if cfg.RedisURL != "" {
		client, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal(err)
		}
		closeRedis = client.Close
		relay := realtime.NewRelay(client, cfg.RealtimeChannel, broker, logger)
		notify = relay
		go func() {
			if err := relay.Run(relayCtx); err != nil {
				logger.Error("realtime relay stopped", "error", err)
			}
		}()
	}

	jwtMgr := auth.NewJWTManager(auth.JWTConfig{
		Issuer:       cfg.JWTIssuer,
		Secret:       cfg.JWTSecret,
		AccessTTLMin: cfg.AccessTokenTTLMin,
	})

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := server.NewRouter(server.Deps{
		DB:     gdb,
		JWT:    jwtMgr,
		Policy: pol,
		Notify: notify,
		Broker: broker,
		Log:    logger,
	})
	if err != nil {
		log.Fatal(err)
	}

	srv := server.New(cfg.HTTPAddr, router, logger)
	srv.OnShutdown(broker.Close)
	listenErr := srv.Start()
	go func() {
		if err := <-listenErr; err != nil {
			log.Fatal(err)
		}
	}()

	timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	wait := gfshutdown.GracefulShutdown(ctx, timeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			err := srv.Stop(ctx)
			stopRelay()
			return errors.Join(err, closeRedis(), closeDB())
		},
	})

	exitCode := <-wait
	logger.Info("storefront exited", "code", exitCode)
	os.Exit(exitCode)
}

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
