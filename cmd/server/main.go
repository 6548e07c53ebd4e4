package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/lapasovanvarbek/mini-twitter/config"
	"github.com/lapasovanvarbek/mini-twitter/internal/api"
	"github.com/lapasovanvarbek/mini-twitter/internal/api/handler"
	"github.com/lapasovanvarbek/mini-twitter/internal/queue"
	"github.com/lapasovanvarbek/mini-twitter/internal/realtime"
	"github.com/lapasovanvarbek/mini-twitter/internal/repository"
	"github.com/lapasovanvarbek/mini-twitter/internal/service"
	"github.com/lapasovanvarbek/mini-twitter/pkg/cache"
	"github.com/lapasovanvarbek/mini-twitter/pkg/database"
	"github.com/lapasovanvarbek/mini-twitter/pkg/logger"
	"github.com/lapasovanvarbek/mini-twitter/pkg/token"
	"github.com/lapasovanvarbek/mini-twitter/pkg/tracer"
)

func must[T any](v T, err error) T { if err != nil { panic(err) }; return v }

func main() {
	cfg := must(config.Load())
	if err := logger.Init(cfg.Server.Mode); err != nil { panic(err) }
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()
	shutdownTracer := must(tracer.Init(ctx, "mini-twitter", cfg))
	defer func() { _ = shutdownTracer(ctx) }()

	db := must(database.InitDB(cfg))
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}
	rdb := must(cache.InitRedis(cfg))

	maker := token.NewMaker(cfg.JWT.Secret, cfg.JWT.TTL)

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	postRepo := repository.NewPostRepository(db)
	inboxRepo := repository.NewInboxRepository(db)

	registry := realtime.NewRegistry()
	notifier := realtime.NewNotifier(registry, 0)
	stopNotifier := notifier.Start(4)
	gateway := realtime.NewGateway(registry, maker)

	fanoutQueue := queue.New(rdb, "timeline", queue.Options{
		MaxAttempts:      cfg.Queue.MaxAttempts,
		BackoffBase:      cfg.Queue.BackoffBase,
		LeaseTTL:         cfg.Queue.LeaseTTL,
		CompletedMaxAge:  cfg.Queue.CompletedMaxAge,
		CompletedMaxSize: cfg.Queue.CompletedMaxSize,
		FailedMaxAge:     cfg.Queue.FailedMaxAge,
	})

	timelineService := service.NewTimelineService(followRepo, inboxRepo, postRepo, notifier)
	authService := service.NewAuthService(userRepo, maker)
	userService := service.NewUserService(userRepo)
	relService := service.NewRelationshipService(followRepo, userRepo, notifier)
	postService := service.NewPostService(postRepo, userRepo, timelineService, fanoutQueue, notifier)

	// 内嵌扇出 worker；大规模部署用 cmd/worker 独立扩容
	consumer := queue.NewConsumer(fanoutQueue, service.FanoutHandler(timelineService), cfg.Queue.Workers)
	stopConsumer := consumer.Start()
	sweeper := queue.NewSweeper(fanoutQueue)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("sweeper start failed", zap.Error(err))
	}

	h := handler.New(authService, userService, postService, relService, timelineService, fanoutQueue)
	router := api.NewRouter(cfg, h, gateway, maker)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sweeper.Stop()
	_ = stopConsumer(shutdownCtx)
	_ = stopNotifier(shutdownCtx)
}
