package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lapasovanvarbek/mini-twitter/config"
	"github.com/lapasovanvarbek/mini-twitter/internal/queue"
	"github.com/lapasovanvarbek/mini-twitter/internal/realtime"
	"github.com/lapasovanvarbek/mini-twitter/internal/repository"
	"github.com/lapasovanvarbek/mini-twitter/internal/service"
	"github.com/lapasovanvarbek/mini-twitter/pkg/cache"
	"github.com/lapasovanvarbek/mini-twitter/pkg/database"
	"github.com/lapasovanvarbek/mini-twitter/pkg/logger"
)

func must[T any](v T, err error) T { if err != nil { panic(err) }; return v }

// 独立扇出 worker 进程：与 API 共享同一个 Redis 队列，可水平扩容。
// 没有本进程的 websocket 注册表，实时推送由各 API 实例自理，
// 这里的 pusher 为空即“无在线监听者”。
func main() {
	cfg := must(config.Load())
	if err := logger.Init(cfg.Server.Mode); err != nil { panic(err) }
	defer logger.Sync()

	db := must(database.InitDB(cfg))
	rdb := must(cache.InitRedis(cfg))

	followRepo := repository.NewFollowRepository(db)
	postRepo := repository.NewPostRepository(db)
	inboxRepo := repository.NewInboxRepository(db)

	var noPusher realtime.Pusher // nil：纯写入，不推送
	timelineService := service.NewTimelineService(followRepo, inboxRepo, postRepo, noPusher)

	fanoutQueue := queue.New(rdb, "timeline", queue.Options{
		MaxAttempts:      cfg.Queue.MaxAttempts,
		BackoffBase:      cfg.Queue.BackoffBase,
		LeaseTTL:         cfg.Queue.LeaseTTL,
		CompletedMaxAge:  cfg.Queue.CompletedMaxAge,
		CompletedMaxSize: cfg.Queue.CompletedMaxSize,
		FailedMaxAge:     cfg.Queue.FailedMaxAge,
	})

	consumer := queue.NewConsumer(fanoutQueue, service.FanoutHandler(timelineService), cfg.Queue.Workers)
	stop := consumer.Start()
	sweeper := queue.NewSweeper(fanoutQueue)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("sweeper start failed", zap.Error(err))
	}
	logger.Info("fanout worker started", zap.Int("workers", cfg.Queue.Workers))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sweeper.Stop()
	_ = stop(ctx)
}
