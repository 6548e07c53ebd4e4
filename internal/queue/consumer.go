package queue

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/lapasovanvarbek/mini-twitter/pkg/logger"
)

// Handler 处理一个任务。返回 nil 确认完成；返回 Permanent 包装的错误直接进死信；
// 其余错误按退避策略重试，超出 MaxAttempts 后进死信。
type Handler func(ctx context.Context, job *Job) error

// Consumer 并发 worker 池，持续领取并处理任务。
// 同一作者的多个任务可能乱序或并发执行，下游写入必须幂等。
type Consumer struct {
	q       *Queue
	handler Handler
	workers int
	block   time.Duration
}

func NewConsumer(q *Queue, handler Handler, workers int) *Consumer {
	if workers <= 0 {
		workers = 4
	}
	return &Consumer{q: q, handler: handler, workers: workers, block: time.Second}
}

// Start 启动 worker 池；返回停止函数（等待在途任务落定）。
func (c *Consumer) Start() func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	for i := 0; i < c.workers; i++ {
		go c.loop(stop, done)
	}
	return func(ctx context.Context) error {
		close(stop)
		for i := 0; i < c.workers; i++ {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
}

func (c *Consumer) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	// Redis 故障时用指数退避轮询，避免打爆连接
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	for {
		select {
		case <-stop:
			return
		default:
		}
		ctx := context.Background()
		if _, err := c.q.PromoteDue(ctx); err != nil {
			logger.Warn("queue promote failed", zap.Error(err))
		}
		job, err := c.q.Claim(ctx, c.block)
		if errors.Is(err, ErrEmpty) {
			bo.Reset()
			continue
		}
		if err != nil {
			wait := bo.NextBackOff()
			logger.Error("queue claim failed", zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-stop:
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
		c.process(ctx, job)
	}
}

func (c *Consumer) process(ctx context.Context, job *Job) {
	hctx, cancel := context.WithTimeout(ctx, c.q.Opts().LeaseTTL)
	defer cancel()
	err := c.handler(hctx, job)
	switch {
	case err == nil:
		if aErr := c.q.Ack(ctx, job); aErr != nil {
			logger.Error("queue ack failed", zap.String("job", job.ID), zap.Error(aErr))
		}
	case IsPermanent(err):
		logger.Error("job failed permanently",
			zap.String("job", job.ID), zap.String("type", job.Type), zap.Error(err))
		if fErr := c.q.Fail(ctx, job, err); fErr != nil {
			logger.Error("queue fail failed", zap.String("job", job.ID), zap.Error(fErr))
		}
	case job.Attempts >= job.MaxAttempts:
		logger.Error("job exhausted attempts, moving to failed set",
			zap.String("job", job.ID), zap.String("type", job.Type),
			zap.Int("attempts", job.Attempts), zap.Error(err))
		if fErr := c.q.Fail(ctx, job, err); fErr != nil {
			logger.Error("queue fail failed", zap.String("job", job.ID), zap.Error(fErr))
		}
	default:
		logger.Warn("job failed, scheduling retry",
			zap.String("job", job.ID), zap.String("type", job.Type),
			zap.Int("attempts", job.Attempts), zap.Error(err))
		if rErr := c.q.Retry(ctx, job, err); rErr != nil {
			logger.Error("queue retry failed", zap.String("job", job.ID), zap.Error(rErr))
		}
	}
}
