package queue

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lapasovanvarbek/mini-twitter/pkg/logger"
)

// Sweeper 定时执行队列维护（到期搬运 / 租约回收 / 保留策略清理）。
type Sweeper struct {
	q *Queue
	c *cron.Cron
}

func NewSweeper(q *Queue) *Sweeper {
	return &Sweeper{q: q, c: cron.New()}
}

func (s *Sweeper) Start() error {
	_, err := s.c.AddFunc("@every 30s", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.q.Sweep(ctx); err != nil {
			logger.Warn("queue sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.c.Start()
	return nil
}

func (s *Sweeper) Stop() {
	<-s.c.Stop().Done()
}
