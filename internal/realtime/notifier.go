package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lapasovanvarbek/mini-twitter/pkg/logger"
)

type pushJob struct {
	userID string
	event  Event
}

// Pusher 推送入口；业务层依赖该接口，测试里可替换为记录型实现。
type Pusher interface {
	Notify(userID string, ev Event)
}

// Notifier 有界异步推送执行器。推送是 best-effort：
// 队列满时丢弃并告警，绝不反压或失败到业务路径。
type Notifier struct {
	registry *Registry
	ch       chan pushJob
}

func NewNotifier(registry *Registry, queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &Notifier{registry: registry, ch: make(chan pushJob, queueSize)}
}

func (n *Notifier) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case job := <-n.ch:
					n.registry.Push(job.userID, job.event)
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		// 等待队列自然排空一小段时间
		timeout := time.After(2 * time.Second)
		for {
			select {
			case <-timeout:
				return nil
			default:
				if len(n.ch) == 0 {
					return nil
				}
				time.Sleep(50 * time.Millisecond)
			}
		}
	}
}

func (n *Notifier) Notify(userID string, ev Event) {
	select {
	case n.ch <- pushJob{userID: userID, event: ev}:
	default:
		logger.Warn("notifier queue full, drop event",
			zap.String("user", userID), zap.String("type", ev.Type))
	}
}

// QueueLen 当前积压长度（采样值）。
func (n *Notifier) QueueLen() int { return len(n.ch) }
