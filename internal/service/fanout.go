package service

import (
	"context"
	"errors"

	"github.com/lapasovanvarbek/mini-twitter/internal/queue"
)

// JobFanoutPost 扇出任务类型名
const JobFanoutPost = "fan-out-post"

// FanoutJob 扇出任务载荷
type FanoutJob struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
}

// FanoutHandler 返回绑定 TimelineService 的队列处理函数。
// 载荷不完整属于永久错误；其余错误交回队列走重试/退避。
func FanoutHandler(tl *TimelineService) queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		var p FanoutJob
		if err := job.Decode(&p); err != nil {
			return err
		}
		if p.PostID == "" || p.AuthorID == "" {
			return queue.Permanent(errors.New("fanout job missing post_id or author_id"))
		}
		return tl.FanOut(ctx, p.PostID, p.AuthorID)
	}
}
