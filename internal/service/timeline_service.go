package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
	"github.com/lapasovanvarbek/mini-twitter/internal/queue"
	"github.com/lapasovanvarbek/mini-twitter/internal/realtime"
	"github.com/lapasovanvarbek/mini-twitter/internal/repository"
)

// fanoutBatchSize 单次落库的 inbox 批大小
const fanoutBatchSize = 500

// TimelineService 物化时间线：扇出写入与 feed 读取
type TimelineService struct {
	followRepo repository.FollowRepository
	inboxRepo  repository.InboxRepository
	postRepo   repository.PostRepository
	pusher     realtime.Pusher
}

func NewTimelineService(followRepo repository.FollowRepository, inboxRepo repository.InboxRepository, postRepo repository.PostRepository, pusher realtime.Pusher) *TimelineService {
	return &TimelineService{followRepo: followRepo, inboxRepo: inboxRepo, postRepo: postRepo, pusher: pusher}
}

// FanOut 把一篇帖子物化到作者与全部粉丝的时间线。
//
// 粉丝集在任务执行时评估，而非发帖时：发帖到任务执行之间新增的关注者会
// 收到该帖，同窗口内取关的用户不会——这是有意保留并记录在案的竞态。
// 写入幂等（(user_id, post_id) 唯一键 + DoNothing），at-least-once 重投递安全。
// 推送严格发生在全部 inbox 写入成功之后，保证收到推送的客户端一定能读到对应条目。
func (s *TimelineService) FanOut(ctx context.Context, postID, authorID string) error {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		// 帖子已不存在，重试无意义
		return queue.Permanent(ErrPostNotFound)
	}

	followerIDs, err := s.followRepo.ListFollowerIDs(ctx, authorID)
	if err != nil {
		return err
	}

	owners := append([]string{authorID}, followerIDs...)
	score := time.Now().UnixNano()
	now := time.Now()
	for start := 0; start < len(owners); start += fanoutBatchSize {
		end := start + fanoutBatchSize
		if end > len(owners) {
			end = len(owners)
		}
		entries := make([]model.Inbox, 0, end-start)
		for _, owner := range owners[start:end] {
			entries = append(entries, model.Inbox{
				ID:        uuid.New().String(),
				UserID:    owner,
				PostID:    postID,
				Score:     score,
				CreatedAt: now,
			})
		}
		if err := s.inboxRepo.BulkInsert(ctx, entries); err != nil {
			return err
		}
	}

	if s.pusher != nil {
		ev := realtime.NewPost(post)
		for _, fid := range followerIDs {
			s.pusher.Notify(fid, ev)
		}
	}
	return nil
}

// GetHomeTimeline 按时间线条目顺序返回水合后的帖子。
func (s *TimelineService) GetHomeTimeline(ctx context.Context, userID string, page, limit int) ([]*model.Post, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	entries, err := s.inboxRepo.Page(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []*model.Post{}, nil
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.PostID
	}
	posts, err := s.postRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	// 保持条目顺序；已删除的帖子跳过
	out := make([]*model.Post, 0, len(entries))
	for _, e := range entries {
		if p, ok := byID[e.PostID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// RemovePost 帖子删除的级联钩子：清掉所有用户时间线里的该帖条目。
func (s *TimelineService) RemovePost(ctx context.Context, postID string) error {
	return s.inboxRepo.DeleteByPost(ctx, postID)
}
