package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
	"github.com/lapasovanvarbek/mini-twitter/internal/realtime"
	"github.com/lapasovanvarbek/mini-twitter/internal/repository"
	"github.com/lapasovanvarbek/mini-twitter/pkg/logger"
)

var (
	ErrPostNotFound   = errors.New("post not found")
	ErrNotPostAuthor  = errors.New("can only delete your own posts")
	ErrContentTooLong = errors.New("content exceeds 280 characters")
	ErrContentEmpty   = errors.New("content is empty")
)

var (
	mentionRe = regexp.MustCompile(`@(\w+)`)
	hashtagRe = regexp.MustCompile(`#(\w+)`)
)

// Enqueuer 扇出任务投递入口；生产走 Redis 队列，测试可替换。
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)
}

// PostService 帖子读写与发帖触发扇出
type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	timeline *TimelineService
	enqueuer Enqueuer
	pusher   realtime.Pusher
}

func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository, timeline *TimelineService, enqueuer Enqueuer, pusher realtime.Pusher) *PostService {
	return &PostService{postRepo: postRepo, userRepo: userRepo, timeline: timeline, enqueuer: enqueuer, pusher: pusher}
}

// Create 落地帖子并投递扇出任务。
//
// 投递与请求同步完成（返回前任务已入队或已确定失败），扇出本身异步执行，
// 调用方不等待。投递失败只降级：帖子创建照常成功，错误记日志 + 上报，
// 后果是 feed 暂时不更新，而非发帖失败。
func (s *PostService) Create(ctx context.Context, authorID, content string, replyToPostID *string) (*model.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrContentEmpty
	}
	if len([]rune(content)) > 280 {
		return nil, ErrContentTooLong
	}
	author, err := s.userRepo.FindByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, ErrUserNotFound
	}

	post := &model.Post{
		ID:       uuid.New().String(),
		AuthorID: authorID,
		Content:  content,
		Hashtags: extractHashtags(content),
	}

	var mentioned []*model.User
	if names := extractMentions(content); len(names) > 0 {
		mentioned, err = s.userRepo.FindByUsernames(ctx, names)
		if err != nil {
			return nil, err
		}
		for _, u := range mentioned {
			post.Mentions = append(post.Mentions, u.ID)
		}
	}

	if replyToPostID != nil {
		original, oErr := s.postRepo.FindByID(ctx, *replyToPostID)
		if oErr != nil {
			return nil, oErr
		}
		if original == nil {
			return nil, ErrPostNotFound
		}
		post.IsReply = true
		post.ReplyToPostID = replyToPostID
		post.ReplyToUserID = &original.AuthorID
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	if _, qErr := s.enqueuer.Enqueue(ctx, JobFanoutPost, FanoutJob{PostID: post.ID, AuthorID: authorID}); qErr != nil {
		logger.Error("fanout enqueue failed, feed will be stale",
			zap.String("post", post.ID), zap.String("author", authorID), zap.Error(qErr))
		sentry.CaptureException(qErr)
	}

	if s.pusher != nil {
		for _, u := range mentioned {
			if u.ID == authorID {
				continue
			}
			s.pusher.Notify(u.ID, realtime.Mentioned(post.ID, author.Snapshot()))
		}
	}
	return post, nil
}

func (s *PostService) GetByID(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *PostService) ListByAuthor(ctx context.Context, username string, page, pageSize int) ([]*model.Post, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.postRepo.ListByAuthor(ctx, user.ID, (page-1)*pageSize, pageSize)
}

func (s *PostService) ListRecent(ctx context.Context, page, pageSize int) ([]*model.Post, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.postRepo.ListRecent(ctx, (page-1)*pageSize, pageSize)
}

// Like 返回 already=true 表示此前已点赞（幂等 no-op）。
func (s *PostService) Like(ctx context.Context, userID, postID string) (bool, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return false, err
	}
	if post == nil {
		return false, ErrPostNotFound
	}
	liked, err := s.postRepo.Like(ctx, userID, postID)
	if err != nil {
		return false, err
	}
	if !liked {
		return true, nil
	}
	if s.pusher != nil && post.AuthorID != userID {
		if liker, lErr := s.userRepo.FindByID(ctx, userID); lErr == nil && liker != nil {
			s.pusher.Notify(post.AuthorID, realtime.PostLiked(postID, liker.Snapshot()))
		}
	}
	return false, nil
}

func (s *PostService) Unlike(ctx context.Context, userID, postID string) (bool, error) {
	removed, err := s.postRepo.Unlike(ctx, userID, postID)
	if err != nil {
		return false, err
	}
	return !removed, nil
}

// Delete 仅作者可删；删除后级联清理各用户时间线条目。
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return ErrPostNotFound
	}
	if post.AuthorID != userID {
		return ErrNotPostAuthor
	}
	if err := s.postRepo.Delete(ctx, post); err != nil {
		return err
	}
	return s.timeline.RemovePost(ctx, postID)
}

func extractMentions(content string) []string {
	matches := mentionRe.FindAllStringSubmatch(content, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

func extractHashtags(content string) []string {
	matches := hashtagRe.FindAllStringSubmatch(content, -1)
	tags := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
