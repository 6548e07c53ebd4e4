package service

import (
	"context"
	"errors"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
	"github.com/lapasovanvarbek/mini-twitter/internal/realtime"
	"github.com/lapasovanvarbek/mini-twitter/internal/repository"
)

var (
	ErrFollowSelf   = errors.New("cannot follow self")
	ErrUserNotFound = errors.New("user not found")
)

// RelationshipService 关系链服务
type RelationshipService interface {
	// Follow 返回 already=true 表示此前已关注（幂等 no-op，计数不变）
	Follow(ctx context.Context, fromUserID, toUserID string) (already bool, err error)
	Unfollow(ctx context.Context, fromUserID, toUserID string) (removed bool, err error)
	IsFollowing(ctx context.Context, fromUserID, toUserID string) (bool, error)
	ListFollowers(ctx context.Context, username string, page, pageSize int) ([]model.UserSnapshot, error)
	ListFollowing(ctx context.Context, username string, page, pageSize int) ([]model.UserSnapshot, error)
}

type relationshipService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	pusher     realtime.Pusher
}

func NewRelationshipService(followRepo repository.FollowRepository, userRepo repository.UserRepository, pusher realtime.Pusher) RelationshipService {
	return &relationshipService{followRepo: followRepo, userRepo: userRepo, pusher: pusher}
}

func (s *relationshipService) Follow(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	if fromUserID == toUserID {
		return false, ErrFollowSelf
	}
	followee, err := s.userRepo.FindByID(ctx, toUserID)
	if err != nil {
		return false, err
	}
	if followee == nil {
		return false, ErrUserNotFound
	}
	created, err := s.followRepo.Create(ctx, fromUserID, toUserID)
	if err != nil {
		return false, err
	}
	if !created {
		return true, nil
	}
	if s.pusher != nil {
		if follower, fErr := s.userRepo.FindByID(ctx, fromUserID); fErr == nil && follower != nil {
			s.pusher.Notify(toUserID, realtime.NewFollower(follower.Snapshot()))
		}
	}
	return false, nil
}

func (s *relationshipService) Unfollow(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	followee, err := s.userRepo.FindByID(ctx, toUserID)
	if err != nil {
		return false, err
	}
	if followee == nil {
		return false, ErrUserNotFound
	}
	return s.followRepo.Delete(ctx, fromUserID, toUserID)
}

func (s *relationshipService) IsFollowing(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	return s.followRepo.Exists(ctx, fromUserID, toUserID)
}

func (s *relationshipService) ListFollowers(ctx context.Context, username string, page, pageSize int) ([]model.UserSnapshot, error) {
	user, offset, limit, err := s.resolvePage(ctx, username, page, pageSize)
	if err != nil {
		return nil, err
	}
	users, err := s.followRepo.ListFollowers(ctx, user.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	return snapshots(users), nil
}

func (s *relationshipService) ListFollowing(ctx context.Context, username string, page, pageSize int) ([]model.UserSnapshot, error) {
	user, offset, limit, err := s.resolvePage(ctx, username, page, pageSize)
	if err != nil {
		return nil, err
	}
	users, err := s.followRepo.ListFollowing(ctx, user.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	return snapshots(users), nil
}

func (s *relationshipService) resolvePage(ctx context.Context, username string, page, pageSize int) (*model.User, int, int, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, 0, 0, err
	}
	if user == nil {
		return nil, 0, 0, ErrUserNotFound
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return user, (page - 1) * pageSize, pageSize, nil
}

func snapshots(users []*model.User) []model.UserSnapshot {
	res := make([]model.UserSnapshot, len(users))
	for i, u := range users {
		res[i] = u.Snapshot()
	}
	return res
}
