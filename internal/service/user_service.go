package service

import (
	"context"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
	"github.com/lapasovanvarbek/mini-twitter/internal/repository"
)

// UserService 用户档案读写
type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile 仅允许更新展示字段。
func (s *UserService) UpdateProfile(ctx context.Context, userID, displayName, bio, profileImage string) (*model.User, error) {
	fields := map[string]interface{}{}
	if displayName != "" {
		fields["display_name"] = displayName
	}
	if bio != "" {
		fields["bio"] = bio
	}
	if profileImage != "" {
		fields["profile_image"] = profileImage
	}
	if len(fields) > 0 {
		if err := s.userRepo.UpdateProfile(ctx, userID, fields); err != nil {
			return nil, err
		}
	}
	return s.GetByID(ctx, userID)
}
