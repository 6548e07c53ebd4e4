package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
	"github.com/lapasovanvarbek/mini-twitter/internal/repository"
	"github.com/lapasovanvarbek/mini-twitter/pkg/token"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthService 注册 / 登录与令牌签发
type AuthService struct {
	userRepo repository.UserRepository
	maker    *token.Maker
}

func NewAuthService(userRepo repository.UserRepository, maker *token.Maker) *AuthService {
	return &AuthService{userRepo: userRepo, maker: maker}
}

func (s *AuthService) Register(ctx context.Context, username, email, password, displayName string) (*model.User, string, error) {
	if existing, err := s.userRepo.FindByUsername(ctx, username); err != nil {
		return nil, "", err
	} else if existing != nil {
		return nil, "", ErrUsernameTaken
	}
	if existing, err := s.userRepo.FindByEmail(ctx, email); err != nil {
		return nil, "", err
	} else if existing != nil {
		return nil, "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	user := &model.User{
		ID:          uuid.New().String(),
		Username:    username,
		Email:       email,
		Password:    string(hash),
		DisplayName: displayName,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", err
	}
	tok, err := s.maker.Issue(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}
	return user, tok, nil
}

func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*model.User, string, error) {
	user, err := s.userRepo.FindByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	tok, err := s.maker.Issue(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}
	return user, tok, nil
}
