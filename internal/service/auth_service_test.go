package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapasovanvarbek/mini-twitter/internal/repository"
	"github.com/lapasovanvarbek/mini-twitter/pkg/token"
)

func newAuthService(t *testing.T) (*AuthService, *token.Maker) {
	t.Helper()
	db := setupDB(t)
	maker := token.NewMaker("test-secret", time.Hour)
	return NewAuthService(repository.NewUserRepository(db), maker), maker
}

func TestRegisterAndLogin(t *testing.T) {
	svc, maker := newAuthService(t)
	ctx := context.Background()

	user, tok, err := svc.Register(ctx, "alice", "alice@example.com", "s3cret", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "s3cret", user.Password) // 存的是 bcrypt 散列

	uid, uname, err := maker.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, user.ID, uid)
	assert.Equal(t, "alice", uname)

	// 用户名或邮箱均可登录
	logged, _, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	logged, _, err = svc.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "alice", "alice@example.com", "s3cret", "")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "alice", "other@example.com", "s3cret", "")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, _, err = svc.Register(ctx, "bob", "alice@example.com", "s3cret", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

// 用户不存在和密码错误返回同一个错误，不泄露账号是否存在
func TestLoginInvalidCredentials(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "alice", "alice@example.com", "s3cret", "")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
