package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
	"github.com/lapasovanvarbek/mini-twitter/internal/realtime"
	"github.com/lapasovanvarbek/mini-twitter/internal/repository"
)

type postFixture struct {
	db       *gorm.DB
	svc      *PostService
	timeline *TimelineService
	pusher   *recordingPusher
	enq      *stubEnqueuer
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()
	db := setupDB(t)
	pusher := &recordingPusher{}
	enq := &stubEnqueuer{}
	postRepo := repository.NewPostRepository(db)
	userRepo := repository.NewUserRepository(db)
	timeline := NewTimelineService(repository.NewFollowRepository(db), repository.NewInboxRepository(db), postRepo, pusher)
	svc := NewPostService(postRepo, userRepo, timeline, enq, pusher)
	return &postFixture{db: db, svc: svc, timeline: timeline, pusher: pusher, enq: enq}
}

// 发帖成功后扇出任务必须已入队，payload 指向新帖
func TestCreateEnqueuesFanout(t *testing.T) {
	f := newPostFixture(t)
	a := seedUser(t, f.db, "alice")

	post, err := f.svc.Create(context.Background(), a.ID, "hello world", nil)
	require.NoError(t, err)

	jobs := f.enq.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, JobFanoutPost, jobs[0].Type)
	job, ok := jobs[0].Payload.(FanoutJob)
	require.True(t, ok)
	assert.Equal(t, post.ID, job.PostID)
	assert.Equal(t, a.ID, job.AuthorID)
}

// 投递失败只降级：发帖照常成功
func TestCreateSurvivesEnqueueFailure(t *testing.T) {
	f := newPostFixture(t)
	a := seedUser(t, f.db, "alice")
	f.enq.err = errors.New("queue unavailable")

	post, err := f.svc.Create(context.Background(), a.ID, "hello", nil)
	require.NoError(t, err)
	require.NotNil(t, post)

	stored, err := f.svc.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Content)
}

func TestCreateContentValidation(t *testing.T) {
	f := newPostFixture(t)
	a := seedUser(t, f.db, "alice")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, a.ID, "   ", nil)
	assert.ErrorIs(t, err, ErrContentEmpty)

	_, err = f.svc.Create(ctx, a.ID, strings.Repeat("悟", 281), nil)
	assert.ErrorIs(t, err, ErrContentTooLong)

	// 恰好 280 个 rune 合法
	_, err = f.svc.Create(ctx, a.ID, strings.Repeat("悟", 280), nil)
	assert.NoError(t, err)
}

// @提及 解析并推送被提及者；自提及不推；标签统一小写去重
func TestCreateMentionsAndHashtags(t *testing.T) {
	f := newPostFixture(t)
	a := seedUser(t, f.db, "alice")
	b := seedUser(t, f.db, "bob")

	post, err := f.svc.Create(context.Background(), a.ID,
		"hi @bob @alice @ghost check #Go #go #redis", nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{a.ID, b.ID}, post.Mentions)
	assert.Equal(t, []string{"go", "redis"}, post.Hashtags)

	events := f.pusher.byType(realtime.EventMentioned)
	require.Len(t, events, 1)
	assert.Equal(t, b.ID, events[0].UserID)
}

func TestCreateReply(t *testing.T) {
	f := newPostFixture(t)
	a := seedUser(t, f.db, "alice")
	b := seedUser(t, f.db, "bob")
	ctx := context.Background()

	original, err := f.svc.Create(ctx, a.ID, "original", nil)
	require.NoError(t, err)

	reply, err := f.svc.Create(ctx, b.ID, "reply", &original.ID)
	require.NoError(t, err)
	assert.True(t, reply.IsReply)
	require.NotNil(t, reply.ReplyToPostID)
	assert.Equal(t, original.ID, *reply.ReplyToPostID)
	require.NotNil(t, reply.ReplyToUserID)
	assert.Equal(t, a.ID, *reply.ReplyToUserID)

	refreshed, err := f.svc.GetByID(ctx, original.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, refreshed.RepliesCount)

	missing := "missing"
	_, err = f.svc.Create(ctx, b.ID, "reply", &missing)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

// 点赞幂等，作者收到一次 post-liked 推送；自赞不推
func TestLikeUnlike(t *testing.T) {
	f := newPostFixture(t)
	a := seedUser(t, f.db, "alice")
	b := seedUser(t, f.db, "bob")
	ctx := context.Background()

	post, err := f.svc.Create(ctx, a.ID, "hello", nil)
	require.NoError(t, err)

	already, err := f.svc.Like(ctx, b.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, already)

	already, err = f.svc.Like(ctx, b.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, already)

	refreshed, err := f.svc.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, refreshed.LikesCount)

	events := f.pusher.byType(realtime.EventPostLiked)
	require.Len(t, events, 1)
	assert.Equal(t, a.ID, events[0].UserID)

	// 自赞静默
	_, err = f.svc.Like(ctx, a.ID, post.ID)
	require.NoError(t, err)
	assert.Len(t, f.pusher.byType(realtime.EventPostLiked), 1)

	notLiked, err := f.svc.Unlike(ctx, b.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, notLiked)

	notLiked, err = f.svc.Unlike(ctx, b.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, notLiked)

	refreshed, err = f.svc.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, refreshed.LikesCount) // 自赞还在

	_, err = f.svc.Like(ctx, b.ID, "missing")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

// 仅作者可删，删除级联清理时间线
func TestDeletePost(t *testing.T) {
	f := newPostFixture(t)
	a := seedUser(t, f.db, "alice")
	b := seedUser(t, f.db, "bob")
	ctx := context.Background()

	post, err := f.svc.Create(ctx, a.ID, "hello", nil)
	require.NoError(t, err)
	require.NoError(t, f.timeline.FanOut(ctx, post.ID, a.ID))

	err = f.svc.Delete(ctx, b.ID, post.ID)
	assert.ErrorIs(t, err, ErrNotPostAuthor)

	require.NoError(t, f.svc.Delete(ctx, a.ID, post.ID))

	_, err = f.svc.GetByID(ctx, post.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)

	var cnt int64
	require.NoError(t, f.db.Model(&model.Inbox{}).Where("post_id = ?", post.ID).Count(&cnt).Error)
	assert.Zero(t, cnt)

	err = f.svc.Delete(ctx, a.ID, post.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestListByAuthor(t *testing.T) {
	f := newPostFixture(t)
	a := seedUser(t, f.db, "alice")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, a.ID, "post", nil)
		require.NoError(t, err)
	}

	posts, err := f.svc.ListByAuthor(ctx, "alice", 1, 10)
	require.NoError(t, err)
	assert.Len(t, posts, 3)

	_, err = f.svc.ListByAuthor(ctx, "nobody", 1, 10)
	assert.ErrorIs(t, err, ErrUserNotFound)

	u, err := repository.NewUserRepository(f.db).FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, u.PostsCount)
}
