package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
	"github.com/lapasovanvarbek/mini-twitter/internal/realtime"
	"github.com/lapasovanvarbek/mini-twitter/internal/repository"
)

func newRelService(t *testing.T) (RelationshipService, *gorm.DB, *recordingPusher) {
	t.Helper()
	db := setupDB(t)
	pusher := &recordingPusher{}
	svc := NewRelationshipService(
		repository.NewFollowRepository(db),
		repository.NewUserRepository(db),
		pusher,
	)
	return svc, db, pusher
}

func counters(t *testing.T, db *gorm.DB, id string) (followers, following int64) {
	t.Helper()
	var u model.User
	require.NoError(t, db.Where("id = ?", id).First(&u).Error)
	return u.FollowersCount, u.FollowingCount
}

func TestFollowSelfRejected(t *testing.T) {
	svc, db, _ := newRelService(t)
	a := seedUser(t, db, "alice")
	_, err := svc.Follow(context.Background(), a.ID, a.ID)
	require.ErrorIs(t, err, ErrFollowSelf)
}

func TestFollowUnknownUser(t *testing.T) {
	svc, db, _ := newRelService(t)
	a := seedUser(t, db, "alice")
	_, err := svc.Follow(context.Background(), a.ID, "no-such-user")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestFollowUpdatesCountersAndPushes(t *testing.T) {
	svc, db, pusher := newRelService(t)
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")

	already, err := svc.Follow(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, already)

	bFollowers, _ := counters(t, db, b.ID)
	_, aFollowing := counters(t, db, a.ID)
	assert.EqualValues(t, 1, bFollowers)
	assert.EqualValues(t, 1, aFollowing)

	ok, err := svc.IsFollowing(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	events := pusher.byType(realtime.EventNewFollower)
	require.Len(t, events, 1)
	assert.Equal(t, b.ID, events[0].UserID)
}

func TestDoubleFollowIdempotent(t *testing.T) {
	svc, db, pusher := newRelService(t)
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")

	_, err := svc.Follow(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	already, err := svc.Follow(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, already)

	// 第二次关注不改计数、不再推送
	bFollowers, _ := counters(t, db, b.ID)
	_, aFollowing := counters(t, db, a.ID)
	assert.EqualValues(t, 1, bFollowers)
	assert.EqualValues(t, 1, aFollowing)
	assert.Len(t, pusher.byType(realtime.EventNewFollower), 1)

	var edges int64
	require.NoError(t, db.Model(&model.Follow{}).Count(&edges).Error)
	assert.EqualValues(t, 1, edges)
}

func TestUnfollow(t *testing.T) {
	svc, db, _ := newRelService(t)
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")
	ctx := context.Background()

	_, err := svc.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)

	removed, err := svc.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	bFollowers, _ := counters(t, db, b.ID)
	_, aFollowing := counters(t, db, a.ID)
	assert.EqualValues(t, 0, bFollowers)
	assert.EqualValues(t, 0, aFollowing)

	// 未关注时取关是 no-op，计数不变
	removed, err = svc.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	bFollowers, _ = counters(t, db, b.ID)
	assert.EqualValues(t, 0, bFollowers)
}

func TestListFollowers(t *testing.T) {
	svc, db, _ := newRelService(t)
	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")
	c := seedUser(t, db, "carol")
	ctx := context.Background()

	_, err := svc.Follow(ctx, b.ID, a.ID)
	require.NoError(t, err)
	_, err = svc.Follow(ctx, c.ID, a.ID)
	require.NoError(t, err)

	list, err := svc.ListFollowers(ctx, "alice", 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	_, err = svc.ListFollowers(ctx, "nobody", 1, 10)
	require.ErrorIs(t, err, ErrUserNotFound)
}
