package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
)

func setupRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Follow{}, &model.Fan{},
		&model.Post{}, &model.Like{}, &model.Inbox{},
	))
	return db
}

func inboxEntry(userID, postID string, score int64) model.Inbox {
	return model.Inbox{ID: uuid.New().String(), UserID: userID, PostID: postID, Score: score}
}

// (user_id, post_id) 唯一：重复写入静默吞掉，不报错不加行
func TestInboxBulkInsertIdempotent(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewInboxRepository(db)
	ctx := context.Background()

	entries := []model.Inbox{
		inboxEntry("u1", "p1", 10),
		inboxEntry("u2", "p1", 10),
	}
	require.NoError(t, repo.BulkInsert(ctx, entries))
	// 同一批重放（新 ID、同 (user, post)）
	require.NoError(t, repo.BulkInsert(ctx, []model.Inbox{
		inboxEntry("u1", "p1", 10),
		inboxEntry("u2", "p1", 10),
		inboxEntry("u3", "p1", 10),
	}))

	var cnt int64
	require.NoError(t, db.Model(&model.Inbox{}).Count(&cnt).Error)
	assert.EqualValues(t, 3, cnt)

	n, err := repo.CountForUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

// score 非增排序，平分按 post_id 兜底，结果确定
func TestInboxPageOrdering(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewInboxRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.BulkInsert(ctx, []model.Inbox{
		inboxEntry("u1", "p-old", 10),
		inboxEntry("u1", "p-a", 20),
		inboxEntry("u1", "p-b", 20),
		inboxEntry("u1", "p-new", 30),
	}))

	page, err := repo.Page(ctx, "u1", 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, "p-new", page[0].PostID)
	assert.Equal(t, "p-b", page[1].PostID) // 同分,按 post_id 倒序
	assert.Equal(t, "p-a", page[2].PostID)
	assert.Equal(t, "p-old", page[3].PostID)
}

// 翻页不重不漏
func TestInboxPagination(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewInboxRepository(db)
	ctx := context.Background()

	var entries []model.Inbox
	for i := 0; i < 7; i++ {
		entries = append(entries, inboxEntry("u1", fmt.Sprintf("p%d", i), int64(i)))
	}
	require.NoError(t, repo.BulkInsert(ctx, entries))

	seen := map[string]bool{}
	for offset := 0; offset < 7; offset += 3 {
		page, err := repo.Page(ctx, "u1", offset, 3)
		require.NoError(t, err)
		for _, e := range page {
			assert.False(t, seen[e.PostID], "duplicate %s across pages", e.PostID)
			seen[e.PostID] = true
		}
	}
	assert.Len(t, seen, 7)

	empty, err := repo.Page(ctx, "u1", 100, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// 删帖清理所有用户的对应条目，别的帖不受影响
func TestInboxDeleteByPost(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewInboxRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.BulkInsert(ctx, []model.Inbox{
		inboxEntry("u1", "p1", 10),
		inboxEntry("u2", "p1", 10),
		inboxEntry("u1", "p2", 20),
	}))
	require.NoError(t, repo.DeleteByPost(ctx, "p1"))

	var cnt int64
	require.NoError(t, db.Model(&model.Inbox{}).Count(&cnt).Error)
	assert.EqualValues(t, 1, cnt)

	page, err := repo.Page(ctx, "u1", 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p2", page[0].PostID)
}
