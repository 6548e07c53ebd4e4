package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
)

type InboxRepository interface {
	// BulkInsert 幂等批量写入：(user_id, post_id) 已存在的行静默跳过，
	// 单行冲突不影响同批其余行
	BulkInsert(ctx context.Context, entries []model.Inbox) error
	// Page 按 score 倒序取一页，post_id 倒序兜底保证跨页顺序确定
	Page(ctx context.Context, userID string, offset, limit int) ([]model.Inbox, error)
	// DeleteByPost 帖子删除时的级联钩子
	DeleteByPost(ctx context.Context, postID string) error
	CountForUser(ctx context.Context, userID string) (int64, error)
}

type inboxRepository struct{ db *gorm.DB }

func NewInboxRepository(db *gorm.DB) InboxRepository { return &inboxRepository{db: db} }

func (r *inboxRepository) BulkInsert(ctx context.Context, entries []model.Inbox) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entries).Error
}

func (r *inboxRepository) Page(ctx context.Context, userID string, offset, limit int) ([]model.Inbox, error) {
	var entries []model.Inbox
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("score DESC, post_id DESC").
		Offset(offset).Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *inboxRepository) DeleteByPost(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&model.Inbox{}).Error
}

func (r *inboxRepository) CountForUser(ctx context.Context, userID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Inbox{}).Where("user_id = ?", userID).Count(&cnt).Error
	return cnt, err
}
