package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
)

type PostRepository interface {
	// Create 落地帖子并在同一事务内维护 posts_count / replies_count
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, id string) (*model.Post, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Post, error)
	ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*model.Post, error)
	ListRecent(ctx context.Context, offset, limit int) ([]*model.Post, error)
	Delete(ctx context.Context, post *model.Post) error
	// Like 返回是否真正新增（重复点赞 false，计数不变）
	Like(ctx context.Context, userID, postID string) (bool, error)
	Unlike(ctx context.Context, userID, postID string) (bool, error)
}

type postRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		if post.ReplyToPostID != nil {
			if err := tx.Model(&model.Post{}).Where("id = ?", *post.ReplyToPostID).
				UpdateColumn("replies_count", gorm.Expr("replies_count + 1")).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.User{}).Where("id = ?", post.AuthorID).
			UpdateColumn("posts_count", gorm.Expr("posts_count + 1")).Error
	})
}

func (r *postRepository) FindByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []*model.Post
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]*model.Post, error) {
	var posts []*model.Post
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListRecent(ctx context.Context, offset, limit int) ([]*model.Post, error) {
	var posts []*model.Post
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) Delete(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", post.ID).Delete(&model.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&model.Like{}).Error; err != nil {
			return err
		}
		return tx.Model(&model.User{}).Where("id = ? AND posts_count > 0", post.AuthorID).
			UpdateColumn("posts_count", gorm.Expr("posts_count - 1")).Error
	})
}

func (r *postRepository) Like(ctx context.Context, userID, postID string) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l := &model.Like{ID: uuid.New().String(), UserID: userID, PostID: postID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(l)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		liked = true
		return tx.Model(&model.Post{}).Where("id = ?", postID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error
	})
	if err != nil {
		return false, err
	}
	return liked, nil
}

func (r *postRepository) Unlike(ctx context.Context, userID, postID string) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&model.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&model.Post{}).Where("id = ? AND likes_count > 0", postID).
			UpdateColumn("likes_count", gorm.Expr("likes_count - 1")).Error
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}
