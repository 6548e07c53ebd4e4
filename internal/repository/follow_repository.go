package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lapasovanvarbek/mini-twitter/internal/model"
)

type FollowRepository interface {
	// Create 返回是否真正新建（重复关注时 false，计数不变）
	Create(ctx context.Context, followerID, followeeID string) (bool, error)
	// Delete 返回是否真正删除（未关注时 false，计数不变）
	Delete(ctx context.Context, followerID, followeeID string) (bool, error)
	Exists(ctx context.Context, followerID, followeeID string) (bool, error)
	// ListFollowerIDs 取全量粉丝 ID，供扇出；走 fans 冗余表单次索引查询
	ListFollowerIDs(ctx context.Context, userID string) ([]string, error)
	ListFollowers(ctx context.Context, userID string, offset, limit int) ([]*model.User, error)
	ListFollowing(ctx context.Context, userID string, offset, limit int) ([]*model.User, error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository { return &followRepository{db: db} }

// Create 在同一事务内写 follow 边、fans 冗余行并维护双方计数。
// 任何一步失败整体回滚，不留下边已插入但计数漂移的中间态。
func (r *followRepository) Create(ctx context.Context, followerID, followeeID string) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f := &model.Follow{ID: uuid.New().String(), FollowerID: followerID, FolloweeID: followeeID}
		// 幂等：重复关注不报错，也不再动计数
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(f)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		fan := &model.Fan{ID: uuid.New().String(), UserID: followeeID, FanID: followerID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(fan).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.User{}).Where("id = ?", followerID).
			UpdateColumn("following_count", gorm.Expr("following_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&model.User{}).Where("id = ?", followeeID).
			UpdateColumn("followers_count", gorm.Expr("followers_count + 1")).Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followeeID string) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).Delete(&model.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		if err := tx.Where("user_id = ? AND fan_id = ?", followeeID, followerID).Delete(&model.Fan{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.User{}).Where("id = ? AND following_count > 0", followerID).
			UpdateColumn("following_count", gorm.Expr("following_count - 1")).Error; err != nil {
			return err
		}
		return tx.Model(&model.User{}).Where("id = ? AND followers_count > 0", followeeID).
			UpdateColumn("followers_count", gorm.Expr("followers_count - 1")).Error
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followeeID string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *followRepository) ListFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Fan{}).
		Where("user_id = ?", userID).
		Pluck("fan_id", &ids).Error
	return ids, err
}

func (r *followRepository) ListFollowers(ctx context.Context, userID string, offset, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Table("fans").
		Select("users.*").
		Joins("JOIN users ON users.id = fans.fan_id").
		Where("fans.user_id = ? AND users.is_deleted = ?", userID, false).
		Order("fans.created_at DESC").
		Offset(offset).Limit(limit).
		Scan(&users).Error
	return users, err
}

func (r *followRepository) ListFollowing(ctx context.Context, userID string, offset, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Table("follows").
		Select("users.*").
		Joins("JOIN users ON users.id = follows.followee_id").
		Where("follows.follower_id = ? AND users.is_deleted = ?", userID, false).
		Order("follows.created_at DESC").
		Offset(offset).Limit(limit).
		Scan(&users).Error
	return users, err
}
