package model

import "time"

// Like 点赞关系
type Like struct {
	ID     string `gorm:"primaryKey;type:varchar(36)"`
	UserID string `gorm:"type:varchar(36);index:idx_like_pair,unique;not null"`
	PostID string `gorm:"type:varchar(36);index:idx_like_post;index:idx_like_pair,unique;not null"`
	// idx_like_pair = (user_id, post_id) 避免重复点赞
	CreatedAt time.Time
}

func (Like) TableName() string { return "likes" }
