package model

import "time"

// Post 内容主体
type Post struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID string `gorm:"type:varchar(36);index:idx_post_author;not null" json:"author_id"`
	Content  string `gorm:"type:varchar(280);not null" json:"content"`

	Mentions []string `gorm:"serializer:json" json:"mentions,omitempty"`
	Hashtags []string `gorm:"serializer:json" json:"hashtags,omitempty"`

	LikesCount   int64 `gorm:"not null;default:0" json:"likes_count"`
	RepliesCount int64 `gorm:"not null;default:0" json:"replies_count"`

	IsReply       bool    `gorm:"not null;default:false" json:"is_reply"`
	ReplyToPostID *string `gorm:"type:varchar(36)" json:"reply_to_post_id,omitempty"`
	ReplyToUserID *string `gorm:"type:varchar(36)" json:"reply_to_user_id,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }
