package model

import "time"

// User 用户主体，含冗余计数字段（关注/粉丝/发帖）
type User struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username     string `gorm:"type:varchar(32);uniqueIndex;not null" json:"username"`
	Email        string `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Password     string `gorm:"type:varchar(128);not null" json:"-"`
	DisplayName  string `gorm:"type:varchar(64)" json:"display_name"`
	Bio          string `gorm:"type:varchar(256)" json:"bio"`
	ProfileImage string `gorm:"type:varchar(256)" json:"profile_image"`

	FollowersCount int64 `gorm:"not null;default:0" json:"followers_count"`
	FollowingCount int64 `gorm:"not null;default:0" json:"following_count"`
	PostsCount     int64 `gorm:"not null;default:0" json:"posts_count"`

	IsDeleted bool      `gorm:"not null;default:false;index" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Snapshot 对外展示用的最小用户信息
type UserSnapshot struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	ProfileImage string `json:"profile_image"`
}

func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, ProfileImage: u.ProfileImage}
}
