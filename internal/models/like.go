package models

import "time"

// Like records that a user liked a post.
// The combination of UserID and PostID is unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	PostID     uint `json:"post_id"`
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}
