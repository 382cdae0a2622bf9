// Package models contains data structures for the application's domain models.
package models

import "time"

// Post is a blog entry. Author holds the username of the session user that created it.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:50;not null" json:"title"`
	Author    string    `gorm:"size:20;not null" json:"author"`
	PostDate  time.Time `gorm:"not null;index" json:"post_date"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Image     string    `gorm:"size:100" json:"image,omitempty"`
	Thumbnail string    `gorm:"size:120" json:"thumbnail,omitempty"`
	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"-" json:"likes_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked bool `gorm:"-" json:"liked"`
}

// HasImage reports whether the post references an uploaded image.
func (p *Post) HasImage() bool {
	return p.Image != ""
}
