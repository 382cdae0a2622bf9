package repository

import (
	"context"
	"errors"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository answers like queries explicitly instead of through ORM relationships.
type LikeRepository interface {
	// Toggle removes the user's like on the post if present, otherwise adds it.
	// It reports whether the post is liked afterwards.
	Toggle(ctx context.Context, userID, postID uint) (bool, error)
	CountLikesForPost(ctx context.Context, postID uint) (int, error)
	HasUserLiked(ctx context.Context, userID, postID uint) (bool, error)
	CountLikesForPosts(ctx context.Context, postIDs []uint) (map[uint]int, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Toggle(ctx context.Context, userID, postID uint) (bool, error) {
	defer observability.TrackQuery("toggle", "likes")()

	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var postCount int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&postCount).Error; err != nil {
			return models.NewInternalError(err)
		}
		if postCount == 0 {
			return models.NewNotFoundError("Post", postID)
		}

		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected > 0 {
			liked = false
			return nil
		}

		like := models.Like{UserID: userID, PostID: postID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
			return models.NewInternalError(err)
		}
		liked = true
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return false, appErr
		}
		return false, models.NewInternalError(err)
	}
	return liked, nil
}

func (r *likeRepository) CountLikesForPost(ctx context.Context, postID uint) (int, error) {
	var n int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return int(n), nil
}

func (r *likeRepository) HasUserLiked(ctx context.Context, userID, postID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	var n int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *likeRepository) CountLikesForPosts(ctx context.Context, postIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}
	defer observability.TrackQuery("select", "likes")()

	var rows []struct {
		PostID uint
		Count  int
	}
	err := readDB(r.db).WithContext(ctx).Model(&models.Like{}).
		Select("post_id, COUNT(*) AS count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		counts[row.PostID] = row.Count
	}
	return counts, nil
}

func (r *likeRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error) {
	liked := make(map[uint]bool)
	if userID == 0 || len(postIDs) == 0 {
		return liked, nil
	}

	var ids []uint
	err := readDB(r.db).WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}
