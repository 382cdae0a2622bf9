package service

import (
	"context"

	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

type LikeService struct {
	likes  repository.LikeRepository
	events events.Publisher
}

func NewLikeService(likes repository.LikeRepository, publisher events.Publisher) *LikeService {
	if publisher == nil {
		publisher = events.Nop
	}
	return &LikeService{likes: likes, events: publisher}
}

type ToggleLikeInput struct {
	UserID   uint
	Username string
	PostID   uint
}

// Toggle flips the user's like on the post and returns the new state and count.
func (s *LikeService) Toggle(ctx context.Context, in ToggleLikeInput) (*models.LikeResult, error) {
	ctx, span := observability.StartSpan(ctx, "service.like.Toggle", attribute.Int("post.id", int(in.PostID)))
	var err error
	defer func() { span.End(err) }()

	liked, err := s.likes.Toggle(ctx, in.UserID, in.PostID)
	if err != nil {
		return nil, err
	}
	count, err := s.likes.CountLikesForPost(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	outcome, eventType := "unliked", events.PostUnliked
	if liked {
		outcome, eventType = "liked", events.PostLiked
	}
	observability.LikeToggles.WithLabelValues(outcome).Inc()
	events.PublishBestEffort(ctx, s.events, events.PostEvent{
		Type: eventType, PostID: in.PostID, Actor: in.Username, LikesCount: count,
	})

	return &models.LikeResult{PostID: in.PostID, Liked: liked, LikesCount: count}, nil
}
