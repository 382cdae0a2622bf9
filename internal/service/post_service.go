package service

import (
	"context"
	"time"

	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type PostService struct {
	posts            repository.PostRepository
	likes            repository.LikeRepository
	uploads          *UploadService
	events           events.Publisher
	enforceOwnership bool
	now              func() time.Time
}

type CreatePostInput struct {
	Author  string
	Title   string
	Content string
	Image   *ImageUpload
}

type UpdatePostInput struct {
	PostID  uint
	Editor  string
	Title   string
	Content string
	Image   *ImageUpload
}

type DeletePostInput struct {
	PostID uint
	Editor string
}

// PostServiceOption configures optional PostService behaviour.
type PostServiceOption func(*PostService)

// WithOwnershipEnforcement restricts update and delete to the post's author.
func WithOwnershipEnforcement(enabled bool) PostServiceOption {
	return func(s *PostService) { s.enforceOwnership = enabled }
}

// WithClock overrides the time source used for post_date.
func WithClock(now func() time.Time) PostServiceOption {
	return func(s *PostService) { s.now = now }
}

func NewPostService(
	posts repository.PostRepository,
	likes repository.LikeRepository,
	uploads *UploadService,
	publisher events.Publisher,
	opts ...PostServiceOption,
) *PostService {
	if publisher == nil {
		publisher = events.Nop
	}
	s := &PostService{
		posts:   posts,
		likes:   likes,
		uploads: uploads,
		events:  publisher,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPosts returns every post newest first with like counts and the viewer's like state.
// viewerID 0 is an anonymous visitor.
func (s *PostService) ListPosts(ctx context.Context, viewerID uint) ([]*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "service.post.List")
	var err error
	defer func() { span.End(err) }()

	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, err
	}
	err = s.enrich(ctx, viewerID, posts)
	return posts, err
}

func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, viewerID, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "service.post.Create")
	var err error
	defer func() { span.End(err) }()

	if err = validation.ValidatePostFields(in.Title, in.Content); err != nil {
		err = models.NewValidationError(err.Error())
		return nil, err
	}

	post := &models.Post{
		Title:    in.Title,
		Author:   in.Author,
		Content:  in.Content,
		PostDate: s.now().UTC(),
	}

	var stored *StoredImage
	if in.Image.Present() {
		if stored, err = s.uploads.Store(ctx, in.Image); err != nil {
			return nil, err
		}
		post.Image = stored.Name
		post.Thumbnail = stored.Thumbnail
	}

	if err = s.posts.Create(ctx, post); err != nil {
		s.uploads.Discard(ctx, stored)
		return nil, err
	}

	observability.PostOperations.WithLabelValues("create").Inc()
	events.PublishBestEffort(ctx, s.events, events.PostEvent{
		Type: events.PostCreated, PostID: post.ID, Title: post.Title, Actor: in.Author,
	})
	return post, nil
}

// UpdatePost replaces title and content. A new valid image replaces the reference;
// an invalid one aborts before anything is written; no image keeps the current one.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "service.post.Update", attribute.Int("post.id", int(in.PostID)))
	var err error
	defer func() { span.End(err) }()

	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if err = s.checkOwner(post, in.Editor); err != nil {
		return nil, err
	}
	if err = validation.ValidatePostFields(in.Title, in.Content); err != nil {
		err = models.NewValidationError(err.Error())
		return nil, err
	}

	post.Title = in.Title
	post.Content = in.Content

	var stored *StoredImage
	if in.Image.Present() {
		if stored, err = s.uploads.Store(ctx, in.Image); err != nil {
			return nil, err
		}
		post.Image = stored.Name
		post.Thumbnail = stored.Thumbnail
	}

	if err = s.posts.Update(ctx, post); err != nil {
		s.uploads.Discard(ctx, stored)
		return nil, err
	}

	observability.PostOperations.WithLabelValues("update").Inc()
	events.PublishBestEffort(ctx, s.events, events.PostEvent{
		Type: events.PostUpdated, PostID: post.ID, Title: post.Title, Actor: in.Editor,
	})
	return post, nil
}

// DeletePost removes the post and its likes. The image blob is left in place.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	ctx, span := observability.StartSpan(ctx, "service.post.Delete", attribute.Int("post.id", int(in.PostID)))
	var err error
	defer func() { span.End(err) }()

	if s.enforceOwnership {
		post, getErr := s.posts.GetByID(ctx, in.PostID)
		if getErr != nil {
			err = getErr
			return err
		}
		if err = s.checkOwner(post, in.Editor); err != nil {
			return err
		}
	}

	if err = s.posts.Delete(ctx, in.PostID); err != nil {
		return err
	}

	observability.PostOperations.WithLabelValues("delete").Inc()
	events.PublishBestEffort(ctx, s.events, events.PostEvent{
		Type: events.PostDeleted, PostID: in.PostID, Actor: in.Editor,
	})
	return nil
}

func (s *PostService) checkOwner(post *models.Post, editor string) error {
	if s.enforceOwnership && post.Author != editor {
		return models.NewForbiddenError("You can only modify your own posts")
	}
	return nil
}

func (s *PostService) enrich(ctx context.Context, viewerID uint, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	counts, err := s.likes.CountLikesForPosts(ctx, ids)
	if err != nil {
		return err
	}
	liked, err := s.likes.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.LikesCount = counts[p.ID]
		p.Liked = liked[p.ID]
	}
	return nil
}
