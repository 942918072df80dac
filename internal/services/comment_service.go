package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/inkpost/internal/models"
	apperrors "github.com/charlesng35/inkpost/pkg/errors"
)

// ErrPostNotFound indicates the post does not exist or is not published.
var ErrPostNotFound = apperrors.New("post.not_found", "Post not found", http.StatusNotFound)

// CreateCommentInput describes a new comment.
type CreateCommentInput struct {
	PostSlug string
	AuthorID string
	Body     string
}

// CommentService manages reader comments on published posts.
type CommentService struct {
	db *gorm.DB
}

// NewCommentService constructs a CommentService.
func NewCommentService(db *gorm.DB) (*CommentService, error) {
	if db == nil {
		return nil, errors.New("comment service: db is required")
	}
	return &CommentService{db: db}, nil
}

// Create stores a comment on the post identified by slug.
func (s *CommentService) Create(ctx context.Context, input CreateCommentInput) (*models.Comment, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewBadRequest("comment body is required")
	}
	if strings.TrimSpace(input.AuthorID) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	post, err := s.publishedPost(ctx, input.PostSlug)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: input.AuthorID,
		Body:     body,
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("comment service: create comment: %w", err)
	}

	if err := s.db.WithContext(ctx).Preload("Author").First(comment, "id = ?", comment.ID).Error; err != nil {
		return nil, fmt.Errorf("comment service: reload comment: %w", err)
	}
	return comment, nil
}

// ListByPost returns the comments of a published post, oldest first.
func (s *CommentService) ListByPost(ctx context.Context, slug string) ([]models.Comment, error) {
	post, err := s.publishedPost(ctx, slug)
	if err != nil {
		return nil, err
	}

	var comments []models.Comment
	if err := s.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", post.ID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("comment service: list comments: %w", err)
	}
	return comments, nil
}

func (s *CommentService) publishedPost(ctx context.Context, slug string) (*models.Post, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrPostNotFound
	}

	var post models.Post
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).Take(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("comment service: load post: %w", err)
	}
	if !post.Published() {
		return nil, ErrPostNotFound
	}
	return &post, nil
}
