package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/inkpost/internal/models"
)

func TestCommentServiceCreateAndList(t *testing.T) {
	f := newServiceFixture(t, nil)
	svc, err := NewCommentService(f.db)
	require.NoError(t, err)
	ctx := context.Background()

	author := f.createUser(t, "reader@example.com", "pw", true, false)
	published := time.Now()
	post := &models.Post{Slug: "hello-world", Title: "Hello", AuthorID: author.ID, PublishedAt: &published}
	require.NoError(t, f.db.Create(post).Error)

	first, err := svc.Create(ctx, CreateCommentInput{PostSlug: "hello-world", AuthorID: author.ID, Body: " First! "})
	require.NoError(t, err)
	require.Equal(t, "First!", first.Body)
	require.NotNil(t, first.Author)
	require.Equal(t, author.Email, first.Author.Email)

	_, err = svc.Create(ctx, CreateCommentInput{PostSlug: "hello-world", AuthorID: author.ID, Body: "Second"})
	require.NoError(t, err)

	comments, err := svc.ListByPost(ctx, "hello-world")
	require.NoError(t, err)
	require.Len(t, comments, 2)
}

func TestCommentServiceRejectsUnpublishedAndMissingPosts(t *testing.T) {
	f := newServiceFixture(t, nil)
	svc, err := NewCommentService(f.db)
	require.NoError(t, err)
	ctx := context.Background()

	author := f.createUser(t, "reader@example.com", "pw", true, false)
	require.NoError(t, f.db.Create(&models.Post{Slug: "draft", Title: "Draft", AuthorID: author.ID}).Error)

	_, err = svc.Create(ctx, CreateCommentInput{PostSlug: "draft", AuthorID: author.ID, Body: "hi"})
	require.ErrorIs(t, err, ErrPostNotFound)

	_, err = svc.ListByPost(ctx, "nope")
	require.ErrorIs(t, err, ErrPostNotFound)

	_, err = svc.Create(ctx, CreateCommentInput{PostSlug: "draft", AuthorID: author.ID, Body: "  "})
	require.Error(t, err)
}
