package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/inkpost/internal/middleware"
	"github.com/charlesng35/inkpost/internal/services"
	"github.com/charlesng35/inkpost/pkg/response"
)

// CommentHandler exposes post comments. Rate limiting is applied by the router.
type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) (*CommentHandler, error) {
	if comments == nil {
		return nil, errors.New("comment handler: comment service is required")
	}
	return &CommentHandler{comments: comments}, nil
}

type createCommentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

type legacyCommentRequest struct {
	PostSlug string `json:"post_slug" validate:"required,slug"`
	Body     string `json:"body" validate:"required,max=5000"`
}

// List handles GET /api/posts/:slug/comments.
func (h *CommentHandler) List(c *gin.Context) {
	comments, err := h.comments.ListByPost(requestContext(c), c.Param("slug"))
	if err != nil {
		respondError(c, "list_comments", err)
		return
	}
	response.Success(c, http.StatusOK, comments)
}

// Create handles POST /api/posts/:slug/comments.
func (h *CommentHandler) Create(c *gin.Context) {
	var req createCommentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.create(c, c.Param("slug"), req.Body)
}

// CreateLegacy handles POST /api/comments, the older form endpoint carrying the slug in the body.
func (h *CommentHandler) CreateLegacy(c *gin.Context) {
	var req legacyCommentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.create(c, req.PostSlug, req.Body)
}

func (h *CommentHandler) create(c *gin.Context, slug, body string) {
	comment, err := h.comments.Create(requestContext(c), services.CreateCommentInput{
		PostSlug: slug,
		AuthorID: c.GetString(middleware.CtxUserIDKey),
		Body:     body,
	})
	if err != nil {
		respondError(c, "create_comment", err)
		return
	}
	response.Success(c, http.StatusCreated, comment)
}
