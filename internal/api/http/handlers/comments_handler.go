package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/isp-support/internal/api/dto"
	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/service"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

// CommentsHandler exposes public and private ticket comments.
type CommentsHandler struct {
	comments *service.CommentService
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(commentService *service.CommentService) *CommentsHandler {
	return &CommentsHandler{comments: commentService}
}

// AddComment POST /tickets/:id/comments.
func (h *CommentsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.comments.AddComment(c.UserContext(), actor, c.Params("id"), req.Content, visibility(req.Visibility))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": comment})
}

// ListComments GET /tickets/:id/comments?visibility=public|private.
func (h *CommentsHandler) ListComments(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	comments, err := h.comments.ListComments(c.UserContext(), actor, c.Params("id"), visibility(c.Query("visibility")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": comments})
}

// AddCommentAttachment POST /comments/:id/attachments (multipart field "file").
func (h *CommentsHandler) AddCommentAttachment(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	upload, closeFn, err := formUpload(c)
	if err != nil {
		return err
	}
	defer closeFn()
	attachment, err := h.comments.AddCommentAttachment(c.UserContext(), actor, c.Params("id"), upload)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": attachment})
}

func visibility(raw string) domain.CommentVisibility {
	if strings.TrimSpace(raw) == "" {
		return domain.VisibilityPublic
	}
	return domain.CommentVisibility(strings.ToLower(strings.TrimSpace(raw)))
}

func formUpload(c *fiber.Ctx) (service.Upload, func(), error) {
	header, err := c.FormFile("file")
	if err != nil {
		return service.Upload{}, nil, apperrors.NewValidationError("multipart field \"file\" is required", nil)
	}
	file, err := header.Open()
	if err != nil {
		return service.Upload{}, nil, apperrors.NewInternalError(err)
	}
	upload := service.Upload{
		Name:     header.Filename,
		MimeType: header.Header.Get(fiber.HeaderContentType),
		Body:     file,
	}
	return upload, func() { _ = file.Close() }, nil
}
