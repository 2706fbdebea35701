package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/isp-support/internal/service"
)

// AttachmentsHandler uploads, downloads and removes attachments.
type AttachmentsHandler struct {
	attachments *service.AttachmentService
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(attachmentService *service.AttachmentService) *AttachmentsHandler {
	return &AttachmentsHandler{attachments: attachmentService}
}

// AttachToTicket POST /tickets/:id/attachments (multipart field "file").
func (h *AttachmentsHandler) AttachToTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	upload, closeFn, err := formUpload(c)
	if err != nil {
		return err
	}
	defer closeFn()
	attachment, err := h.attachments.AttachToTicket(c.UserContext(), actor, c.Params("id"), upload)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": attachment})
}

// Download GET /attachments/:id.
func (h *AttachmentsHandler) Download(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	data, meta, err := h.attachments.Open(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, mimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", meta.Name))
	return c.Send(data)
}

// Delete DELETE /attachments/:id.
func (h *AttachmentsHandler) Delete(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.attachments.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
