package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/events"
	"github.com/spec-kit/isp-support/internal/observability"
	"github.com/spec-kit/isp-support/internal/repository"
	"github.com/spec-kit/isp-support/internal/storage"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

const defaultMimeType = "application/octet-stream"

// Upload is a file handed over by the transport layer.
type Upload struct {
	Name     string
	MimeType string
	Body     io.Reader
}

// uploader writes an upload to the blob store and records its metadata.
type uploader struct {
	blobs       storage.BlobStore
	attachments repository.AttachmentRepository
	logger      *zap.Logger
}

func (u uploader) store(ctx context.Context, upload Upload) (*domain.Attachment, error) {
	name := strings.TrimSpace(filepath.Base(upload.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, apperrors.NewValidationError("file name is required", nil)
	}
	if upload.Body == nil {
		return nil, apperrors.NewValidationError("file is required", nil)
	}
	if u.blobs == nil {
		return nil, apperrors.NewInternalError(errors.New("blob store not configured"))
	}
	mimeType := strings.TrimSpace(upload.MimeType)
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	obj, err := u.blobs.Put(ctx, mimeType, upload.Body)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperrors.NewValidationError("attachment exceeds upload limit", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	attachment := &domain.Attachment{
		ID:        uuid.NewString(),
		Name:      name,
		Src:       obj.Locator,
		MimeType:  mimeType,
		Size:      obj.Size,
		CreatedAt: nowUTC(),
	}
	if err := u.attachments.Create(ctx, attachment); err != nil {
		u.release(ctx, obj.Locator)
		return nil, apperrors.MapError(err)
	}
	return attachment, nil
}

// discard undoes store when linking fails.
func (u uploader) discard(ctx context.Context, attachment *domain.Attachment) {
	if err := u.attachments.Delete(ctx, attachment.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		u.logger.Warn("discard attachment", zap.String("attachment_id", attachment.ID), zap.Error(err))
	}
	u.release(ctx, attachment.Src)
}

func (u uploader) release(ctx context.Context, locator string) {
	if _, err := u.blobs.Release(ctx, locator); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		u.logger.Warn("release blob", zap.String("locator", locator), zap.Error(err))
	}
}

// AttachmentService links uploads to tickets and serves them back.
type AttachmentService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	blobs       storage.BlobStore
	directory   *ActorDirectory
	access      accessPolicy
	uploads     uploader
	events      eventPublisher
	logger      *zap.Logger
}

// AttachmentDependencies bundles collaborators for the attachment service.
type AttachmentDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	ConnectionRepo repository.ConnectionRepository
	ActorRepo      repository.ActorRepository
	Blobs          storage.BlobStore
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(deps AttachmentDependencies) *AttachmentService {
	logger := nopLogger(deps.Logger)
	return &AttachmentService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		blobs:       deps.Blobs,
		directory:   NewActorDirectory(deps.ActorRepo),
		access:      accessPolicy{connections: deps.ConnectionRepo},
		uploads:     uploader{blobs: deps.Blobs, attachments: deps.AttachmentRepo, logger: logger},
		events:      eventPublisher{dispatcher: deps.Dispatcher, metrics: deps.Metrics},
		logger:      logger,
	}
}

// AttachToTicket stores an upload and appends it to the ticket's attachments.
func (s *AttachmentService) AttachToTicket(ctx context.Context, actor *domain.ActorSummary, ticketID string, upload Upload) (*domain.Attachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if err := s.access.requireView(ctx, actor, ticket); err != nil {
		return nil, err
	}
	attachment, err := s.uploads.store(ctx, upload)
	if err != nil {
		return nil, err
	}
	if err := s.tickets.AppendAttachment(ctx, ticket.ID, attachment.ID, actor.Ref, attachment.CreatedAt); err != nil {
		s.uploads.discard(ctx, attachment)
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	s.events.publishWithTicket(ctx, s.tickets, newViewBuilder(s.directory, s.attachments), s.logger, events.Event{
		Type:     events.EventTicketAttachmentAdded,
		TicketID: ticket.ID,
		Actor:    actor.Ref,
		Payload:  events.TicketPayload{Delta: events.AttachmentDelta{Attachment: *attachment}},
	})
	return attachment, nil
}

// Open returns the attachment's bytes when the actor may see its owner.
func (s *AttachmentService) Open(ctx context.Context, actor *domain.ActorSummary, attachmentID string) ([]byte, *domain.Attachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		return nil, nil, repoError(err, "attachment", map[string]any{"attachment_id": attachmentID})
	}
	if _, err := s.authorizeOwner(ctx, actor, attachmentID); err != nil {
		return nil, nil, err
	}
	data, _, err := s.blobs.Open(ctx, attachment.Src)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, apperrors.NewNotFound("attachment content", map[string]any{"attachment_id": attachmentID})
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	return data, attachment, nil
}

// Delete unlinks the attachment, drops its metadata and then releases the blob.
func (s *AttachmentService) Delete(ctx context.Context, actor *domain.ActorSummary, attachmentID string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		return repoError(err, "attachment", map[string]any{"attachment_id": attachmentID})
	}
	ticketID, err := s.authorizeOwner(ctx, actor, attachmentID)
	switch {
	case apperrors.HasCode(err, apperrors.CodeNotFound):
		// unowned attachments are left to admins and the reaper
		if actor.Ref.Kind != domain.ActorAdmin {
			return apperrors.NewForbidden("admin role required")
		}
	case err != nil:
		return err
	}
	if err := s.attachments.Delete(ctx, attachmentID); err != nil {
		return repoError(err, "attachment", map[string]any{"attachment_id": attachmentID})
	}
	s.uploads.release(ctx, attachment.Src)
	s.logger.Info("attachment deleted", zap.String("attachment_id", attachmentID), zap.String("actor", actor.Ref.String()))
	if ticketID != "" {
		s.events.publishWithTicket(ctx, s.tickets, newViewBuilder(s.directory, s.attachments), s.logger, events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: ticketID,
			Actor:    actor.Ref,
			Payload:  events.TicketPayload{Delta: events.FieldChangesDelta{Changes: map[string]any{"attachment_removed": attachmentID}}},
		})
	}
	return nil
}

// authorizeOwner finds the ticket an attachment belongs to, directly or
// through a comment, and checks the actor may see it.
func (s *AttachmentService) authorizeOwner(ctx context.Context, actor *domain.ActorSummary, attachmentID string) (string, error) {
	owner, err := s.attachments.Owner(ctx, attachmentID)
	if err != nil {
		return "", repoError(err, "attachment owner", map[string]any{"attachment_id": attachmentID})
	}
	ticketID := owner.TicketID
	if ticketID == "" {
		loc, err := s.comments.Locate(ctx, owner.CommentID)
		if err != nil {
			return "", repoError(err, "comment", map[string]any{"comment_id": owner.CommentID})
		}
		if loc.Visibility == domain.VisibilityPrivate && !actor.IsStaff() {
			return "", apperrors.NewForbidden("private comments are restricted to staff")
		}
		ticketID = loc.TicketID
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return "", repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if err := s.access.requireView(ctx, actor, ticket); err != nil {
		return "", err
	}
	return ticketID, nil
}
