package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/events"
	"github.com/spec-kit/isp-support/internal/observability"
	"github.com/spec-kit/isp-support/internal/repository"
	"github.com/spec-kit/isp-support/internal/storage"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

// MaxCommentLength bounds comment content.
const MaxCommentLength = 5000

// CommentService manages the append-only comment threads of tickets.
type CommentService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	directory   *ActorDirectory
	access      accessPolicy
	uploads     uploader
	events      eventPublisher
	logger      *zap.Logger
}

// CommentDependencies bundles collaborators for the comment service.
type CommentDependencies struct {
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

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	logger := nopLogger(deps.Logger)
	return &CommentService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		directory:   NewActorDirectory(deps.ActorRepo),
		access:      accessPolicy{connections: deps.ConnectionRepo},
		uploads:     uploader{blobs: deps.Blobs, attachments: deps.AttachmentRepo, logger: logger},
		events:      eventPublisher{dispatcher: deps.Dispatcher, metrics: deps.Metrics},
		logger:      logger,
	}
}

// AddComment appends a comment to the ticket's public or private thread.
// Private threads are staff-only.
func (s *CommentService) AddComment(ctx context.Context, actor *domain.ActorSummary, ticketID, content string, visibility domain.CommentVisibility) (*domain.CommentView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !visibility.Valid() {
		return nil, apperrors.NewValidationError("visibility must be public or private", map[string]any{"visibility": visibility})
	}
	if visibility == domain.VisibilityPrivate && !actor.IsStaff() {
		return nil, apperrors.NewForbidden("private comments are restricted to staff")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content is required", nil)
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, apperrors.NewValidationError("content too long", map[string]any{"max": MaxCommentLength})
	}
	ticket, err := s.loadTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		ID:          uuid.NewString(),
		Content:     content,
		AuthoredBy:  actor.Ref,
		Attachments: []string{},
		CreatedAt:   nowUTC(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.tickets.AppendComment(ctx, ticket.ID, comment.ID, visibility, actor.Ref, comment.CreatedAt); err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	builder := newViewBuilder(s.directory, s.attachments)
	view, err := builder.comment(ctx, comment, visibility)
	if err != nil {
		return nil, err
	}
	eventType := events.EventTicketPublicCommentAdded
	if visibility == domain.VisibilityPrivate {
		eventType = events.EventTicketPrivateCommentAdded
	}
	s.events.publishWithTicket(ctx, s.tickets, builder, s.logger, events.Event{
		Type:      eventType,
		TicketID:  ticket.ID,
		Actor:     actor.Ref,
		StaffOnly: visibility == domain.VisibilityPrivate,
		Payload:   events.TicketPayload{Delta: events.CommentDelta{Comment: *view}},
	})
	return view, nil
}

// ListComments returns one thread in insertion order with authors resolved.
func (s *CommentService) ListComments(ctx context.Context, actor *domain.ActorSummary, ticketID string, visibility domain.CommentVisibility) ([]domain.CommentView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !visibility.Valid() {
		return nil, apperrors.NewValidationError("visibility must be public or private", map[string]any{"visibility": visibility})
	}
	if visibility == domain.VisibilityPrivate && !actor.IsStaff() {
		return nil, apperrors.NewForbidden("private comments are restricted to staff")
	}
	if _, err := s.loadTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListForTicket(ctx, ticketID, visibility)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	builder := newViewBuilder(s.directory, s.attachments)
	views := make([]domain.CommentView, 0, len(comments))
	for i := range comments {
		view, err := builder.comment(ctx, &comments[i], visibility)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// AddCommentAttachment stores an upload and links it to an existing comment.
func (s *CommentService) AddCommentAttachment(ctx context.Context, actor *domain.ActorSummary, commentID string, upload Upload) (*domain.Attachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	loc, err := s.comments.Locate(ctx, commentID)
	if err != nil {
		return nil, repoError(err, "comment", map[string]any{"comment_id": commentID})
	}
	private := loc.Visibility == domain.VisibilityPrivate
	if private && !actor.IsStaff() {
		return nil, apperrors.NewForbidden("private comments are restricted to staff")
	}
	ticket, err := s.loadTicket(ctx, actor, loc.TicketID)
	if err != nil {
		return nil, err
	}

	attachment, err := s.uploads.store(ctx, upload)
	if err != nil {
		return nil, err
	}
	if err := s.comments.AppendAttachment(ctx, commentID, attachment.ID); err != nil {
		s.uploads.discard(ctx, attachment)
		return nil, repoError(err, "comment", map[string]any{"comment_id": commentID})
	}
	s.events.publishWithTicket(ctx, s.tickets, newViewBuilder(s.directory, s.attachments), s.logger, events.Event{
		Type:      events.EventCommentAttachmentAdded,
		TicketID:  ticket.ID,
		Actor:     actor.Ref,
		StaffOnly: private,
		Payload:   events.TicketPayload{Delta: events.AttachmentDelta{Attachment: *attachment, CommentID: commentID}},
	})
	return attachment, nil
}

func (s *CommentService) loadTicket(ctx context.Context, actor *domain.ActorSummary, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if err := s.access.requireView(ctx, actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}
