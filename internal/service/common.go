package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/events"
	"github.com/spec-kit/isp-support/internal/observability"
	"github.com/spec-kit/isp-support/internal/repository"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

// eventPublisher stamps and hands events to the dispatcher. Publishing never
// fails the caller and is not bound to the request lifetime.
type eventPublisher struct {
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
}

func (p eventPublisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	p.metrics.RecordEvent(string(event.Type))
	_ = p.dispatcher.Publish(context.WithoutCancel(ctx), event)
}

// publishWithTicket attaches the current ticket view before publishing, so
// subscribers see the lists including the new item.
func (p eventPublisher) publishWithTicket(ctx context.Context, tickets repository.TicketRepository, builder *viewBuilder, logger *zap.Logger, event events.Event) {
	ticket, err := tickets.GetByID(ctx, event.TicketID)
	if err == nil {
		event.Payload.Ticket, err = builder.ticket(ctx, ticket)
	}
	if err != nil {
		logger.Warn("build ticket view for event", zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
	p.publish(ctx, event)
}

// accessPolicy decides which tickets an actor may see.
type accessPolicy struct {
	connections repository.ConnectionRepository
}

// canView: admins see everything, customers their own tickets, team members
// tickets assigned to them or raised in an area they cover.
func (p accessPolicy) canView(ctx context.Context, actor *domain.ActorSummary, ticket *domain.Ticket) (bool, error) {
	switch actor.Ref.Kind {
	case domain.ActorAdmin:
		return true, nil
	case domain.ActorCustomer:
		return ticket.CustomerID == actor.Ref.ID, nil
	case domain.ActorTeam:
		if ticket.AssignedTo != nil && ticket.AssignedTo.Equal(actor.Ref) {
			return true, nil
		}
		if ticket.ConnectionID == nil || len(actor.ServiceAreas) == 0 {
			return false, nil
		}
		conn, err := p.connections.GetByID(ctx, *ticket.ConnectionID)
		if err != nil {
			return false, repoError(err, "connection", map[string]any{"connection_id": *ticket.ConnectionID})
		}
		return actor.Covers(conn.ServiceAreaID), nil
	}
	return false, nil
}

func (p accessPolicy) requireView(ctx context.Context, actor *domain.ActorSummary, ticket *domain.Ticket) error {
	ok, err := p.canView(ctx, actor, ticket)
	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		ok, err = false, nil
	}
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewForbidden("access denied")
	}
	return nil
}

func requireActor(actor *domain.ActorSummary) error {
	if actor == nil || !actor.Ref.Kind.Valid() {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}

func requireStaff(actor *domain.ActorSummary) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsStaff() {
		return apperrors.NewForbidden("staff role required")
	}
	return nil
}

func requireAdmin(actor *domain.ActorSummary) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.Ref.Kind != domain.ActorAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// viewBuilder resolves the actor references of tickets and comments. Each
// builder caches lookups, so use one per request.
type viewBuilder struct {
	directory   *ActorDirectory
	attachments repository.AttachmentRepository
	cache       map[domain.ActorRef]*domain.ActorSummary
}

func newViewBuilder(directory *ActorDirectory, attachments repository.AttachmentRepository) *viewBuilder {
	return &viewBuilder{
		directory:   directory,
		attachments: attachments,
		cache:       map[domain.ActorRef]*domain.ActorSummary{},
	}
}

func (b *viewBuilder) summary(ctx context.Context, ref *domain.ActorRef) (*domain.ActorSummary, error) {
	if ref == nil || ref.IsZero() {
		return nil, nil
	}
	if cached, ok := b.cache[*ref]; ok {
		return cached, nil
	}
	summary, err := b.directory.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	b.cache[*ref] = summary
	return summary, nil
}

func (b *viewBuilder) ticket(ctx context.Context, ticket *domain.Ticket) (*domain.TicketView, error) {
	view := &domain.TicketView{Ticket: *ticket}
	customer := ticket.Customer()
	created := ticket.CreatedBy
	targets := []struct {
		ref *domain.ActorRef
		dst **domain.ActorSummary
	}{
		{&customer, &view.CustomerSummary},
		{ticket.AssignedTo, &view.AssigneeSummary},
		{&created, &view.CreatorSummary},
		{ticket.UpdatedBy, &view.UpdaterSummary},
		{ticket.ResolvedBy, &view.ResolverSummary},
	}
	for _, target := range targets {
		summary, err := b.summary(ctx, target.ref)
		if err != nil {
			return nil, err
		}
		*target.dst = summary
	}
	return view, nil
}

func (b *viewBuilder) comment(ctx context.Context, comment *domain.Comment, visibility domain.CommentVisibility) (*domain.CommentView, error) {
	author, err := b.summary(ctx, &comment.AuthoredBy)
	if err != nil {
		return nil, err
	}
	view := &domain.CommentView{Comment: *comment, Visibility: visibility, Author: author}
	if len(comment.Attachments) > 0 {
		details, err := b.attachments.ListByIDs(ctx, comment.Attachments)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		view.AttachmentDetails = details
	}
	return view, nil
}

// forActor strips staff-only data for customers.
func forActor(view *domain.TicketView, actor *domain.ActorSummary) *domain.TicketView {
	if actor != nil && actor.IsStaff() {
		return view
	}
	return view.ForCustomer()
}

func generateTicketNumber() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func nopLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
