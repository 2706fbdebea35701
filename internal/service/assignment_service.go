package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/events"
	"github.com/spec-kit/isp-support/internal/repository"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

// Assign hands the ticket to a team member or admin and appends the history record.
func (s *TicketService) Assign(ctx context.Context, actor *domain.ActorSummary, ticketID string, input AssignTicketInput) (*domain.TicketView, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	note := strings.TrimSpace(input.Note)
	if utf8.RuneCountInString(note) > domain.MaxAssignmentNoteLength {
		return nil, apperrors.NewValidationError("note too long", map[string]any{"max": domain.MaxAssignmentNoteLength})
	}
	if !input.AssignedTo.Kind.Assignable() {
		return nil, apperrors.NewValidationError("tickets can only be assigned to Team or Admin actors",
			map[string]any{"kind": input.AssignedTo.Kind})
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	target, err := s.directory.Resolve(ctx, input.AssignedTo)
	if err != nil {
		return nil, err
	}
	if err := s.validateAssignment(ctx, ticket, target); err != nil {
		return nil, err
	}

	previous := ticket.AssignedTo
	record := domain.AssignmentRecord{
		AssignedTo: target.Ref,
		AssignedBy: actor.Ref,
		AssignedAt: s.now(),
		Note:       note,
	}
	if err := s.tickets.Assign(ctx, ticket.ID, record); err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	updated, err := s.reload(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("assigned_to", target.Ref.String()),
		zap.String("assigned_by", actor.Ref.String()))
	return s.publishTicket(ctx, actor, updated, events.EventTicketAssigned, events.AssignmentDelta{Record: record, Previous: previous})
}

// validateAssignment requires team assignees to cover the ticket's service
// area. Admins may take any ticket.
func (s *TicketService) validateAssignment(ctx context.Context, ticket *domain.Ticket, target *domain.ActorSummary) error {
	if !s.cfg.StrictAssignment || target.Ref.Kind != domain.ActorTeam {
		return nil
	}
	details := map[string]any{"ticket_id": ticket.ID, "assigned_to": target.Ref.String()}
	if ticket.ConnectionID == nil {
		return apperrors.NewConflictOrOrphan("ticket has no connection to match a team against", details)
	}
	conn, err := s.connections.GetByID(ctx, *ticket.ConnectionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewConflictOrOrphan("ticket connection no longer exists", details)
		}
		return apperrors.MapError(err)
	}
	if !target.Covers(conn.ServiceAreaID) {
		details["service_area_id"] = conn.ServiceAreaID
		return apperrors.NewConflictOrOrphan("team member does not cover the ticket's service area", details)
	}
	return nil
}

// SelfAssign assigns the ticket to the calling staff member.
func (s *TicketService) SelfAssign(ctx context.Context, actor *domain.ActorSummary, ticketID, note string) (*domain.TicketView, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.Assign(ctx, actor, ticketID, AssignTicketInput{AssignedTo: actor.Ref, Note: note})
}

// History returns the ticket's assignment records, oldest first.
func (s *TicketService) History(ctx context.Context, actor *domain.ActorSummary, ticketID string) ([]domain.AssignmentRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return domain.WithoutNotes(ticket.AssignmentHistory), nil
	}
	return append([]domain.AssignmentRecord{}, ticket.AssignmentHistory...), nil
}
