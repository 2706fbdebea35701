package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.tickets[ticket.ID]; exists {
		return fmt.Errorf("ticket %s already exists", ticket.ID)
	}
	r.s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTicket(ticket), nil
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := []domain.Ticket{}
	for _, ticket := range r.s.tickets {
		if !r.matches(ticket, filter) {
			continue
		}
		row := cloneTicket(ticket)
		row.AssignmentHistory = nil
		row.PublicComments = nil
		row.PrivateComments = nil
		row.Attachments = nil
		matched = append(matched, *row)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultListLimit
	}
	if limit > repository.MaxListLimit {
		limit = repository.MaxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r ticketRepo) matches(ticket *domain.Ticket, filter repository.TicketFilter) bool {
	if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Priorities) > 0 {
		found := false
		for _, p := range filter.Priorities {
			if p == ticket.Priority {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IssueType != nil && ticket.IssueType != *filter.IssueType {
		return false
	}
	if filter.AssignedTo != nil && (ticket.AssignedTo == nil || !ticket.AssignedTo.Equal(*filter.AssignedTo)) {
		return false
	}
	if scope := filter.TeamScope; scope != nil {
		assigned := ticket.AssignedTo != nil && ticket.AssignedTo.Equal(domain.NewActorRef(domain.ActorTeam, scope.TeamID))
		if !assigned && !r.inAreas(ticket, scope.ServiceAreaIDs) {
			return false
		}
	}
	return true
}

func (r ticketRepo) inAreas(ticket *domain.Ticket, areas []string) bool {
	if ticket.ConnectionID == nil {
		return false
	}
	conn, ok := r.s.connections[*ticket.ConnectionID]
	if !ok {
		return false
	}
	for _, area := range areas {
		if area == conn.ServiceAreaID {
			return true
		}
	}
	return false
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.IssueType = ticket.IssueType
	stored.Description = ticket.Description
	stored.Priority = ticket.Priority
	stored.Status = ticket.Status
	stored.Escalated = ticket.Escalated
	stored.ResolutionMessage = cloneString(ticket.ResolutionMessage)
	stored.ResolvedBy = cloneRef(ticket.ResolvedBy)
	if ticket.ResolvedAt != nil {
		at := *ticket.ResolvedAt
		stored.ResolvedAt = &at
	} else {
		stored.ResolvedAt = nil
	}
	stored.UpdatedBy = cloneRef(ticket.UpdatedBy)
	if ticket.UpdatedAt.After(stored.UpdatedAt) {
		stored.UpdatedAt = ticket.UpdatedAt
	}
	return nil
}

func (r ticketRepo) Assign(_ context.Context, ticketID string, record domain.AssignmentRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.AppendAssignment(record)
	stored.Touch(record.AssignedBy, record.AssignedAt)
	return nil
}

func (r ticketRepo) BulkUpdate(_ context.Context, ids []string, changes repository.BulkChanges) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	updated := []string{}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		stored, ok := r.s.tickets[id]
		if !ok {
			continue
		}
		if len(changes.AllowedFrom) > 0 && !containsStatus(changes.AllowedFrom, stored.Status) {
			continue
		}
		if changes.Status != nil {
			stored.Status = *changes.Status
			if stored.Status == domain.TicketStatusClosed {
				stored.MarkResolved(changes.UpdatedBy, changes.At)
			}
		}
		if changes.Priority != nil {
			stored.Priority = *changes.Priority
		}
		stored.Touch(changes.UpdatedBy, changes.At)
		updated = append(updated, id)
	}
	return updated, nil
}

func (r ticketRepo) AppendComment(_ context.Context, ticketID, commentID string, visibility domain.CommentVisibility, by domain.ActorRef, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	if visibility == domain.VisibilityPrivate {
		stored.PrivateComments = append(stored.PrivateComments, commentID)
	} else {
		stored.PublicComments = append(stored.PublicComments, commentID)
	}
	r.s.commentLinks[commentID] = repository.CommentLocation{TicketID: ticketID, Visibility: visibility}
	stored.Touch(by, at)
	return nil
}

func (r ticketRepo) AppendAttachment(_ context.Context, ticketID, attachmentID string, by domain.ActorRef, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Attachments = append(stored.Attachments, attachmentID)
	r.s.ticketAttachments[attachmentID] = ticketID
	stored.Touch(by, at)
	return nil
}

// Delete drops the ticket with its link rows. Comments and attachments stay
// behind as orphans.
func (r ticketRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.tickets, id)
	for commentID, loc := range r.s.commentLinks {
		if loc.TicketID == id {
			delete(r.s.commentLinks, commentID)
		}
	}
	for attachmentID, ticketID := range r.s.ticketAttachments {
		if ticketID == id {
			delete(r.s.ticketAttachments, attachmentID)
		}
	}
	return nil
}
