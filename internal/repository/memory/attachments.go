package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/repository"
)

type attachmentRepo struct{ s *Store }

func (r attachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.attachments[attachment.ID]; exists {
		return fmt.Errorf("attachment %s already exists", attachment.ID)
	}
	r.s.attachments[attachment.ID] = *attachment
	return nil
}

func (r attachmentRepo) GetByID(_ context.Context, id string) (*domain.Attachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	attachment, ok := r.s.attachments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &attachment, nil
}

func (r attachmentRepo) ListByIDs(_ context.Context, ids []string) ([]domain.Attachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.Attachment, 0, len(ids))
	for _, id := range ids {
		if attachment, ok := r.s.attachments[id]; ok {
			result = append(result, attachment)
		}
	}
	return result, nil
}

func (r attachmentRepo) Owner(_ context.Context, id string) (domain.AttachmentOwner, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	owner := domain.AttachmentOwner{
		TicketID:  r.s.ticketAttachments[id],
		CommentID: r.s.commentAttachments[id],
	}
	if owner.TicketID == "" && owner.CommentID == "" {
		return domain.AttachmentOwner{}, repository.ErrNotFound
	}
	return owner, nil
}

func (r attachmentRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.attachments[id]; !ok {
		return repository.ErrNotFound
	}
	if ticketID, ok := r.s.ticketAttachments[id]; ok {
		if ticket, ok := r.s.tickets[ticketID]; ok {
			ticket.Attachments = removeID(ticket.Attachments, id)
		}
		delete(r.s.ticketAttachments, id)
	}
	if commentID, ok := r.s.commentAttachments[id]; ok {
		if comment, ok := r.s.comments[commentID]; ok {
			comment.Attachments = removeID(comment.Attachments, id)
		}
		delete(r.s.commentAttachments, id)
	}
	delete(r.s.attachments, id)
	return nil
}

func (r attachmentRepo) DeleteOrphans(_ context.Context, createdBefore time.Time) ([]domain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	removed := []domain.Attachment{}
	for id, attachment := range r.s.attachments {
		if !attachment.CreatedAt.Before(createdBefore) {
			continue
		}
		if _, ok := r.s.ticketAttachments[id]; ok {
			continue
		}
		if _, ok := r.s.commentAttachments[id]; ok {
			continue
		}
		delete(r.s.attachments, id)
		removed = append(removed, attachment)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	return removed, nil
}
