package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/repository"
)

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.comments[comment.ID]; exists {
		return fmt.Errorf("comment %s already exists", comment.ID)
	}
	r.s.comments[comment.ID] = cloneComment(comment)
	return nil
}

func (r commentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	comment, ok := r.s.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneComment(comment), nil
}

func (r commentRepo) ListForTicket(_ context.Context, ticketID string, visibility domain.CommentVisibility) ([]domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := []domain.Comment{}
	ticket, ok := r.s.tickets[ticketID]
	if !ok {
		return result, nil
	}
	ids := ticket.PublicComments
	if visibility == domain.VisibilityPrivate {
		ids = ticket.PrivateComments
	}
	for _, id := range ids {
		if comment, ok := r.s.comments[id]; ok {
			result = append(result, *cloneComment(comment))
		}
	}
	return result, nil
}

func (r commentRepo) Locate(_ context.Context, commentID string) (repository.CommentLocation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	loc, ok := r.s.commentLinks[commentID]
	if !ok {
		return repository.CommentLocation{}, repository.ErrNotFound
	}
	return loc, nil
}

func (r commentRepo) AppendAttachment(_ context.Context, commentID, attachmentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	comment, ok := r.s.comments[commentID]
	if !ok {
		return repository.ErrNotFound
	}
	comment.Attachments = append(comment.Attachments, attachmentID)
	r.s.commentAttachments[attachmentID] = commentID
	return nil
}

func (r commentRepo) DeleteOrphans(_ context.Context, createdBefore time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var removed int64
	for id, comment := range r.s.comments {
		if _, linked := r.s.commentLinks[id]; linked || !comment.CreatedAt.Before(createdBefore) {
			continue
		}
		delete(r.s.comments, id)
		for attachmentID, owner := range r.s.commentAttachments {
			if owner == id {
				delete(r.s.commentAttachments, attachmentID)
			}
		}
		removed++
	}
	return removed, nil
}
