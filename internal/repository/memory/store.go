// Package memory keeps every repository in process memory. It backs the
// STORE_DRIVER=memory mode and the service tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/repository"
)

// Store holds all records behind one lock. Use the accessor methods to obtain
// the repository views.
type Store struct {
	mu sync.RWMutex

	areas       map[string]domain.ServiceArea
	customers   map[string]domain.Customer
	teams       map[string]domain.TeamMember
	admins      map[string]domain.Admin
	connections map[string]domain.Connection

	tickets      map[string]*domain.Ticket
	comments     map[string]*domain.Comment
	commentLinks map[string]repository.CommentLocation
	attachments  map[string]domain.Attachment
	// attachment id -> owning ticket / comment
	ticketAttachments  map[string]string
	commentAttachments map[string]string

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		areas:              map[string]domain.ServiceArea{},
		customers:          map[string]domain.Customer{},
		teams:              map[string]domain.TeamMember{},
		admins:             map[string]domain.Admin{},
		connections:        map[string]domain.Connection{},
		tickets:            map[string]*domain.Ticket{},
		comments:           map[string]*domain.Comment{},
		commentLinks:       map[string]repository.CommentLocation{},
		attachments:        map[string]domain.Attachment{},
		ticketAttachments:  map[string]string{},
		commentAttachments: map[string]string{},
		now:                time.Now,
	}
}

// Set returns every repository view.
func (s *Store) Set() repository.Set {
	return repository.Set{
		Tickets:     s.Tickets(),
		Comments:    s.Comments(),
		Attachments: s.Attachments(),
		Actors:      s.Actors(),
		Connections: s.Connections(),
		Directory:   s.Directory(),
	}
}

// Tickets returns the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Comments returns the comment repository view.
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }

// Attachments returns the attachment repository view.
func (s *Store) Attachments() repository.AttachmentRepository { return attachmentRepo{s} }

// Actors returns the actor repository view.
func (s *Store) Actors() repository.ActorRepository { return actorRepo{s} }

// Connections returns the connection repository view.
func (s *Store) Connections() repository.ConnectionRepository { return connectionRepo{s} }

// Directory returns the directory writer used by seeding.
func (s *Store) Directory() repository.DirectoryWriter { return directoryWriter{s} }

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	out := *t
	out.ConnectionID = cloneString(t.ConnectionID)
	out.ResolutionMessage = cloneString(t.ResolutionMessage)
	out.AssignedTo = cloneRef(t.AssignedTo)
	out.ResolvedBy = cloneRef(t.ResolvedBy)
	out.UpdatedBy = cloneRef(t.UpdatedBy)
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		out.ResolvedAt = &at
	}
	out.AssignmentHistory = append([]domain.AssignmentRecord{}, t.AssignmentHistory...)
	out.PublicComments = append([]string{}, t.PublicComments...)
	out.PrivateComments = append([]string{}, t.PrivateComments...)
	out.Attachments = append([]string{}, t.Attachments...)
	return &out
}

func cloneComment(c *domain.Comment) *domain.Comment {
	out := *c
	out.Attachments = append([]string{}, c.Attachments...)
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneRef(ref *domain.ActorRef) *domain.ActorRef {
	if ref == nil {
		return nil
	}
	out := *ref
	return &out
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

func sortTeams(members []domain.TeamMember) {
	sort.SliceStable(members, func(i, j int) bool {
		if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].CreatedAt.Before(members[j].CreatedAt)
		}
		return members[i].ID < members[j].ID
	})
}
