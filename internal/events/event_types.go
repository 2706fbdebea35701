package events

import (
	"time"

	"github.com/spec-kit/isp-support/internal/domain"
)

// EventType enumerates supported event identifiers. Values are the names
// clients see on the wire.
type EventType string

const (
	EventTicketCreated             EventType = "ticketCreated"
	EventTicketUpdated             EventType = "ticketUpdated"
	EventTicketAssigned            EventType = "ticketAssigned"
	EventTicketEscalated           EventType = "ticketEscalated"
	EventTicketResolved            EventType = "ticketResolved"
	EventTicketReopened            EventType = "ticketReopened"
	EventTicketClosed              EventType = "ticketClosed"
	EventTicketDeleted             EventType = "ticketDeleted"
	EventTicketPublicCommentAdded  EventType = "ticketPublicCommentAdded"
	EventTicketPrivateCommentAdded EventType = "ticketPrivateCommentAdded"
	EventTicketAttachmentAdded     EventType = "ticketAttachmentAdded"
	EventCommentAttachmentAdded    EventType = "commentAttachmentAdded"
)

// Event represents a domain event emitted by services. TicketID doubles as
// the room name.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	TicketID  string          `json:"ticket_id"`
	Actor     domain.ActorRef `json:"actor"`
	Timestamp time.Time       `json:"timestamp"`
	StaffOnly bool            `json:"staff_only,omitempty"`
	Global    bool            `json:"global,omitempty"`
	Payload   TicketPayload   `json:"payload"`
}

// TicketPayload carries the resolved ticket plus the change that produced the event.
type TicketPayload struct {
	Ticket *domain.TicketView `json:"ticket,omitempty"`
	Delta  any                `json:"delta,omitempty"`
}

// FieldChangesDelta lists the fields an update touched.
type FieldChangesDelta struct {
	Changes map[string]any `json:"changes"`
}

// AssignmentDelta describes a new assignment.
type AssignmentDelta struct {
	Record   domain.AssignmentRecord `json:"record"`
	Previous *domain.ActorRef        `json:"previous,omitempty"`
}

// StatusDelta describes a lifecycle transition.
type StatusDelta struct {
	From              domain.TicketStatus `json:"from"`
	To                domain.TicketStatus `json:"to"`
	ResolutionMessage string              `json:"resolution_message,omitempty"`
}

// CommentDelta carries a newly added comment.
type CommentDelta struct {
	Comment domain.CommentView `json:"new_comment"`
}

// AttachmentDelta carries a newly linked attachment.
type AttachmentDelta struct {
	Attachment domain.Attachment `json:"attachment"`
	CommentID  string            `json:"comment_id,omitempty"`
}

// DeletedDelta identifies a removed ticket.
type DeletedDelta struct {
	ID string `json:"id"`
}
