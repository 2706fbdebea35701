package dto

import (
	"time"

	"github.com/spec-kit/isp-support/internal/domain"
)

// CreateTicketRequest payload. CustomerID is only honoured for staff callers.
type CreateTicketRequest struct {
	CustomerID  string `json:"customer_id"`
	Description string `json:"description"`
	IssueType   string `json:"issue_type"`
	Priority    string `json:"priority"`
}

// CreateInternalTicketRequest opens a ticket against a specific connection.
type CreateInternalTicketRequest struct {
	ConnectionID string `json:"connection_id"`
	Description  string `json:"description"`
	IssueType    string `json:"issue_type"`
	Priority     string `json:"priority"`
}

// UpdateTicketRequest is a partial update; omitted fields are left alone.
type UpdateTicketRequest struct {
	Description *string `json:"description"`
	IssueType   *string `json:"issue_type"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssignedTo ActorRefRequest `json:"assigned_to"`
	Note       string          `json:"note"`
}

// SelfAssignRequest payload.
type SelfAssignRequest struct {
	Note string `json:"note"`
}

// ResolveTicketRequest payload.
type ResolveTicketRequest struct {
	ResolutionMessage string `json:"resolution_message"`
}

// BulkUpdateRequest payload.
type BulkUpdateRequest struct {
	TicketIDs []string `json:"ticket_ids"`
	Status    *string  `json:"status"`
	Priority  *string  `json:"priority"`
}

// ActorRefRequest names an actor by kind and id.
type ActorRefRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// TicketSummary is the list representation of a ticket.
type TicketSummary struct {
	ID         string                `json:"id"`
	Number     string                `json:"number"`
	CustomerID string                `json:"customer_id"`
	Customer   *domain.ActorSummary  `json:"customer,omitempty"`
	Assignee   *domain.ActorSummary  `json:"assignee,omitempty"`
	IssueType  string                `json:"issue_type"`
	Priority   domain.TicketPriority `json:"priority"`
	Status     domain.TicketStatus   `json:"status"`
	Escalated  bool                  `json:"escalated"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}
