package domain

import (
	"errors"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states.
type TicketStatus string

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusClosed     TicketStatus = "Closed"
	TicketStatusEscalated  TicketStatus = "Escalated"
)

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Field limits.
const (
	MaxDescriptionLength       = 5000
	MaxIssueTypeLength         = 100
	MaxAssignmentNoteLength    = 500
	MaxResolutionMessageLength = 2000
	DefaultIssueType           = "other"
)

// ParseTicketStatus accepts canonical names plus the common spellings used by clients.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", " ")) {
	case "open":
		return TicketStatusOpen, true
	case "in progress", "inprogress":
		return TicketStatusInProgress, true
	case "closed":
		return TicketStatusClosed, true
	case "escalated":
		return TicketStatusEscalated, true
	}
	return "", false
}

// ParseTicketPriority lowercases and validates the priority.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	switch p := TicketPriority(strings.ToLower(strings.TrimSpace(raw))); p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return p, true
	}
	return "", false
}

var transitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusEscalated, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusEscalated, TicketStatusClosed},
	TicketStatusEscalated:  {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusClosed:     {TicketStatusOpen},
}

// CanTransition reports whether moving from current to next follows the lifecycle graph.
// Staying in the same state is always allowed.
func CanTransition(current, next TicketStatus) bool {
	if current == next {
		return true
	}
	for _, candidate := range transitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// AssignmentRecord is one immutable entry of a ticket's assignment history.
type AssignmentRecord struct {
	AssignedTo ActorRef  `json:"assigned_to"`
	AssignedBy ActorRef  `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
	Note       string    `json:"note,omitempty"`
}

// Ticket is a single support issue raised for a customer.
type Ticket struct {
	ID                string             `json:"id"`
	Number            string             `json:"number"`
	CustomerID        string             `json:"customer_id"`
	ConnectionID      *string            `json:"connection_id,omitempty"`
	AssignedTo        *ActorRef          `json:"assigned_to,omitempty"`
	AssignmentHistory []AssignmentRecord `json:"assignment_history"`
	IssueType         string             `json:"issue_type"`
	Description       string             `json:"description"`
	Priority          TicketPriority     `json:"priority"`
	Status            TicketStatus       `json:"status"`
	Escalated         bool               `json:"escalated"`
	PublicComments    []string           `json:"public_comments"`
	PrivateComments   []string           `json:"private_comments,omitempty"`
	Attachments       []string           `json:"attachments"`
	ResolutionMessage *string            `json:"resolution_message,omitempty"`
	ResolvedBy        *ActorRef          `json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time         `json:"resolved_at,omitempty"`
	CreatedBy         ActorRef           `json:"created_by"`
	UpdatedBy         *ActorRef          `json:"updated_by,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Customer returns the owning customer as an actor reference.
func (t *Ticket) Customer() ActorRef {
	return ActorRef{Kind: ActorCustomer, ID: t.CustomerID}
}

// LastAssignment returns the most recent history entry.
func (t *Ticket) LastAssignment() (AssignmentRecord, bool) {
	if len(t.AssignmentHistory) == 0 {
		return AssignmentRecord{}, false
	}
	return t.AssignmentHistory[len(t.AssignmentHistory)-1], true
}

// AppendAssignment records a new assignment and moves AssignedTo along with it.
func (t *Ticket) AppendAssignment(record AssignmentRecord) {
	t.AssignmentHistory = append(t.AssignmentHistory, record)
	target := record.AssignedTo
	t.AssignedTo = &target
}

// MarkResolved stamps resolution metadata the first time the ticket is closed.
func (t *Ticket) MarkResolved(by ActorRef, at time.Time) {
	if t.ResolvedAt != nil {
		return
	}
	resolver := by
	resolvedAt := at
	t.ResolvedBy = &resolver
	t.ResolvedAt = &resolvedAt
}

// Touch stamps the updater and advances UpdatedAt without ever moving it backwards.
func (t *Ticket) Touch(by ActorRef, at time.Time) {
	updater := by
	t.UpdatedBy = &updater
	if at.After(t.UpdatedAt) {
		t.UpdatedAt = at
	}
}

var (
	errAssigneeWithoutHistory = errors.New("assigned_to set but assignment history is empty")
	errHistoryWithoutAssignee = errors.New("assignment history present but assigned_to is empty")
	errAssigneeMismatch       = errors.New("assigned_to does not match last assignment")
	errResolvedWithoutActor   = errors.New("resolved_at and resolved_by must be set together")
)

// CheckInvariants verifies the structural rules every persisted ticket must satisfy.
func (t *Ticket) CheckInvariants() error {
	last, ok := t.LastAssignment()
	switch {
	case t.AssignedTo != nil && !ok:
		return errAssigneeWithoutHistory
	case t.AssignedTo == nil && ok:
		return errHistoryWithoutAssignee
	case ok && !t.AssignedTo.Equal(last.AssignedTo):
		return errAssigneeMismatch
	}
	if (t.ResolvedAt == nil) != (t.ResolvedBy == nil) {
		return errResolvedWithoutActor
	}
	return nil
}
