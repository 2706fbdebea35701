package domain

// TicketView is a ticket with its actor references resolved for display.
// Summaries are nil when the referenced actor no longer exists.
type TicketView struct {
	Ticket
	CustomerSummary *ActorSummary `json:"customer,omitempty"`
	AssigneeSummary *ActorSummary `json:"assignee,omitempty"`
	CreatorSummary  *ActorSummary `json:"creator,omitempty"`
	UpdaterSummary  *ActorSummary `json:"updater,omitempty"`
	ResolverSummary *ActorSummary `json:"resolver,omitempty"`
}

// ForCustomer returns a copy without staff-only data: private comment ids and
// assignment notes.
func (v *TicketView) ForCustomer() *TicketView {
	if v == nil {
		return nil
	}
	clone := *v
	clone.PrivateComments = nil
	clone.AssignmentHistory = WithoutNotes(v.AssignmentHistory)
	return &clone
}

// WithoutNotes copies records with their staff notes blanked.
func WithoutNotes(records []AssignmentRecord) []AssignmentRecord {
	if records == nil {
		return nil
	}
	out := make([]AssignmentRecord, len(records))
	for i, record := range records {
		record.Note = ""
		out[i] = record
	}
	return out
}

// CommentView is a comment with its author and attachments resolved.
type CommentView struct {
	Comment
	Visibility        CommentVisibility `json:"visibility"`
	Author            *ActorSummary     `json:"author,omitempty"`
	AttachmentDetails []Attachment      `json:"attachment_details,omitempty"`
}
