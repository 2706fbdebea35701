package domain

import "time"

// Attachment describes an uploaded object. Src is the storage locator.
type Attachment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Src       string    `json:"src"`
	MimeType  string    `json:"type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentOwner identifies what an attachment hangs off.
type AttachmentOwner struct {
	TicketID  string `json:"ticket_id,omitempty"`
	CommentID string `json:"comment_id,omitempty"`
}
