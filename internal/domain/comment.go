package domain

import "time"

// CommentVisibility selects which ticket list a comment belongs to.
type CommentVisibility string

const (
	VisibilityPublic  CommentVisibility = "public"
	VisibilityPrivate CommentVisibility = "private"
)

// Valid reports whether v is public or private.
func (v CommentVisibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Comment is an append-only note on a ticket.
type Comment struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	AuthoredBy  ActorRef  `json:"authored_by"`
	Attachments []string  `json:"attachments"`
	CreatedAt   time.Time `json:"created_at"`
}
