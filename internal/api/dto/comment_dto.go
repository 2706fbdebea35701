package dto

// CreateCommentRequest payload. Visibility defaults to public.
type CreateCommentRequest struct {
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
}
