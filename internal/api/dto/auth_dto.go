package dto

import "time"

// TokenRequest asks for a development token for an existing actor.
type TokenRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
