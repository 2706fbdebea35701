package domain

import "time"

// ServiceArea is a region served by the ISP.
type ServiceArea struct {
	ID       string `json:"id" yaml:"id"`
	Region   string `json:"region" yaml:"region"`
	IsActive bool   `json:"is_active" yaml:"active"`
}

// Connection is a customer's network connection. TicketID is a best-effort
// link to the most recent ticket raised against it.
type Connection struct {
	ID            string    `json:"id" yaml:"id"`
	CustomerID    string    `json:"customer_id" yaml:"customer"`
	ServiceAreaID string    `json:"service_area_id" yaml:"area"`
	IsActive      bool      `json:"is_active" yaml:"active"`
	TicketID      *string   `json:"ticket_id,omitempty" yaml:"-"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
}
