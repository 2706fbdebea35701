package domain

import (
	"strings"
	"time"
)

// Customer is an ISP subscriber.
type Customer struct {
	ID                 string    `json:"id" yaml:"id"`
	FirstName          string    `json:"first_name" yaml:"first_name"`
	LastName           string    `json:"last_name" yaml:"last_name"`
	Email              string    `json:"email" yaml:"email"`
	ActiveConnectionID *string   `json:"active_connection_id,omitempty" yaml:"active_connection_id"`
	CreatedAt          time.Time `json:"created_at" yaml:"-"`
}

// Summary converts the customer into an actor summary.
func (c *Customer) Summary() ActorSummary {
	return ActorSummary{
		Ref:         ActorRef{Kind: ActorCustomer, ID: c.ID},
		DisplayName: fullName(c.FirstName, c.LastName, c.Email),
		Email:       c.Email,
	}
}

// TeamMember is a field technician or support agent responsible for service areas.
type TeamMember struct {
	ID             string    `json:"id" yaml:"id"`
	FirstName      string    `json:"first_name" yaml:"first_name"`
	LastName       string    `json:"last_name" yaml:"last_name"`
	Email          string    `json:"email" yaml:"email"`
	ServiceAreaIDs []string  `json:"service_area_ids" yaml:"areas"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
}

// Summary converts the team member into an actor summary.
func (m *TeamMember) Summary() ActorSummary {
	return ActorSummary{
		Ref:          ActorRef{Kind: ActorTeam, ID: m.ID},
		DisplayName:  fullName(m.FirstName, m.LastName, m.Email),
		Email:        m.Email,
		ServiceAreas: append([]string(nil), m.ServiceAreaIDs...),
	}
}

// Admin is a back-office operator with unrestricted ticket access.
type Admin struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Email     string    `json:"email" yaml:"email"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Summary converts the admin into an actor summary.
func (a *Admin) Summary() ActorSummary {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = a.Email
	}
	return ActorSummary{
		Ref:         ActorRef{Kind: ActorAdmin, ID: a.ID},
		DisplayName: name,
		Email:       a.Email,
	}
}

func fullName(first, last, fallback string) string {
	name := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if name == "" {
		return fallback
	}
	return name
}
