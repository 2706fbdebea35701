package domain

import (
	"fmt"
	"strings"
)

// ActorKind enumerates the entity types that can act on a ticket.
type ActorKind string

const (
	ActorCustomer ActorKind = "Customer"
	ActorTeam     ActorKind = "Team"
	ActorAdmin    ActorKind = "Admin"
)

// ParseActorKind accepts the canonical names case-insensitively.
func ParseActorKind(raw string) (ActorKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "customer":
		return ActorCustomer, nil
	case "team":
		return ActorTeam, nil
	case "admin":
		return ActorAdmin, nil
	default:
		return "", fmt.Errorf("unknown actor kind %q", raw)
	}
}

// Valid reports whether k is one of the known kinds.
func (k ActorKind) Valid() bool {
	switch k {
	case ActorCustomer, ActorTeam, ActorAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the kind carries staff capabilities.
func (k ActorKind) IsStaff() bool {
	return k == ActorTeam || k == ActorAdmin
}

// Assignable reports whether tickets may be assigned to this kind.
func (k ActorKind) Assignable() bool {
	return k.IsStaff()
}

// ActorRef is a polymorphic reference to a customer, team member or admin.
type ActorRef struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`
}

// NewActorRef builds a reference.
func NewActorRef(kind ActorKind, id string) ActorRef {
	return ActorRef{Kind: kind, ID: id}
}

// IsZero reports whether the reference is unset.
func (r ActorRef) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// Equal compares kind and id.
func (r ActorRef) Equal(other ActorRef) bool {
	return r.Kind == other.Kind && r.ID == other.ID
}

func (r ActorRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// ActorSummary is the resolved, display-ready view of an actor.
type ActorSummary struct {
	Ref          ActorRef `json:"ref"`
	DisplayName  string   `json:"display_name"`
	Email        string   `json:"email,omitempty"`
	ServiceAreas []string `json:"service_areas,omitempty"`
}

// Covers reports whether the actor is affiliated with the service area.
// Only meaningful for team actors.
func (s ActorSummary) Covers(serviceAreaID string) bool {
	for _, area := range s.ServiceAreas {
		if area == serviceAreaID {
			return true
		}
	}
	return false
}

// IsStaff is shorthand for Ref.Kind.IsStaff.
func (s ActorSummary) IsStaff() bool {
	return s.Ref.Kind.IsStaff()
}
