package memory

import (
	"context"
	"sort"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/repository"
)

type actorRepo struct{ s *Store }

func (r actorRepo) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	customer, ok := r.s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	customer.ActiveConnectionID = cloneString(customer.ActiveConnectionID)
	return &customer, nil
}

func (r actorRepo) GetTeamMember(_ context.Context, id string) (*domain.TeamMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	member, ok := r.s.teams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	member.ServiceAreaIDs = append([]string{}, member.ServiceAreaIDs...)
	return &member, nil
}

func (r actorRepo) GetAdmin(_ context.Context, id string) (*domain.Admin, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	admin, ok := r.s.admins[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &admin, nil
}

func (r actorRepo) ListTeamMembersByServiceArea(_ context.Context, serviceAreaID string) ([]domain.TeamMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	members := []domain.TeamMember{}
	for _, member := range r.s.teams {
		for _, area := range member.ServiceAreaIDs {
			if area == serviceAreaID {
				member.ServiceAreaIDs = append([]string{}, member.ServiceAreaIDs...)
				members = append(members, member)
				break
			}
		}
	}
	sortTeams(members)
	return members, nil
}

type connectionRepo struct{ s *Store }

func (r connectionRepo) GetByID(_ context.Context, id string) (*domain.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	conn, ok := r.s.connections[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	conn.TicketID = cloneString(conn.TicketID)
	return &conn, nil
}

func (r connectionRepo) GetActiveForCustomer(_ context.Context, customerID string) (*domain.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	customer, ok := r.s.customers[customerID]
	if !ok || customer.ActiveConnectionID == nil {
		return nil, repository.ErrNotFound
	}
	conn, ok := r.s.connections[*customer.ActiveConnectionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	conn.TicketID = cloneString(conn.TicketID)
	return &conn, nil
}

func (r connectionRepo) LinkTicket(_ context.Context, connectionID, ticketID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conn, ok := r.s.connections[connectionID]
	if !ok {
		return repository.ErrNotFound
	}
	id := ticketID
	conn.TicketID = &id
	r.s.connections[connectionID] = conn
	return nil
}

func (r connectionRepo) RepairTicketLinks(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	latest := map[string]*domain.Ticket{}
	for _, ticket := range r.s.tickets {
		if ticket.ConnectionID == nil {
			continue
		}
		current, ok := latest[*ticket.ConnectionID]
		if !ok || ticket.CreatedAt.After(current.CreatedAt) ||
			(ticket.CreatedAt.Equal(current.CreatedAt) && ticket.ID > current.ID) {
			latest[*ticket.ConnectionID] = ticket
		}
	}
	var changed int64
	for connectionID, ticket := range latest {
		conn, ok := r.s.connections[connectionID]
		if !ok || (conn.TicketID != nil && *conn.TicketID == ticket.ID) {
			continue
		}
		id := ticket.ID
		conn.TicketID = &id
		r.s.connections[connectionID] = conn
		changed++
	}
	return changed, nil
}

type directoryWriter struct{ s *Store }

func (w directoryWriter) UpsertServiceArea(_ context.Context, area domain.ServiceArea) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	w.s.areas[area.ID] = area
	return nil
}

func (w directoryWriter) UpsertCustomer(_ context.Context, customer domain.Customer) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if existing, ok := w.s.customers[customer.ID]; ok {
		customer.CreatedAt = existing.CreatedAt
	} else if customer.CreatedAt.IsZero() {
		customer.CreatedAt = w.s.now().UTC()
	}
	customer.ActiveConnectionID = cloneString(customer.ActiveConnectionID)
	w.s.customers[customer.ID] = customer
	return nil
}

func (w directoryWriter) UpsertTeamMember(_ context.Context, member domain.TeamMember) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if existing, ok := w.s.teams[member.ID]; ok {
		member.CreatedAt = existing.CreatedAt
	} else if member.CreatedAt.IsZero() {
		member.CreatedAt = w.s.now().UTC()
	}
	member.ServiceAreaIDs = append([]string{}, member.ServiceAreaIDs...)
	w.s.teams[member.ID] = member
	return nil
}

func (w directoryWriter) UpsertAdmin(_ context.Context, admin domain.Admin) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if existing, ok := w.s.admins[admin.ID]; ok {
		admin.CreatedAt = existing.CreatedAt
	} else if admin.CreatedAt.IsZero() {
		admin.CreatedAt = w.s.now().UTC()
	}
	w.s.admins[admin.ID] = admin
	return nil
}

// UpsertConnection keeps an existing ticket link.
func (w directoryWriter) UpsertConnection(_ context.Context, conn domain.Connection) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if existing, ok := w.s.connections[conn.ID]; ok {
		conn.CreatedAt = existing.CreatedAt
		if conn.TicketID == nil {
			conn.TicketID = existing.TicketID
		}
	} else if conn.CreatedAt.IsZero() {
		conn.CreatedAt = w.s.now().UTC()
	}
	conn.TicketID = cloneString(conn.TicketID)
	w.s.connections[conn.ID] = conn
	return nil
}

// ServiceAreas lists seeded areas ordered by id.
func (s *Store) ServiceAreas() []domain.ServiceArea {
	s.mu.RLock()
	defer s.mu.RUnlock()
	areas := make([]domain.ServiceArea, 0, len(s.areas))
	for _, area := range s.areas {
		areas = append(areas, area)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].ID < areas[j].ID })
	return areas
}
