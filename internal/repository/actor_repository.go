package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/isp-support/internal/domain"
)

// ActorRepository reads the customer, team and admin directories.
type ActorRepository interface {
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetTeamMember(ctx context.Context, id string) (*domain.TeamMember, error)
	GetAdmin(ctx context.Context, id string) (*domain.Admin, error)
	// ListTeamMembersByServiceArea returns members covering the area, oldest first.
	ListTeamMembersByServiceArea(ctx context.Context, serviceAreaID string) ([]domain.TeamMember, error)
}

type actorRepository struct {
	pool *pgxpool.Pool
}

// NewActorRepository constructs repository.
func NewActorRepository(pool *pgxpool.Pool) ActorRepository {
	return &actorRepository{pool: pool}
}

func (r *actorRepository) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	const query = `
        SELECT id, first_name, last_name, email, active_connection_id, created_at
        FROM customers WHERE id=$1`
	var customer domain.Customer
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&customer.ID,
		&customer.FirstName,
		&customer.LastName,
		&customer.Email,
		&customer.ActiveConnectionID,
		&customer.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &customer, nil
}

func (r *actorRepository) GetTeamMember(ctx context.Context, id string) (*domain.TeamMember, error) {
	const query = `
        SELECT t.id, t.first_name, t.last_name, t.email, t.created_at,
               COALESCE(ARRAY(SELECT ta.service_area_id FROM team_areas ta WHERE ta.team_id = t.id ORDER BY ta.position), '{}')
        FROM teams t WHERE t.id=$1`
	member, err := scanTeamMember(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return member, nil
}

func (r *actorRepository) GetAdmin(ctx context.Context, id string) (*domain.Admin, error) {
	const query = `SELECT id, name, email, created_at FROM admins WHERE id=$1`
	var admin domain.Admin
	if err := r.pool.QueryRow(ctx, query, id).Scan(&admin.ID, &admin.Name, &admin.Email, &admin.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &admin, nil
}

func (r *actorRepository) ListTeamMembersByServiceArea(ctx context.Context, serviceAreaID string) ([]domain.TeamMember, error) {
	const query = `
        SELECT t.id, t.first_name, t.last_name, t.email, t.created_at,
               COALESCE(ARRAY(SELECT ta.service_area_id FROM team_areas ta WHERE ta.team_id = t.id ORDER BY ta.position), '{}')
        FROM teams t
        WHERE EXISTS (SELECT 1 FROM team_areas ta WHERE ta.team_id = t.id AND ta.service_area_id = $1)
        ORDER BY t.created_at ASC, t.id ASC`
	rows, err := r.pool.Query(ctx, query, serviceAreaID)
	if err != nil {
		return nil, fmt.Errorf("list teams by area: %w", err)
	}
	defer rows.Close()
	members := []domain.TeamMember{}
	for rows.Next() {
		member, err := scanTeamMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *member)
	}
	return members, rows.Err()
}

func scanTeamMember(row rowScanner) (*domain.TeamMember, error) {
	var member domain.TeamMember
	if err := row.Scan(
		&member.ID,
		&member.FirstName,
		&member.LastName,
		&member.Email,
		&member.CreatedAt,
		&member.ServiceAreaIDs,
	); err != nil {
		return nil, err
	}
	return &member, nil
}
