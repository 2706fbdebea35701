package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/isp-support/internal/domain"
)

// DirectoryWriter upserts directory records. Directory CRUD belongs to other
// services; this exists to bootstrap fixtures.
type DirectoryWriter interface {
	UpsertServiceArea(ctx context.Context, area domain.ServiceArea) error
	UpsertCustomer(ctx context.Context, customer domain.Customer) error
	UpsertTeamMember(ctx context.Context, member domain.TeamMember) error
	UpsertAdmin(ctx context.Context, admin domain.Admin) error
	UpsertConnection(ctx context.Context, conn domain.Connection) error
}

type directoryWriter struct {
	pool *pgxpool.Pool
}

// NewDirectoryWriter constructs the writer.
func NewDirectoryWriter(pool *pgxpool.Pool) DirectoryWriter {
	return &directoryWriter{pool: pool}
}

func (w *directoryWriter) UpsertServiceArea(ctx context.Context, area domain.ServiceArea) error {
	const query = `
        INSERT INTO service_areas (id, region, is_active) VALUES ($1,$2,$3)
        ON CONFLICT (id) DO UPDATE SET region=EXCLUDED.region, is_active=EXCLUDED.is_active`
	_, err := w.pool.Exec(ctx, query, area.ID, area.Region, area.IsActive)
	return err
}

func (w *directoryWriter) UpsertCustomer(ctx context.Context, customer domain.Customer) error {
	const query = `
        INSERT INTO customers (id, first_name, last_name, email, active_connection_id) VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (id) DO UPDATE SET first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name,
            email=EXCLUDED.email, active_connection_id=EXCLUDED.active_connection_id`
	_, err := w.pool.Exec(ctx, query, customer.ID, customer.FirstName, customer.LastName, customer.Email, customer.ActiveConnectionID)
	return err
}

func (w *directoryWriter) UpsertTeamMember(ctx context.Context, member domain.TeamMember) error {
	const query = `
        INSERT INTO teams (id, first_name, last_name, email) VALUES ($1,$2,$3,$4)
        ON CONFLICT (id) DO UPDATE SET first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name, email=EXCLUDED.email`
	return pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, member.ID, member.FirstName, member.LastName, member.Email); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM team_areas WHERE team_id=$1`, member.ID); err != nil {
			return err
		}
		for i, area := range member.ServiceAreaIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO team_areas (team_id, service_area_id, position) VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`,
				member.ID, area, i); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *directoryWriter) UpsertAdmin(ctx context.Context, admin domain.Admin) error {
	const query = `
        INSERT INTO admins (id, name, email) VALUES ($1,$2,$3)
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email`
	_, err := w.pool.Exec(ctx, query, admin.ID, admin.Name, admin.Email)
	return err
}

func (w *directoryWriter) UpsertConnection(ctx context.Context, conn domain.Connection) error {
	const query = `
        INSERT INTO connections (id, customer_id, service_area_id, is_active) VALUES ($1,$2,NULLIF($3, ''),$4)
        ON CONFLICT (id) DO UPDATE SET customer_id=EXCLUDED.customer_id, service_area_id=EXCLUDED.service_area_id,
            is_active=EXCLUDED.is_active`
	_, err := w.pool.Exec(ctx, query, conn.ID, conn.CustomerID, conn.ServiceAreaID, conn.IsActive)
	return err
}
