package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/isp-support/internal/domain"
)

// ConnectionRepository reads customer connections and maintains their ticket link.
type ConnectionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Connection, error)
	// GetActiveForCustomer follows the customer's active connection pointer.
	GetActiveForCustomer(ctx context.Context, customerID string) (*domain.Connection, error)
	LinkTicket(ctx context.Context, connectionID, ticketID string) error
	// RepairTicketLinks points every connection at its newest ticket and
	// reports how many rows changed. Running it twice changes nothing.
	RepairTicketLinks(ctx context.Context) (int64, error)
}

type connectionRepository struct {
	pool *pgxpool.Pool
}

// NewConnectionRepository constructs repository.
func NewConnectionRepository(pool *pgxpool.Pool) ConnectionRepository {
	return &connectionRepository{pool: pool}
}

const connectionColumns = `c.id, c.customer_id, COALESCE(c.service_area_id, ''), c.is_active, c.ticket_id, c.created_at`

func (r *connectionRepository) GetByID(ctx context.Context, id string) (*domain.Connection, error) {
	conn, err := scanConnection(r.pool.QueryRow(ctx, `SELECT `+connectionColumns+` FROM connections c WHERE c.id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return conn, nil
}

func (r *connectionRepository) GetActiveForCustomer(ctx context.Context, customerID string) (*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + `
        FROM customers cu JOIN connections c ON c.id = cu.active_connection_id
        WHERE cu.id=$1`
	conn, err := scanConnection(r.pool.QueryRow(ctx, query, customerID))
	if err != nil {
		return nil, notFound(err)
	}
	return conn, nil
}

func (r *connectionRepository) LinkTicket(ctx context.Context, connectionID, ticketID string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE connections SET ticket_id=$1 WHERE id=$2`, ticketID, connectionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *connectionRepository) RepairTicketLinks(ctx context.Context) (int64, error) {
	const query = `
        UPDATE connections c SET ticket_id = latest.id
        FROM (
            SELECT DISTINCT ON (connection_id) connection_id, id
            FROM tickets
            WHERE connection_id IS NOT NULL
            ORDER BY connection_id, created_at DESC, id DESC
        ) latest
        WHERE c.id = latest.connection_id AND c.ticket_id IS DISTINCT FROM latest.id`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanConnection(row rowScanner) (*domain.Connection, error) {
	var conn domain.Connection
	if err := row.Scan(
		&conn.ID,
		&conn.CustomerID,
		&conn.ServiceAreaID,
		&conn.IsActive,
		&conn.TicketID,
		&conn.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &conn, nil
}
