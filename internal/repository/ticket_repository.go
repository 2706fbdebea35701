package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/isp-support/internal/domain"
)

// TicketFilter captures list parameters.
type TicketFilter struct {
	CustomerID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	IssueType  *string
	AssignedTo *domain.ActorRef
	// TeamScope restricts results to tickets a team member may see.
	TeamScope *TeamScope
	Limit     int
	Offset    int
}

// TeamScope matches tickets assigned to the member or raised in one of their areas.
type TeamScope struct {
	TeamID         string
	ServiceAreaIDs []string
}

// BulkChanges are the fields a bulk update may set.
type BulkChanges struct {
	Status    *domain.TicketStatus
	Priority  *domain.TicketPriority
	UpdatedBy domain.ActorRef
	At        time.Time
	// AllowedFrom, when non-empty, skips tickets whose current status is not listed.
	AllowedFrom []domain.TicketStatus
}

// Limits applied to list queries.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// TicketRepository encapsulates ticket persistence. Every method that changes a
// ticket writes the row and its history/link rows in one transaction.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// List returns ticket rows only; history and link lists are left empty.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
	Assign(ctx context.Context, ticketID string, record domain.AssignmentRecord) error
	BulkUpdate(ctx context.Context, ids []string, changes BulkChanges) ([]string, error)
	AppendComment(ctx context.Context, ticketID, commentID string, visibility domain.CommentVisibility, by domain.ActorRef, at time.Time) error
	AppendAttachment(ctx context.Context, ticketID, attachmentID string, by domain.ActorRef, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, number, customer_id, connection_id, assigned_to_kind, assigned_to_id,
        issue_type, description, priority, status, escalated, resolution_message,
        resolved_by_kind, resolved_by_id, resolved_at, created_by_kind, created_by_id,
        updated_by_kind, updated_by_id, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, number, customer_id, connection_id, assigned_to_kind, assigned_to_id,
            issue_type, description, priority, status, escalated, created_by_kind, created_by_id,
            updated_by_kind, updated_by_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	assignedKind, assignedID := actorArgs(ticket.AssignedTo)
	updatedKind, updatedID := actorArgs(ticket.UpdatedBy)
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query,
			ticket.ID,
			ticket.Number,
			ticket.CustomerID,
			ticket.ConnectionID,
			assignedKind,
			assignedID,
			ticket.IssueType,
			ticket.Description,
			ticket.Priority,
			ticket.Status,
			ticket.Escalated,
			string(ticket.CreatedBy.Kind),
			ticket.CreatedBy.ID,
			updatedKind,
			updatedID,
			ticket.CreatedAt,
			ticket.UpdatedAt,
		); err != nil {
			return err
		}
		for _, record := range ticket.AssignmentHistory {
			if err := insertAssignment(ctx, tx, ticket.ID, record); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertAssignment(ctx context.Context, tx pgx.Tx, ticketID string, record domain.AssignmentRecord) error {
	const query = `
        INSERT INTO ticket_assignments (ticket_id, assigned_to_kind, assigned_to_id, assigned_by_kind, assigned_by_id, assigned_at, note)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := tx.Exec(ctx, query,
		ticketID,
		string(record.AssignedTo.Kind),
		record.AssignedTo.ID,
		string(record.AssignedBy.Kind),
		record.AssignedBy.ID,
		record.AssignedAt,
		record.Note,
	)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	if err := r.loadHistory(ctx, ticket); err != nil {
		return nil, err
	}
	if err := r.loadLinks(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) loadHistory(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        SELECT assigned_to_kind, assigned_to_id, assigned_by_kind, assigned_by_id, assigned_at, note
        FROM ticket_assignments WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ticket.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	ticket.AssignmentHistory = []domain.AssignmentRecord{}
	for rows.Next() {
		var record domain.AssignmentRecord
		if err := rows.Scan(
			&record.AssignedTo.Kind,
			&record.AssignedTo.ID,
			&record.AssignedBy.Kind,
			&record.AssignedBy.ID,
			&record.AssignedAt,
			&record.Note,
		); err != nil {
			return err
		}
		ticket.AssignmentHistory = append(ticket.AssignmentHistory, record)
	}
	return rows.Err()
}

func (r *ticketRepository) loadLinks(ctx context.Context, ticket *domain.Ticket) error {
	const commentsQuery = `SELECT comment_id, visibility FROM ticket_comments WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, commentsQuery, ticket.ID)
	if err != nil {
		return err
	}
	ticket.PublicComments = []string{}
	ticket.PrivateComments = []string{}
	for rows.Next() {
		var commentID string
		var visibility domain.CommentVisibility
		if err := rows.Scan(&commentID, &visibility); err != nil {
			rows.Close()
			return err
		}
		if visibility == domain.VisibilityPrivate {
			ticket.PrivateComments = append(ticket.PrivateComments, commentID)
		} else {
			ticket.PublicComments = append(ticket.PublicComments, commentID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	const attachmentsQuery = `SELECT attachment_id FROM ticket_attachments WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err = r.pool.Query(ctx, attachmentsQuery, ticket.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	ticket.Attachments = []string{}
	for rows.Next() {
		var attachmentID string
		if err := rows.Scan(&attachmentID); err != nil {
			return err
		}
		ticket.Attachments = append(ticket.Attachments, attachmentID)
	}
	return rows.Err()
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.IssueType != nil {
		args = append(args, *filter.IssueType)
		clauses = append(clauses, fmt.Sprintf("issue_type=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, string(filter.AssignedTo.Kind), filter.AssignedTo.ID)
		clauses = append(clauses, fmt.Sprintf("assigned_to_kind=$%d AND assigned_to_id=$%d", len(args)-1, len(args)))
	}
	if filter.TeamScope != nil {
		args = append(args, filter.TeamScope.TeamID, filter.TeamScope.ServiceAreaIDs)
		clauses = append(clauses, fmt.Sprintf(
			"((assigned_to_kind='Team' AND assigned_to_id=$%d) OR connection_id IN (SELECT id FROM connections WHERE service_area_id = ANY($%d)))",
			len(args)-1, len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET issue_type=$1, description=$2, priority=$3, status=$4, escalated=$5,
            resolution_message=$6, resolved_by_kind=$7, resolved_by_id=$8, resolved_at=$9,
            updated_by_kind=$10, updated_by_id=$11, updated_at=GREATEST(updated_at, $12)
        WHERE id=$13`
	resolvedKind, resolvedID := actorArgs(ticket.ResolvedBy)
	updatedKind, updatedID := actorArgs(ticket.UpdatedBy)
	cmd, err := r.pool.Exec(ctx, query,
		ticket.IssueType,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.Escalated,
		ticket.ResolutionMessage,
		resolvedKind,
		resolvedID,
		ticket.ResolvedAt,
		updatedKind,
		updatedID,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) Assign(ctx context.Context, ticketID string, record domain.AssignmentRecord) error {
	const query = `
        UPDATE tickets SET assigned_to_kind=$1, assigned_to_id=$2, updated_by_kind=$3, updated_by_id=$4,
            updated_at=GREATEST(updated_at, $5)
        WHERE id=$6`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query,
			string(record.AssignedTo.Kind),
			record.AssignedTo.ID,
			string(record.AssignedBy.Kind),
			record.AssignedBy.ID,
			record.AssignedAt,
			ticketID,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrNotFound
		}
		return insertAssignment(ctx, tx, ticketID, record)
	})
}

func (r *ticketRepository) BulkUpdate(ctx context.Context, ids []string, changes BulkChanges) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	var status, priority *string
	if changes.Status != nil {
		s := string(*changes.Status)
		status = &s
	}
	if changes.Priority != nil {
		p := string(*changes.Priority)
		priority = &p
	}
	args := []any{status, priority, string(changes.UpdatedBy.Kind), changes.UpdatedBy.ID, changes.At, ids}
	query := `
        UPDATE tickets SET
            status = COALESCE($1::text, status),
            priority = COALESCE($2::text, priority),
            resolved_at = CASE WHEN $1::text = 'Closed' AND resolved_at IS NULL THEN $5 ELSE resolved_at END,
            resolved_by_kind = CASE WHEN $1::text = 'Closed' AND resolved_at IS NULL THEN $3 ELSE resolved_by_kind END,
            resolved_by_id = CASE WHEN $1::text = 'Closed' AND resolved_at IS NULL THEN $4 ELSE resolved_by_id END,
            updated_by_kind = $3, updated_by_id = $4, updated_at = GREATEST(updated_at, $5)
        WHERE id = ANY($6)`
	if len(changes.AllowedFrom) > 0 {
		allowed := make([]string, len(changes.AllowedFrom))
		for i, s := range changes.AllowedFrom {
			allowed[i] = string(s)
		}
		args = append(args, allowed)
		query += ` AND status = ANY($7)`
	}
	query += ` RETURNING id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	updated := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}

func (r *ticketRepository) AppendComment(ctx context.Context, ticketID, commentID string, visibility domain.CommentVisibility, by domain.ActorRef, at time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := touchTicket(ctx, tx, ticketID, by, at); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO ticket_comments (ticket_id, comment_id, visibility) VALUES ($1,$2,$3)`,
			ticketID, commentID, visibility)
		return err
	})
}

func (r *ticketRepository) AppendAttachment(ctx context.Context, ticketID, attachmentID string, by domain.ActorRef, at time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := touchTicket(ctx, tx, ticketID, by, at); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO ticket_attachments (ticket_id, attachment_id) VALUES ($1,$2)`,
			ticketID, attachmentID)
		return err
	})
}

func touchTicket(ctx context.Context, tx pgx.Tx, ticketID string, by domain.ActorRef, at time.Time) error {
	cmd, err := tx.Exec(ctx,
		`UPDATE tickets SET updated_by_kind=$1, updated_by_id=$2, updated_at=GREATEST(updated_at, $3) WHERE id=$4`,
		string(by.Kind), by.ID, at, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket                                 domain.Ticket
		assigned, resolved, created, updatedBy actorColumns
	)
	assignedKind, assignedID := assigned.targets()
	createdKind, createdID := created.targets()
	resolvedKind, resolvedID := resolved.targets()
	updatedKind, updatedID := updatedBy.targets()
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.CustomerID,
		&ticket.ConnectionID,
		assignedKind,
		assignedID,
		&ticket.IssueType,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Escalated,
		&ticket.ResolutionMessage,
		resolvedKind,
		resolvedID,
		&ticket.ResolvedAt,
		createdKind,
		createdID,
		updatedKind,
		updatedID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.AssignedTo = assigned.ref()
	ticket.ResolvedBy = resolved.ref()
	ticket.UpdatedBy = updatedBy.ref()
	if ref := created.ref(); ref != nil {
		ticket.CreatedBy = *ref
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
