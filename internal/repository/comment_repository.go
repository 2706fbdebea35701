package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/isp-support/internal/domain"
)

// CommentLocation tells which ticket list holds a comment.
type CommentLocation struct {
	TicketID   string
	Visibility domain.CommentVisibility
}

// CommentRepository persists comments. Comments are never updated in place.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, id string) (*domain.Comment, error)
	ListForTicket(ctx context.Context, ticketID string, visibility domain.CommentVisibility) ([]domain.Comment, error)
	Locate(ctx context.Context, commentID string) (CommentLocation, error)
	AppendAttachment(ctx context.Context, commentID, attachmentID string) error
	DeleteOrphans(ctx context.Context, createdBefore time.Time) (int64, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository constructs repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (id, content, author_kind, author_id, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := r.pool.Exec(ctx, query,
		comment.ID,
		comment.Content,
		string(comment.AuthoredBy.Kind),
		comment.AuthoredBy.ID,
		comment.CreatedAt,
	)
	return err
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	const query = `SELECT id, content, author_kind, author_id, created_at FROM comments WHERE id=$1`
	var comment domain.Comment
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&comment.ID,
		&comment.Content,
		&comment.AuthoredBy.Kind,
		&comment.AuthoredBy.ID,
		&comment.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	attachments, err := r.attachmentIDs(ctx, []string{comment.ID})
	if err != nil {
		return nil, err
	}
	comment.Attachments = orEmpty(attachments[comment.ID])
	return &comment, nil
}

func (r *commentRepository) ListForTicket(ctx context.Context, ticketID string, visibility domain.CommentVisibility) ([]domain.Comment, error) {
	const query = `
        SELECT c.id, c.content, c.author_kind, c.author_id, c.created_at
        FROM ticket_comments tc JOIN comments c ON c.id = tc.comment_id
        WHERE tc.ticket_id=$1 AND tc.visibility=$2
        ORDER BY tc.seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID, visibility)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Comment{}
	ids := []string{}
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.Content,
			&comment.AuthoredBy.Kind,
			&comment.AuthoredBy.ID,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
		ids = append(ids, comment.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	attachments, err := r.attachmentIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Attachments = orEmpty(attachments[result[i].ID])
	}
	return result, nil
}

func (r *commentRepository) attachmentIDs(ctx context.Context, commentIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(commentIDs))
	if len(commentIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT comment_id, attachment_id FROM comment_attachments WHERE comment_id = ANY($1) ORDER BY seq ASC`,
		commentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var commentID, attachmentID string
		if err := rows.Scan(&commentID, &attachmentID); err != nil {
			return nil, err
		}
		out[commentID] = append(out[commentID], attachmentID)
	}
	return out, rows.Err()
}

func (r *commentRepository) Locate(ctx context.Context, commentID string) (CommentLocation, error) {
	var loc CommentLocation
	err := r.pool.QueryRow(ctx,
		`SELECT ticket_id, visibility FROM ticket_comments WHERE comment_id=$1 ORDER BY seq ASC LIMIT 1`,
		commentID).Scan(&loc.TicketID, &loc.Visibility)
	if err != nil {
		return CommentLocation{}, notFound(err)
	}
	return loc, nil
}

func (r *commentRepository) AppendAttachment(ctx context.Context, commentID, attachmentID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM comments WHERE id=$1)`, commentID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO comment_attachments (comment_id, attachment_id) VALUES ($1,$2)`,
			commentID, attachmentID)
		return err
	})
}

func (r *commentRepository) DeleteOrphans(ctx context.Context, createdBefore time.Time) (int64, error) {
	const query = `
        DELETE FROM comments c
        WHERE c.created_at < $1
          AND NOT EXISTS (SELECT 1 FROM ticket_comments tc WHERE tc.comment_id = c.id)`
	cmd, err := r.pool.Exec(ctx, query, createdBefore)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
