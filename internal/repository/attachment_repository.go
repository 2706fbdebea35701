package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/isp-support/internal/domain"
)

// AttachmentRepository persists attachment metadata. Link rows live in
// ticket_attachments and comment_attachments.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Attachment, error)
	Owner(ctx context.Context, id string) (domain.AttachmentOwner, error)
	Delete(ctx context.Context, id string) error
	DeleteOrphans(ctx context.Context, createdBefore time.Time) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

const attachmentColumns = `id, name, src, mime_type, size_bytes, created_at`

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (id, name, src, mime_type, size_bytes, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.pool.Exec(ctx, query,
		attachment.ID,
		attachment.Name,
		attachment.Src,
		attachment.MimeType,
		attachment.Size,
		attachment.CreatedAt,
	)
	return err
}

func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	attachment, err := scanAttachment(r.pool.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return attachment, nil
}

// ListByIDs returns attachments in the order of ids, skipping missing ones.
func (r *attachmentRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Attachment, error) {
	if len(ids) == 0 {
		return []domain.Attachment{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byID := make(map[string]domain.Attachment, len(ids))
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		byID[attachment.ID] = *attachment
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result := make([]domain.Attachment, 0, len(ids))
	for _, id := range ids {
		if attachment, ok := byID[id]; ok {
			result = append(result, attachment)
		}
	}
	return result, nil
}

func (r *attachmentRepository) Owner(ctx context.Context, id string) (domain.AttachmentOwner, error) {
	const query = `
        SELECT COALESCE((SELECT ticket_id FROM ticket_attachments WHERE attachment_id=$1 ORDER BY seq LIMIT 1), ''),
               COALESCE((SELECT comment_id FROM comment_attachments WHERE attachment_id=$1 ORDER BY seq LIMIT 1), '')`
	var owner domain.AttachmentOwner
	if err := r.pool.QueryRow(ctx, query, id).Scan(&owner.TicketID, &owner.CommentID); err != nil {
		return domain.AttachmentOwner{}, err
	}
	if owner.TicketID == "" && owner.CommentID == "" {
		return domain.AttachmentOwner{}, ErrNotFound
	}
	return owner, nil
}

// Delete removes every reference to the attachment before the metadata row.
func (r *attachmentRepository) Delete(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ticket_attachments WHERE attachment_id=$1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM comment_attachments WHERE attachment_id=$1`, id); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `DELETE FROM attachments WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *attachmentRepository) DeleteOrphans(ctx context.Context, createdBefore time.Time) ([]domain.Attachment, error) {
	const query = `
        DELETE FROM attachments a
        WHERE a.created_at < $1
          AND NOT EXISTS (SELECT 1 FROM ticket_attachments ta WHERE ta.attachment_id = a.id)
          AND NOT EXISTS (SELECT 1 FROM comment_attachments ca WHERE ca.attachment_id = a.id)
        RETURNING ` + attachmentColumns
	rows, err := r.pool.Query(ctx, query, createdBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	removed := []domain.Attachment{}
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		removed = append(removed, *attachment)
	}
	return removed, rows.Err()
}

func scanAttachment(row rowScanner) (*domain.Attachment, error) {
	var attachment domain.Attachment
	if err := row.Scan(
		&attachment.ID,
		&attachment.Name,
		&attachment.Src,
		&attachment.MimeType,
		&attachment.Size,
		&attachment.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}
