package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/isp-support/internal/domain"
)

// ErrNotFound is returned by every repository when the addressed record does not exist.
var ErrNotFound = errors.New("repository: record not found")

type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// actorColumns scans a nullable (kind, id) column pair.
type actorColumns struct {
	kind *string
	id   *string
}

func (a *actorColumns) targets() (any, any) {
	return &a.kind, &a.id
}

func (a *actorColumns) ref() *domain.ActorRef {
	if a.kind == nil || a.id == nil {
		return nil
	}
	return &domain.ActorRef{Kind: domain.ActorKind(*a.kind), ID: *a.id}
}

func actorArgs(ref *domain.ActorRef) (any, any) {
	if ref == nil {
		return nil, nil
	}
	return string(ref.Kind), ref.ID
}

// Set groups the repositories one deployment runs on.
type Set struct {
	Tickets     TicketRepository
	Comments    CommentRepository
	Attachments AttachmentRepository
	Actors      ActorRepository
	Connections ConnectionRepository
	Directory   DirectoryWriter
}

// NewPostgresSet builds every repository on the same pool.
func NewPostgresSet(pool *pgxpool.Pool) Set {
	return Set{
		Tickets:     NewTicketRepository(pool),
		Comments:    NewCommentRepository(pool),
		Attachments: NewAttachmentRepository(pool),
		Actors:      NewActorRepository(pool),
		Connections: NewConnectionRepository(pool),
		Directory:   NewDirectoryWriter(pool),
	}
}
