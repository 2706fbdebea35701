package service

import (
	"context"
	"errors"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/repository"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

// ActorDirectory resolves actor references to display-ready summaries.
type ActorDirectory struct {
	actors repository.ActorRepository
}

// NewActorDirectory constructs the directory.
func NewActorDirectory(actors repository.ActorRepository) *ActorDirectory {
	return &ActorDirectory{actors: actors}
}

// Resolve looks the actor up by kind and id. Unknown kinds are a validation
// failure, missing entities NOT_FOUND.
func (d *ActorDirectory) Resolve(ctx context.Context, ref domain.ActorRef) (*domain.ActorSummary, error) {
	if !ref.Kind.Valid() {
		return nil, apperrors.NewValidationError("unknown actor kind", map[string]any{"kind": ref.Kind})
	}
	if ref.ID == "" {
		return nil, apperrors.NewValidationError("actor id is required", nil)
	}
	var (
		summary domain.ActorSummary
		err     error
	)
	switch ref.Kind {
	case domain.ActorCustomer:
		var customer *domain.Customer
		if customer, err = d.actors.GetCustomer(ctx, ref.ID); err == nil {
			summary = customer.Summary()
		}
	case domain.ActorTeam:
		var member *domain.TeamMember
		if member, err = d.actors.GetTeamMember(ctx, ref.ID); err == nil {
			summary = member.Summary()
		}
	case domain.ActorAdmin:
		var admin *domain.Admin
		if admin, err = d.actors.GetAdmin(ctx, ref.ID); err == nil {
			summary = admin.Summary()
		}
	}
	if err != nil {
		return nil, repoError(err, "actor", map[string]any{"kind": ref.Kind, "id": ref.ID})
	}
	return &summary, nil
}

// lookup is Resolve for display purposes: a reference to an actor that no
// longer exists yields nil rather than an error.
func (d *ActorDirectory) lookup(ctx context.Context, ref *domain.ActorRef) (*domain.ActorSummary, error) {
	if ref == nil || ref.IsZero() {
		return nil, nil
	}
	summary, err := d.Resolve(ctx, *ref)
	if apperrors.HasCode(err, apperrors.CodeNotFound) || apperrors.HasCode(err, apperrors.CodeValidation) {
		return nil, nil
	}
	return summary, err
}

// RoutingResolver picks the team responsible for a service area.
type RoutingResolver struct {
	actors repository.ActorRepository
}

// NewRoutingResolver constructs the resolver.
func NewRoutingResolver(actors repository.ActorRepository) *RoutingResolver {
	return &RoutingResolver{actors: actors}
}

// FindResponsibleTeam returns the longest-standing team member covering the
// area, ties broken by id.
func (r *RoutingResolver) FindResponsibleTeam(ctx context.Context, serviceAreaID string) (*domain.ActorSummary, error) {
	if serviceAreaID == "" {
		return nil, apperrors.NewMissingServiceArea("connection has no service area", nil)
	}
	members, err := r.actors.ListTeamMembersByServiceArea(ctx, serviceAreaID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(members) == 0 {
		return nil, apperrors.NewNoTeamForArea(serviceAreaID)
	}
	summary := members[0].Summary()
	return &summary, nil
}

func repoError(err error, resource string, details map[string]any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.MapError(err)
}
