package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/events"
	"github.com/spec-kit/isp-support/internal/observability"
	"github.com/spec-kit/isp-support/internal/repository"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

// TicketService coordinates the ticket lifecycle.
type TicketService struct {
	tickets     repository.TicketRepository
	connections repository.ConnectionRepository
	actors      repository.ActorRepository
	attachments repository.AttachmentRepository
	directory   *ActorDirectory
	routing     *RoutingResolver
	access      accessPolicy
	events      eventPublisher
	logger      *zap.Logger
	cfg         config.TicketsConfig
	now         func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	ConnectionRepo repository.ConnectionRepository
	ActorRepo      repository.ActorRepository
	AttachmentRepo repository.AttachmentRepository
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Config         config.TicketsConfig
}

// CreateTicketInput describes a customer-raised ticket. CustomerID may be
// left empty when the actor is the customer.
type CreateTicketInput struct {
	CustomerID  string
	Description string
	IssueType   string
	Priority    string
}

// CreateInternalInput describes a ticket raised by staff against a connection.
type CreateInternalInput struct {
	ConnectionID string
	Description  string
	IssueType    string
	Priority     string
}

// UpdateTicketInput is a partial update; nil fields are left alone.
type UpdateTicketInput struct {
	Description *string
	IssueType   *string
	Priority    *string
	Status      *string
}

// AssignTicketInput names the new assignee.
type AssignTicketInput struct {
	AssignedTo domain.ActorRef
	Note       string
}

// BulkUpdateInput is applied to every listed ticket.
type BulkUpdateInput struct {
	TicketIDs []string
	Status    *string
	Priority  *string
}

// BulkUpdateResult reports which tickets changed.
type BulkUpdateResult struct {
	Modified []string `json:"modified"`
	Count    int      `json:"count"`
}

// TicketListFilter describes list parameters. Access scoping is applied on top.
type TicketListFilter struct {
	CustomerID *string
	Statuses   []string
	Priorities []string
	IssueType  *string
	AssignedTo *domain.ActorRef
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	directory := NewActorDirectory(deps.ActorRepo)
	return &TicketService{
		tickets:     deps.TicketRepo,
		connections: deps.ConnectionRepo,
		actors:      deps.ActorRepo,
		attachments: deps.AttachmentRepo,
		directory:   directory,
		routing:     NewRoutingResolver(deps.ActorRepo),
		access:      accessPolicy{connections: deps.ConnectionRepo},
		events:      eventPublisher{dispatcher: deps.Dispatcher, metrics: deps.Metrics},
		logger:      nopLogger(deps.Logger),
		cfg:         deps.Config,
		now:         nowUTC,
	}
}

// Directory exposes the actor directory used by the service.
func (s *TicketService) Directory() *ActorDirectory {
	return s.directory
}

// Create opens a ticket for a customer, routed to the team covering the
// customer's active connection.
func (s *TicketService) Create(ctx context.Context, actor *domain.ActorSummary, input CreateTicketInput) (*domain.TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	customerID := strings.TrimSpace(input.CustomerID)
	if actor.Ref.Kind == domain.ActorCustomer {
		if customerID != "" && customerID != actor.Ref.ID {
			return nil, apperrors.NewForbidden("customers can only open tickets for themselves")
		}
		customerID = actor.Ref.ID
	}
	if customerID == "" {
		return nil, apperrors.NewValidationError("customer_id is required", nil)
	}
	fields, err := normalizeTicketFields(input.Description, input.IssueType, input.Priority)
	if err != nil {
		return nil, err
	}
	if _, err := s.actors.GetCustomer(ctx, customerID); err != nil {
		return nil, repoError(err, "customer", map[string]any{"customer_id": customerID})
	}

	conn, err := s.connections.GetActiveForCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewMissingServiceArea("customer has no active connection", map[string]any{"customer_id": customerID})
		}
		return nil, apperrors.MapError(err)
	}
	if !conn.IsActive || conn.ServiceAreaID == "" {
		return nil, apperrors.NewMissingServiceArea("customer's active connection has no service area",
			map[string]any{"customer_id": customerID, "connection_id": conn.ID})
	}
	return s.open(ctx, actor, customerID, conn, fields)
}

// CreateInternal opens a ticket on behalf of the customer owning a connection.
func (s *TicketService) CreateInternal(ctx context.Context, actor *domain.ActorSummary, input CreateInternalInput) (*domain.TicketView, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.ConnectionID) == "" {
		return nil, apperrors.NewValidationError("connection_id is required", nil)
	}
	fields, err := normalizeTicketFields(input.Description, input.IssueType, input.Priority)
	if err != nil {
		return nil, err
	}
	conn, err := s.connections.GetByID(ctx, input.ConnectionID)
	if err != nil {
		return nil, repoError(err, "connection", map[string]any{"connection_id": input.ConnectionID})
	}
	if _, err := s.actors.GetCustomer(ctx, conn.CustomerID); err != nil {
		return nil, repoError(err, "customer", map[string]any{"customer_id": conn.CustomerID, "connection_id": conn.ID})
	}
	if conn.ServiceAreaID == "" {
		return nil, apperrors.NewMissingServiceArea("connection has no service area", map[string]any{"connection_id": conn.ID})
	}
	return s.open(ctx, actor, conn.CustomerID, conn, fields)
}

type ticketFields struct {
	description string
	issueType   string
	priority    domain.TicketPriority
}

func normalizeTicketFields(description, issueType, priority string) (ticketFields, error) {
	fields := ticketFields{
		description: strings.TrimSpace(description),
		issueType:   strings.TrimSpace(issueType),
		priority:    domain.TicketPriorityLow,
	}
	if err := validateDescription(fields.description); err != nil {
		return ticketFields{}, err
	}
	if fields.issueType == "" {
		fields.issueType = domain.DefaultIssueType
	}
	if err := validateIssueType(fields.issueType); err != nil {
		return ticketFields{}, err
	}
	if strings.TrimSpace(priority) != "" {
		parsed, ok := domain.ParseTicketPriority(priority)
		if !ok {
			return ticketFields{}, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
		}
		fields.priority = parsed
	}
	return fields, nil
}

func validateDescription(description string) error {
	length := utf8.RuneCountInString(description)
	if length == 0 {
		return apperrors.NewValidationError("description is required", nil)
	}
	if length > domain.MaxDescriptionLength {
		return apperrors.NewValidationError("description too long", map[string]any{"max": domain.MaxDescriptionLength})
	}
	return nil
}

func validateIssueType(issueType string) error {
	if utf8.RuneCountInString(issueType) > domain.MaxIssueTypeLength {
		return apperrors.NewValidationError("issue_type too long", map[string]any{"max": domain.MaxIssueTypeLength})
	}
	return nil
}

func (s *TicketService) open(ctx context.Context, actor *domain.ActorSummary, customerID string, conn *domain.Connection, fields ticketFields) (*domain.TicketView, error) {
	team, err := s.routing.FindResponsibleTeam(ctx, conn.ServiceAreaID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	connectionID := conn.ID
	updater := actor.Ref
	ticket := &domain.Ticket{
		ID:                uuid.NewString(),
		Number:            generateTicketNumber(),
		CustomerID:        customerID,
		ConnectionID:      &connectionID,
		AssignmentHistory: []domain.AssignmentRecord{},
		IssueType:         fields.issueType,
		Description:       fields.description,
		Priority:          fields.priority,
		Status:            domain.TicketStatusOpen,
		PublicComments:    []string{},
		PrivateComments:   []string{},
		Attachments:       []string{},
		CreatedBy:         actor.Ref,
		UpdatedBy:         &updater,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	ticket.AppendAssignment(domain.AssignmentRecord{
		AssignedTo: team.Ref,
		AssignedBy: actor.Ref,
		AssignedAt: now,
	})
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.connections.LinkTicket(ctx, conn.ID, ticket.ID); err != nil {
		s.logger.Warn("link ticket to connection",
			zap.String("ticket_id", ticket.ID),
			zap.String("connection_id", conn.ID),
			zap.Error(err))
	}
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("number", ticket.Number),
		zap.String("assigned_to", team.Ref.String()))

	view, err := newViewBuilder(s.directory, s.attachments).ticket(ctx, ticket)
	if err != nil {
		return nil, err
	}
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor.Ref,
		Global:   true,
		Payload:  events.TicketPayload{Ticket: view},
	})
	return forActor(view, actor), nil
}

// Get returns a ticket the actor is allowed to see.
func (s *TicketService) Get(ctx context.Context, actor *domain.ActorSummary, ticketID string) (*domain.TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	view, err := newViewBuilder(s.directory, s.attachments).ticket(ctx, ticket)
	if err != nil {
		return nil, err
	}
	return forActor(view, actor), nil
}

// List returns tickets newest first, scoped to what the actor may see.
func (s *TicketService) List(ctx context.Context, actor *domain.ActorSummary, filter TicketListFilter) ([]domain.TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	repoFilter := repository.TicketFilter{
		CustomerID: filter.CustomerID,
		IssueType:  filter.IssueType,
		AssignedTo: filter.AssignedTo,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	for _, raw := range filter.Statuses {
		status, ok := domain.ParseTicketStatus(raw)
		if !ok {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": raw})
		}
		repoFilter.Statuses = append(repoFilter.Statuses, status)
	}
	for _, raw := range filter.Priorities {
		priority, ok := domain.ParseTicketPriority(raw)
		if !ok {
			return nil, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": raw})
		}
		repoFilter.Priorities = append(repoFilter.Priorities, priority)
	}
	switch actor.Ref.Kind {
	case domain.ActorCustomer:
		id := actor.Ref.ID
		repoFilter.CustomerID = &id
	case domain.ActorTeam:
		repoFilter.TeamScope = &repository.TeamScope{TeamID: actor.Ref.ID, ServiceAreaIDs: actor.ServiceAreas}
	}

	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	builder := newViewBuilder(s.directory, s.attachments)
	views := make([]domain.TicketView, 0, len(tickets))
	for i := range tickets {
		view, err := builder.ticket(ctx, &tickets[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *forActor(view, actor))
	}
	return views, nil
}

// ListForCustomer lists a customer's tickets. Customers may only ask for their own.
func (s *TicketService) ListForCustomer(ctx context.Context, actor *domain.ActorSummary, customerID string, limit, offset int) ([]domain.TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Ref.Kind == domain.ActorCustomer {
		if customerID != "" && customerID != actor.Ref.ID {
			return nil, apperrors.NewForbidden("access denied")
		}
		customerID = actor.Ref.ID
	}
	if customerID == "" {
		return nil, apperrors.NewValidationError("customer_id is required", nil)
	}
	return s.List(ctx, actor, TicketListFilter{CustomerID: &customerID, Limit: limit, Offset: offset})
}

// Recent returns the latest tickets visible to the actor.
func (s *TicketService) Recent(ctx context.Context, actor *domain.ActorSummary, limit int) ([]domain.TicketView, error) {
	if limit <= 0 {
		limit = s.cfg.RecentLimit
	}
	if limit <= 0 {
		limit = 5
	}
	return s.List(ctx, actor, TicketListFilter{Limit: limit})
}

// Update applies a partial update. Status changes are accepted between any
// states unless transition guarding is enabled.
func (s *TicketService) Update(ctx context.Context, actor *domain.ActorSummary, ticketID string, input UpdateTicketInput) (*domain.TicketView, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if input.Description == nil && input.IssueType == nil && input.Priority == nil && input.Status == nil {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if err := validateDescription(description); err != nil {
			return nil, err
		}
		if description != ticket.Description {
			ticket.Description = description
			changes["description"] = description
		}
	}
	if input.IssueType != nil {
		issueType := strings.TrimSpace(*input.IssueType)
		if issueType == "" {
			issueType = domain.DefaultIssueType
		}
		if err := validateIssueType(issueType); err != nil {
			return nil, err
		}
		if issueType != ticket.IssueType {
			ticket.IssueType = issueType
			changes["issue_type"] = issueType
		}
	}
	if input.Priority != nil {
		priority, ok := domain.ParseTicketPriority(*input.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
		}
		if priority != ticket.Priority {
			ticket.Priority = priority
			changes["priority"] = priority
		}
	}
	now := s.now()
	if input.Status != nil {
		status, ok := domain.ParseTicketStatus(*input.Status)
		if !ok {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		if err := s.checkTransition(ticket.Status, status); err != nil {
			return nil, err
		}
		if status != ticket.Status {
			changes["status"] = events.StatusDelta{From: ticket.Status, To: status}
			s.applyStatus(ticket, status, actor.Ref, now)
		}
	}
	ticket.Touch(actor.Ref, now)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return s.publishTicket(ctx, actor, ticket, events.EventTicketUpdated, events.FieldChangesDelta{Changes: changes})
}

// Escalate flags the ticket and moves it to Escalated.
func (s *TicketService) Escalate(ctx context.Context, actor *domain.ActorSummary, ticketID string) (*domain.TicketView, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(ticket.Status, domain.TicketStatusEscalated); err != nil {
		return nil, err
	}
	delta := events.StatusDelta{From: ticket.Status, To: domain.TicketStatusEscalated}
	now := s.now()
	ticket.Escalated = true
	ticket.Status = domain.TicketStatusEscalated
	ticket.Touch(actor.Ref, now)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return s.publishTicket(ctx, actor, ticket, events.EventTicketEscalated, delta)
}

// Resolve closes the ticket with a resolution message and records the resolver.
func (s *TicketService) Resolve(ctx context.Context, actor *domain.ActorSummary, ticketID, resolutionMessage string) (*domain.TicketView, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	message := strings.TrimSpace(resolutionMessage)
	if message == "" {
		return nil, apperrors.NewValidationError("resolution_message is required", nil)
	}
	if utf8.RuneCountInString(message) > domain.MaxResolutionMessageLength {
		return nil, apperrors.NewValidationError("resolution_message too long", map[string]any{"max": domain.MaxResolutionMessageLength})
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(ticket.Status, domain.TicketStatusClosed); err != nil {
		return nil, err
	}
	delta := events.StatusDelta{From: ticket.Status, To: domain.TicketStatusClosed, ResolutionMessage: message}
	now := s.now()
	resolver := actor.Ref
	ticket.Status = domain.TicketStatusClosed
	ticket.ResolutionMessage = &message
	ticket.ResolvedBy = &resolver
	ticket.ResolvedAt = &now
	ticket.Touch(actor.Ref, now)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return s.publishTicket(ctx, actor, ticket, events.EventTicketResolved, delta)
}

// Reopen moves a ticket back to Open. Staff and the owning customer may reopen.
func (s *TicketService) Reopen(ctx context.Context, actor *domain.ActorSummary, ticketID string) (*domain.TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(ticket.Status, domain.TicketStatusOpen); err != nil {
		return nil, err
	}
	delta := events.StatusDelta{From: ticket.Status, To: domain.TicketStatusOpen}
	ticket.Status = domain.TicketStatusOpen
	ticket.Touch(actor.Ref, s.now())
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return s.publishTicket(ctx, actor, ticket, events.EventTicketReopened, delta)
}

// Close moves a ticket to Closed without a resolution message.
func (s *TicketService) Close(ctx context.Context, actor *domain.ActorSummary, ticketID string) (*domain.TicketView, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(ticket.Status, domain.TicketStatusClosed); err != nil {
		return nil, err
	}
	delta := events.StatusDelta{From: ticket.Status, To: domain.TicketStatusClosed}
	now := s.now()
	s.applyStatus(ticket, domain.TicketStatusClosed, actor.Ref, now)
	ticket.Touch(actor.Ref, now)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return s.publishTicket(ctx, actor, ticket, events.EventTicketClosed, delta)
}

// BulkUpdate applies the same status and/or priority to many tickets. Unknown
// ids are skipped; the result lists the tickets that changed.
func (s *TicketService) BulkUpdate(ctx context.Context, actor *domain.ActorSummary, input BulkUpdateInput) (*BulkUpdateResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if input.Status == nil && input.Priority == nil {
		return nil, apperrors.NewValidationError("status or priority is required", nil)
	}
	ids := make([]string, 0, len(input.TicketIDs))
	seen := map[string]bool{}
	for _, id := range input.TicketIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("ticket_ids is required", nil)
	}

	changes := repository.BulkChanges{UpdatedBy: actor.Ref, At: s.now()}
	if input.Status != nil {
		status, ok := domain.ParseTicketStatus(*input.Status)
		if !ok {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		changes.Status = &status
		if s.cfg.GuardTransitions {
			changes.AllowedFrom = sourcesFor(status)
		}
	}
	if input.Priority != nil {
		priority, ok := domain.ParseTicketPriority(*input.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
		}
		changes.Priority = &priority
	}

	modified, err := s.tickets.BulkUpdate(ctx, ids, changes)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	delta := map[string]any{}
	if changes.Status != nil {
		delta["status"] = *changes.Status
	}
	if changes.Priority != nil {
		delta["priority"] = *changes.Priority
	}
	for _, id := range modified {
		ticket, err := s.reload(ctx, id)
		if err != nil {
			s.logger.Warn("reload bulk-updated ticket", zap.String("ticket_id", id), zap.Error(err))
			continue
		}
		if _, err := s.publishTicket(ctx, actor, ticket, events.EventTicketUpdated, events.FieldChangesDelta{Changes: delta}); err != nil {
			s.logger.Warn("publish bulk update", zap.String("ticket_id", id), zap.Error(err))
		}
	}
	s.logger.Info("bulk update applied", zap.Int("requested", len(ids)), zap.Int("modified", len(modified)))
	return &BulkUpdateResult{Modified: modified, Count: len(modified)}, nil
}

// sourcesFor lists the states from which target is reachable.
func sourcesFor(target domain.TicketStatus) []domain.TicketStatus {
	sources := []domain.TicketStatus{}
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusOpen,
		domain.TicketStatusInProgress,
		domain.TicketStatusEscalated,
		domain.TicketStatusClosed,
	} {
		if domain.CanTransition(status, target) {
			sources = append(sources, status)
		}
	}
	return sources
}

// Delete removes a ticket. Its comments and attachments are left for the reaper.
func (s *TicketService) Delete(ctx context.Context, actor *domain.ActorSummary, ticketID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	s.logger.Info("ticket deleted", zap.String("ticket_id", ticketID), zap.String("actor", actor.Ref.String()))
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticketID,
		Actor:    actor.Ref,
		Global:   true,
		Payload:  events.TicketPayload{Delta: events.DeletedDelta{ID: ticketID}},
	})
	return nil
}

// AuthorizeRoom reports whether the actor may subscribe to a ticket's events.
func (s *TicketService) AuthorizeRoom(ctx context.Context, actor *domain.ActorSummary, ticketID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	_, err := s.loadVisible(ctx, actor, ticketID)
	return err
}

func (s *TicketService) checkTransition(from, to domain.TicketStatus) error {
	if !s.cfg.GuardTransitions || domain.CanTransition(from, to) {
		return nil
	}
	return apperrors.NewValidationError("invalid status transition", map[string]any{"from": from, "to": to})
}

// applyStatus sets the status and stamps the first resolution.
func (s *TicketService) applyStatus(ticket *domain.Ticket, status domain.TicketStatus, by domain.ActorRef, at time.Time) {
	ticket.Status = status
	if status == domain.TicketStatusClosed {
		ticket.MarkResolved(by, at)
	}
}

func (s *TicketService) reload(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func (s *TicketService) loadVisible(ctx context.Context, actor *domain.ActorSummary, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.reload(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.access.requireView(ctx, actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) publishTicket(ctx context.Context, actor *domain.ActorSummary, ticket *domain.Ticket, eventType events.EventType, delta any) (*domain.TicketView, error) {
	view, err := newViewBuilder(s.directory, s.attachments).ticket(ctx, ticket)
	if err != nil {
		return nil, err
	}
	s.events.publish(ctx, events.Event{
		Type:     eventType,
		TicketID: ticket.ID,
		Actor:    actor.Ref,
		Payload:  events.TicketPayload{Ticket: view, Delta: delta},
	})
	return forActor(view, actor), nil
}
