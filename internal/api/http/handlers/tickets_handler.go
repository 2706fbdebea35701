package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/isp-support/internal/api/dto"
	"github.com/spec-kit/isp-support/internal/auth"
	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/service"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket lifecycle.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.service.Create(c.UserContext(), actor, service.CreateTicketInput{
		CustomerID:  req.CustomerID,
		Description: req.Description,
		IssueType:   req.IssueType,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": view})
}

// CreateInternalTicket POST /tickets/internal.
func (h *TicketsHandler) CreateInternalTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateInternalTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.service.CreateInternal(c.UserContext(), actor, service.CreateInternalInput{
		ConnectionID: req.ConnectionID,
		Description:  req.Description,
		IssueType:    req.IssueType,
		Priority:     req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": view})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	views, err := h.service.List(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(views)})
}

// ListCustomerTickets GET /customers/:id/tickets.
func (h *TicketsHandler) ListCustomerTickets(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	limit, offset := paging(c)
	views, err := h.service.ListForCustomer(c.UserContext(), actor, c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(views)})
}

// RecentTickets GET /tickets/recent.
func (h *TicketsHandler) RecentTickets(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	views, err := h.service.Recent(c.UserContext(), actor, parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(views)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	view, err := h.service.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.service.Update(c.UserContext(), actor, c.Params("id"), service.UpdateTicketInput{
		Description: req.Description,
		IssueType:   req.IssueType,
		Priority:    req.Priority,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	target, err := actorRef(req.AssignedTo.Kind, req.AssignedTo.ID)
	if err != nil {
		return err
	}
	view, err := h.service.Assign(c.UserContext(), actor, c.Params("id"), service.AssignTicketInput{
		AssignedTo: target,
		Note:       req.Note,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// SelfAssignTicket POST /tickets/:id/self-assign.
func (h *TicketsHandler) SelfAssignTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.SelfAssignRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	view, err := h.service.SelfAssign(c.UserContext(), actor, c.Params("id"), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// AssignmentHistory GET /tickets/:id/history.
func (h *TicketsHandler) AssignmentHistory(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	history, err := h.service.History(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": history})
}

// EscalateTicket POST /tickets/:id/escalate.
func (h *TicketsHandler) EscalateTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	view, err := h.service.Escalate(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// ResolveTicket POST /tickets/:id/resolve.
func (h *TicketsHandler) ResolveTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ResolveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.service.Resolve(c.UserContext(), actor, c.Params("id"), req.ResolutionMessage)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// ReopenTicket POST /tickets/:id/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	view, err := h.service.Reopen(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	view, err := h.service.Close(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// BulkUpdate POST /tickets/bulk.
func (h *TicketsHandler) BulkUpdate(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.BulkUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.BulkUpdate(c.UserContext(), actor, service.BulkUpdateInput{
		TicketIDs: req.TicketIDs,
		Status:    req.Status,
		Priority:  req.Priority,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func principal(c *fiber.Ctx) (*domain.ActorSummary, error) {
	actor, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func actorRef(kind, id string) (domain.ActorRef, error) {
	parsed, err := domain.ParseActorKind(kind)
	if err != nil {
		return domain.ActorRef{}, apperrors.NewValidationError("invalid actor kind", map[string]any{"kind": kind})
	}
	if strings.TrimSpace(id) == "" {
		return domain.ActorRef{}, apperrors.NewValidationError("actor id is required", nil)
	}
	return domain.NewActorRef(parsed, strings.TrimSpace(id)), nil
}

func parseTicketFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{
		Statuses:   splitList(c.Query("status")),
		Priorities: splitList(c.Query("priority")),
	}
	if customerID := c.Query("customer_id"); customerID != "" {
		filter.CustomerID = &customerID
	}
	if issueType := c.Query("issue_type"); issueType != "" {
		filter.IssueType = &issueType
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		ref, err := actorRef(c.Query("assigned_kind", string(domain.ActorTeam)), assignee)
		if err != nil {
			return filter, err
		}
		filter.AssignedTo = &ref
	}
	filter.Limit, filter.Offset = paging(c)
	return filter, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func paging(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	return pageSize, (page - 1) * pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummaries(views []domain.TicketView) []dto.TicketSummary {
	items := make([]dto.TicketSummary, 0, len(views))
	for i := range views {
		view := &views[i]
		items = append(items, dto.TicketSummary{
			ID:         view.ID,
			Number:     view.Number,
			CustomerID: view.CustomerID,
			Customer:   view.CustomerSummary,
			Assignee:   view.AssigneeSummary,
			IssueType:  view.IssueType,
			Priority:   view.Priority,
			Status:     view.Status,
			Escalated:  view.Escalated,
			CreatedAt:  view.CreatedAt,
			UpdatedAt:  view.UpdatedAt,
		})
	}
	return items
}
