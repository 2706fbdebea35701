package service

import (
	"bytes"
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/events"
)

// NotificationService turns ticket events into customer emails and staff webhooks.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	markdown   goldmark.Markdown
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     nopLogger(logger),
		cfg:        cfg,
		// raw HTML in comments stays escaped: goldmark's unsafe mode is off
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleStaffEvent)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleStaffEvent)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
	n.dispatcher.Subscribe(events.EventTicketPublicCommentAdded, n.handlePublicComment)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID))
	n.sendEmailNotificationStub(ctx, event, "")
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleStaffEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("ticket_id", event.TicketID), zap.String("actor", event.Actor.String()))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketResolved", zap.String("ticket_id", event.TicketID))
	body := ""
	if delta, ok := event.Payload.Delta.(events.StatusDelta); ok {
		body = delta.ResolutionMessage
	}
	html, err := n.RenderHTML(body)
	if err != nil {
		return err
	}
	n.sendEmailNotificationStub(ctx, event, html)
	return nil
}

func (n *NotificationService) handlePublicComment(ctx context.Context, event events.Event) error {
	delta, ok := event.Payload.Delta.(events.CommentDelta)
	if !ok {
		return nil
	}
	// customers are not notified about their own comments
	if !delta.Comment.AuthoredBy.Kind.IsStaff() {
		return nil
	}
	html, err := n.RenderHTML(delta.Comment.Content)
	if err != nil {
		return err
	}
	n.sendEmailNotificationStub(ctx, event, html)
	return nil
}

// RenderHTML converts markdown content to an HTML fragment for email bodies.
func (n *NotificationService) RenderHTML(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := n.markdown.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event, html string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	recipient := ""
	if view := event.Payload.Ticket; view != nil && view.CustomerSummary != nil {
		recipient = view.CustomerSummary.Email
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", recipient),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)),
		zap.Int("html_bytes", len(html)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
