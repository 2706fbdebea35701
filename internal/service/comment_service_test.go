package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/events"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

func TestAddCommentVisibilityRules(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)

	for _, ref := range []domain.ActorRef{cust1, team1, admin1} {
		if _, err := env.comments.AddComment(ctx, env.actor(t, ref), ticket.ID, "public note from "+ref.ID, domain.VisibilityPublic); err != nil {
			t.Fatalf("%v public comment: %v", ref, err)
		}
	}

	_, err := env.comments.AddComment(ctx, env.actor(t, cust1), ticket.ID, "let me see the notes", domain.VisibilityPrivate)
	requireCode(t, err, apperrors.CodeForbidden)

	for _, ref := range []domain.ActorRef{team1, admin1} {
		if _, err := env.comments.AddComment(ctx, env.actor(t, ref), ticket.ID, "internal from "+ref.ID, domain.VisibilityPrivate); err != nil {
			t.Fatalf("%v private comment: %v", ref, err)
		}
	}

	stored, err := env.store.Tickets().GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(stored.PublicComments) != 3 || len(stored.PrivateComments) != 2 {
		t.Fatalf("lists = %d public / %d private", len(stored.PublicComments), len(stored.PrivateComments))
	}
	if stored.UpdatedBy == nil || !stored.UpdatedBy.Equal(admin1) {
		t.Fatalf("updated_by = %v", stored.UpdatedBy)
	}

	public := env.log.ofType(events.EventTicketPublicCommentAdded)
	private := env.log.ofType(events.EventTicketPrivateCommentAdded)
	if len(public) != 3 || len(private) != 2 {
		t.Fatalf("comment events = %d public / %d private", len(public), len(private))
	}
	for _, event := range public {
		if event.StaffOnly {
			t.Fatalf("public comment event marked staff-only: %+v", event)
		}
	}
	for _, event := range private {
		if !event.StaffOnly {
			t.Fatalf("private comment event not staff-only: %+v", event)
		}
		if event.Payload.Ticket == nil || len(event.Payload.Ticket.PrivateComments) == 0 {
			t.Fatalf("private event ticket view missing new comment")
		}
	}
}

func TestAddCommentThenListRoundTrip(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)

	cases := []struct {
		author     domain.ActorRef
		visibility domain.CommentVisibility
		content    string
	}{
		{cust1, domain.VisibilityPublic, "still down after reboot"},
		{team1, domain.VisibilityPublic, "technician dispatched"},
		{team1, domain.VisibilityPrivate, "suspect damaged drop cable"},
	}
	for _, tc := range cases {
		if _, err := env.comments.AddComment(ctx, env.actor(t, tc.author), ticket.ID, tc.content, tc.visibility); err != nil {
			t.Fatalf("AddComment: %v", err)
		}
	}

	public, err := env.comments.ListComments(ctx, env.actor(t, cust1), ticket.ID, domain.VisibilityPublic)
	if err != nil {
		t.Fatalf("ListComments public: %v", err)
	}
	if len(public) != 2 {
		t.Fatalf("public comments = %d, want 2", len(public))
	}
	for i, want := range cases[:2] {
		got := public[i]
		if got.Content != want.content || !got.AuthoredBy.Equal(want.author) {
			t.Fatalf("public[%d] = %q by %v, want %q by %v", i, got.Content, got.AuthoredBy, want.content, want.author)
		}
		if got.Author == nil || !got.Author.Ref.Equal(want.author) || got.Author.DisplayName == "" {
			t.Fatalf("public[%d] author not resolved: %+v", i, got.Author)
		}
		if got.Visibility != domain.VisibilityPublic {
			t.Fatalf("public[%d] visibility = %q", i, got.Visibility)
		}
	}

	private, err := env.comments.ListComments(ctx, env.actor(t, team2), ticket.ID, domain.VisibilityPrivate)
	if err != nil {
		t.Fatalf("ListComments private: %v", err)
	}
	if len(private) != 1 || private[0].Content != cases[2].content || private[0].Author.DisplayName != "Ari First" {
		t.Fatalf("private comments = %+v", private)
	}

	_, err = env.comments.ListComments(ctx, env.actor(t, cust1), ticket.ID, domain.VisibilityPrivate)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = env.comments.ListComments(ctx, env.actor(t, cust4), ticket.ID, domain.VisibilityPublic)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestCustomerTicketViewHidesPrivateComments(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)
	if _, err := env.comments.AddComment(ctx, env.actor(t, team1), ticket.ID, "internal", domain.VisibilityPrivate); err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	customerView, err := env.tickets.Get(ctx, env.actor(t, cust1), ticket.ID)
	if err != nil {
		t.Fatalf("Get as customer: %v", err)
	}
	if len(customerView.PrivateComments) != 0 {
		t.Fatalf("customer sees private comments: %v", customerView.PrivateComments)
	}
	staffView, err := env.tickets.Get(ctx, env.actor(t, team1), ticket.ID)
	if err != nil {
		t.Fatalf("Get as staff: %v", err)
	}
	if len(staffView.PrivateComments) != 1 {
		t.Fatalf("staff private comments = %v", staffView.PrivateComments)
	}
}

func TestAddCommentValidation(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)
	customer := env.actor(t, cust1)

	cases := []struct {
		name       string
		ticketID   string
		content    string
		visibility domain.CommentVisibility
		code       string
	}{
		{"empty content", ticket.ID, "   ", domain.VisibilityPublic, apperrors.CodeValidation},
		{"too long", ticket.ID, strings.Repeat("c", MaxCommentLength+1), domain.VisibilityPublic, apperrors.CodeValidation},
		{"bad visibility", ticket.ID, "hello", domain.CommentVisibility("internal"), apperrors.CodeValidation},
		{"missing ticket", "missing", "hello", domain.VisibilityPublic, apperrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.comments.AddComment(ctx, customer, tc.ticketID, tc.content, tc.visibility)
			requireCode(t, err, tc.code)
		})
	}

	stored, _ := env.store.Tickets().GetByID(ctx, ticket.ID)
	if len(stored.PublicComments) != 0 {
		t.Fatalf("rejected comments were linked: %v", stored.PublicComments)
	}
}

func TestAddCommentAttachment(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)

	public, err := env.comments.AddComment(ctx, env.actor(t, cust1), ticket.ID, "photo of the router", domain.VisibilityPublic)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	private, err := env.comments.AddComment(ctx, env.actor(t, team1), ticket.ID, "signal trace", domain.VisibilityPrivate)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	attachment, err := env.comments.AddCommentAttachment(ctx, env.actor(t, cust1), public.ID, Upload{
		Name:     "router.jpg",
		MimeType: "image/jpeg",
		Body:     bytes.NewReader([]byte("\xff\xd8\xff\xe0 fake jpeg")),
	})
	if err != nil {
		t.Fatalf("AddCommentAttachment: %v", err)
	}
	if attachment.Name != "router.jpg" || attachment.MimeType != "image/jpeg" || !strings.HasPrefix(attachment.Src, "blake3:") {
		t.Fatalf("attachment = %+v", attachment)
	}

	_, err = env.comments.AddCommentAttachment(ctx, env.actor(t, cust1), private.ID, Upload{
		Name: "sneaky.txt", Body: strings.NewReader("x"),
	})
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = env.comments.AddCommentAttachment(ctx, env.actor(t, team1), "missing", Upload{
		Name: "a.txt", Body: strings.NewReader("x"),
	})
	requireCode(t, err, apperrors.CodeNotFound)

	listed, err := env.comments.ListComments(ctx, env.actor(t, cust1), ticket.ID, domain.VisibilityPublic)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(listed) != 1 || len(listed[0].Attachments) != 1 || len(listed[0].AttachmentDetails) != 1 {
		t.Fatalf("comment attachments = %+v", listed)
	}
	if listed[0].AttachmentDetails[0].ID != attachment.ID {
		t.Fatalf("attachment detail = %+v", listed[0].AttachmentDetails[0])
	}

	added := env.log.ofType(events.EventCommentAttachmentAdded)
	if len(added) != 1 || added[0].StaffOnly || added[0].TicketID != ticket.ID {
		t.Fatalf("commentAttachmentAdded events = %+v", added)
	}
	delta, ok := added[0].Payload.Delta.(events.AttachmentDelta)
	if !ok || delta.CommentID != public.ID || delta.Attachment.ID != attachment.ID {
		t.Fatalf("delta = %+v", added[0].Payload.Delta)
	}
}
