package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/repository"
)

var (
	customerRef = domain.NewActorRef(domain.ActorCustomer, "cust-1")
	teamRef     = domain.NewActorRef(domain.ActorTeam, "team-1")
	adminRef    = domain.NewActorRef(domain.ActorAdmin, "admin-1")
)

func seedTicket(t *testing.T, store *Store, id string, createdAt time.Time) {
	t.Helper()
	conn := "conn-1"
	ticket := &domain.Ticket{
		ID:           id,
		Number:       "TCK-" + id,
		CustomerID:   customerRef.ID,
		ConnectionID: &conn,
		IssueType:    domain.DefaultIssueType,
		Description:  "no internet",
		Priority:     domain.TicketPriorityLow,
		Status:       domain.TicketStatusOpen,
		CreatedBy:    customerRef,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	ticket.AppendAssignment(domain.AssignmentRecord{AssignedTo: teamRef, AssignedBy: customerRef, AssignedAt: createdAt})
	if err := store.Tickets().Create(context.Background(), ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
}

func TestTicketsAreCopiedOnReadAndWrite(t *testing.T) {
	store := New()
	ctx := context.Background()
	seedTicket(t, store, "t1", time.Now())

	got, err := store.Tickets().GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	got.AssignmentHistory[0].Note = "mutated"
	got.Description = "mutated"

	again, _ := store.Tickets().GetByID(ctx, "t1")
	if again.AssignmentHistory[0].Note != "" || again.Description != "no internet" {
		t.Fatal("store leaked internal state")
	}
}

func TestAssignAppendsHistory(t *testing.T) {
	store := New()
	ctx := context.Background()
	created := time.Now().Add(-time.Hour)
	seedTicket(t, store, "t1", created)

	if err := store.Tickets().Assign(ctx, "t1", domain.AssignmentRecord{
		AssignedTo: adminRef, AssignedBy: adminRef, AssignedAt: time.Now(), Note: "taking over",
	}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	ticket, _ := store.Tickets().GetByID(ctx, "t1")
	if len(ticket.AssignmentHistory) != 2 {
		t.Fatalf("expected 2 records, got %d", len(ticket.AssignmentHistory))
	}
	if err := ticket.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	if !ticket.UpdatedAt.After(created) {
		t.Fatal("expected updated_at to advance")
	}

	if err := store.Tickets().Assign(ctx, "missing", domain.AssignmentRecord{}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBulkUpdateSkipsMissingAndStampsResolution(t *testing.T) {
	store := New()
	ctx := context.Background()
	seedTicket(t, store, "t1", time.Now())
	seedTicket(t, store, "t2", time.Now())

	closed := domain.TicketStatusClosed
	updated, err := store.Tickets().BulkUpdate(ctx, []string{"t1", "nope", "t2", "t1"}, repository.BulkChanges{
		Status:    &closed,
		UpdatedBy: adminRef,
		At:        time.Now(),
	})
	if err != nil {
		t.Fatalf("BulkUpdate: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated, got %v", updated)
	}
	ticket, _ := store.Tickets().GetByID(ctx, "t2")
	if ticket.ResolvedAt == nil || ticket.ResolvedBy == nil || !ticket.ResolvedBy.Equal(adminRef) {
		t.Fatalf("expected resolution stamp, got %+v", ticket)
	}

	inProgress := domain.TicketStatusInProgress
	updated, _ = store.Tickets().BulkUpdate(ctx, []string{"t1"}, repository.BulkChanges{
		Status:      &inProgress,
		UpdatedBy:   adminRef,
		At:          time.Now(),
		AllowedFrom: []domain.TicketStatus{domain.TicketStatusOpen},
	})
	if len(updated) != 0 {
		t.Fatalf("expected closed ticket to be skipped, got %v", updated)
	}
}

func TestListFiltersAndOrdering(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	seedTicket(t, store, "old", base)
	seedTicket(t, store, "new", base.Add(time.Minute))
	_ = store.Directory().UpsertConnection(ctx, domain.Connection{ID: "conn-1", CustomerID: customerRef.ID, ServiceAreaID: "area-1", IsActive: true})

	all, err := store.Tickets().List(ctx, repository.TicketFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].ID != "new" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[0].AssignmentHistory != nil {
		t.Fatal("list rows should not carry history")
	}

	scoped, _ := store.Tickets().List(ctx, repository.TicketFilter{
		TeamScope: &repository.TeamScope{TeamID: "other-team", ServiceAreaIDs: []string{"area-2"}},
	})
	if len(scoped) != 0 {
		t.Fatalf("expected no tickets outside scope, got %d", len(scoped))
	}
	scoped, _ = store.Tickets().List(ctx, repository.TicketFilter{
		TeamScope: &repository.TeamScope{TeamID: "other-team", ServiceAreaIDs: []string{"area-1"}},
	})
	if len(scoped) != 2 {
		t.Fatalf("expected area match, got %d", len(scoped))
	}

	paged, _ := store.Tickets().List(ctx, repository.TicketFilter{Limit: 1, Offset: 1})
	if len(paged) != 1 || paged[0].ID != "old" {
		t.Fatalf("unexpected page %+v", paged)
	}
}

func TestDeleteOrphansCommentsThenAttachments(t *testing.T) {
	store := New()
	ctx := context.Background()
	past := time.Now().Add(-48 * time.Hour)
	seedTicket(t, store, "t1", past)

	comment := &domain.Comment{ID: "c1", Content: "hello", AuthoredBy: customerRef, CreatedAt: past}
	_ = store.Comments().Create(ctx, comment)
	_ = store.Tickets().AppendComment(ctx, "t1", "c1", domain.VisibilityPublic, customerRef, past)
	_ = store.Attachments().Create(ctx, &domain.Attachment{ID: "a1", Name: "log.txt", Src: "blake3:x", CreatedAt: past})
	_ = store.Comments().AppendAttachment(ctx, "c1", "a1")

	if loc, err := store.Comments().Locate(ctx, "c1"); err != nil || loc.TicketID != "t1" {
		t.Fatalf("Locate: %+v %v", loc, err)
	}
	if err := store.Tickets().Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Comments().Locate(ctx, "c1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected comment to be unlinked, got %v", err)
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	removed, err := store.Attachments().DeleteOrphans(ctx, cutoff)
	if err != nil || len(removed) != 0 {
		t.Fatalf("attachment still owned by comment, removed=%v err=%v", removed, err)
	}
	count, err := store.Comments().DeleteOrphans(ctx, cutoff)
	if err != nil || count != 1 {
		t.Fatalf("expected one orphan comment, got %d %v", count, err)
	}
	removed, err = store.Attachments().DeleteOrphans(ctx, cutoff)
	if err != nil || len(removed) != 1 || removed[0].ID != "a1" {
		t.Fatalf("expected orphan attachment, got %v %v", removed, err)
	}
}

func TestRoutingOrderAndRepairLinks(t *testing.T) {
	store := New()
	ctx := context.Background()
	dir := store.Directory()
	now := time.Now()
	_ = dir.UpsertTeamMember(ctx, domain.TeamMember{ID: "b", ServiceAreaIDs: []string{"area-1"}, CreatedAt: now})
	_ = dir.UpsertTeamMember(ctx, domain.TeamMember{ID: "a", ServiceAreaIDs: []string{"area-1"}, CreatedAt: now})
	_ = dir.UpsertTeamMember(ctx, domain.TeamMember{ID: "z", ServiceAreaIDs: []string{"area-1"}, CreatedAt: now.Add(-time.Minute)})

	members, _ := store.Actors().ListTeamMembersByServiceArea(ctx, "area-1")
	if len(members) != 3 || members[0].ID != "z" || members[1].ID != "a" {
		t.Fatalf("unexpected order %+v", members)
	}

	_ = dir.UpsertConnection(ctx, domain.Connection{ID: "conn-1", CustomerID: customerRef.ID, ServiceAreaID: "area-1", IsActive: true})
	seedTicket(t, store, "t1", now.Add(-time.Hour))
	seedTicket(t, store, "t2", now)

	changed, err := store.Connections().RepairTicketLinks(ctx)
	if err != nil || changed != 1 {
		t.Fatalf("expected one repaired link, got %d %v", changed, err)
	}
	conn, _ := store.Connections().GetByID(ctx, "conn-1")
	if conn.TicketID == nil || *conn.TicketID != "t2" {
		t.Fatalf("expected link to newest ticket, got %+v", conn.TicketID)
	}
	changed, _ = store.Connections().RepairTicketLinks(ctx)
	if changed != 0 {
		t.Fatalf("repair should be idempotent, changed %d", changed)
	}
}
