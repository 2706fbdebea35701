package service

import (
	"context"
	"strings"
	"testing"

	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/events"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

func strPtr(s string) *string { return &s }

func TestCreateRoutesToOldestCoveringTeam(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	view := env.openTicket(t)

	if view.Status != domain.TicketStatusOpen {
		t.Fatalf("status = %q, want Open", view.Status)
	}
	if view.AssignedTo == nil || !view.AssignedTo.Equal(team1) {
		t.Fatalf("assigned_to = %v, want %v", view.AssignedTo, team1)
	}
	if len(view.AssignmentHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(view.AssignmentHistory))
	}
	if !view.AssignmentHistory[0].AssignedBy.Equal(cust1) {
		t.Fatalf("assigned_by = %v, want %v", view.AssignmentHistory[0].AssignedBy, cust1)
	}
	if view.Priority != domain.TicketPriorityHigh || view.IssueType != "connection" {
		t.Fatalf("fields not stored: priority=%q issue_type=%q", view.Priority, view.IssueType)
	}
	if !view.CreatedBy.Equal(cust1) || view.Escalated {
		t.Fatalf("unexpected creator/escalation: %v %v", view.CreatedBy, view.Escalated)
	}
	if !strings.HasPrefix(view.Number, "TCK-") {
		t.Fatalf("number = %q", view.Number)
	}
	if view.AssigneeSummary == nil || view.AssigneeSummary.DisplayName != "Ari First" {
		t.Fatalf("assignee summary = %+v", view.AssigneeSummary)
	}
	checkInvariants(t, &view.Ticket)

	conn, err := env.store.Connections().GetByID(context.Background(), "conn-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if conn.TicketID == nil || *conn.TicketID != view.ID {
		t.Fatalf("connection not linked to ticket: %v", conn.TicketID)
	}

	created := env.log.ofType(events.EventTicketCreated)
	if len(created) != 1 || !created[0].Global || created[0].TicketID != view.ID {
		t.Fatalf("ticketCreated events = %+v", created)
	}
	if created[0].Payload.Ticket == nil || created[0].ID == "" || created[0].Timestamp.IsZero() {
		t.Fatalf("event not stamped: %+v", created[0])
	}
	if got := env.metrics.Snapshot().Events[string(events.EventTicketCreated)]; got != 1 {
		t.Fatalf("event metric = %d, want 1", got)
	}
}

func TestCreateRoutingFailuresCreateNothing(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()

	cases := []struct {
		name     string
		customer domain.ActorRef
		code     string
	}{
		{"no active connection", cust2, apperrors.CodeMissingServiceArea},
		{"connection without area", cust5, apperrors.CodeMissingServiceArea},
		{"area without team", cust3, apperrors.CodeNoTeamForArea},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.tickets.Create(ctx, env.actor(t, tc.customer), CreateTicketInput{Description: "slow"})
			requireCode(t, err, tc.code)
		})
	}
	if n := env.ticketCount(t); n != 0 {
		t.Fatalf("tickets created = %d, want 0", n)
	}
	if len(env.log.all()) != 0 {
		t.Fatalf("events published for failed creates: %+v", env.log.all())
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	customer := env.actor(t, cust1)

	cases := []struct {
		name  string
		actor *domain.ActorSummary
		input CreateTicketInput
		code  string
	}{
		{"empty description", customer, CreateTicketInput{Description: "  "}, apperrors.CodeValidation},
		{"description too long", customer, CreateTicketInput{Description: strings.Repeat("x", domain.MaxDescriptionLength+1)}, apperrors.CodeValidation},
		{"issue type too long", customer, CreateTicketInput{Description: "x", IssueType: strings.Repeat("y", domain.MaxIssueTypeLength+1)}, apperrors.CodeValidation},
		{"bad priority", customer, CreateTicketInput{Description: "x", Priority: "urgent"}, apperrors.CodeValidation},
		{"other customer", customer, CreateTicketInput{CustomerID: "cust-4", Description: "x"}, apperrors.CodeForbidden},
		{"staff without customer", env.actor(t, admin1), CreateTicketInput{Description: "x"}, apperrors.CodeValidation},
		{"unknown customer", env.actor(t, admin1), CreateTicketInput{CustomerID: "ghost", Description: "x"}, apperrors.CodeNotFound},
		{"anonymous", nil, CreateTicketInput{Description: "x"}, apperrors.CodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.tickets.Create(ctx, tc.actor, tc.input)
			requireCode(t, err, tc.code)
		})
	}
}

func TestCreateDefaults(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	view, err := env.tickets.Create(context.Background(), env.actor(t, admin1), CreateTicketInput{
		CustomerID:  "cust-4",
		Description: "router blinking",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if view.Priority != domain.TicketPriorityLow || view.IssueType != domain.DefaultIssueType {
		t.Fatalf("defaults not applied: priority=%q issue_type=%q", view.Priority, view.IssueType)
	}
	if !view.AssignedTo.Equal(team3) || !view.AssignmentHistory[0].AssignedBy.Equal(admin1) {
		t.Fatalf("routing/assigned_by wrong: %v by %v", view.AssignedTo, view.AssignmentHistory[0].AssignedBy)
	}
}

func TestCreateInternal(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()

	view, err := env.tickets.CreateInternal(ctx, env.actor(t, team1), CreateInternalInput{
		ConnectionID: "conn-4",
		Description:  "fiber cut reported by field crew",
		Priority:     "medium",
	})
	if err != nil {
		t.Fatalf("CreateInternal: %v", err)
	}
	if view.CustomerID != "cust-4" || !view.AssignedTo.Equal(team3) || !view.CreatedBy.Equal(team1) {
		t.Fatalf("unexpected ticket: customer=%s assigned=%v created_by=%v", view.CustomerID, view.AssignedTo, view.CreatedBy)
	}
	checkInvariants(t, &view.Ticket)

	_, err = env.tickets.CreateInternal(ctx, env.actor(t, cust1), CreateInternalInput{ConnectionID: "conn-1", Description: "x"})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = env.tickets.CreateInternal(ctx, env.actor(t, admin1), CreateInternalInput{ConnectionID: "conn-404", Description: "x"})
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = env.tickets.CreateInternal(ctx, env.actor(t, admin1), CreateInternalInput{ConnectionID: "conn-3", Description: "x"})
	requireCode(t, err, apperrors.CodeNoTeamForArea)
}

func TestAssignAppendsExactlyOneRecord(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)
	admin := env.actor(t, admin1)

	steps := []domain.ActorRef{team2, admin1, team1}
	prior := append([]domain.AssignmentRecord{}, ticket.AssignmentHistory...)
	for i, target := range steps {
		view, err := env.tickets.Assign(ctx, admin, ticket.ID, AssignTicketInput{AssignedTo: target, Note: "handover"})
		if err != nil {
			t.Fatalf("Assign(%v): %v", target, err)
		}
		if len(view.AssignmentHistory) != len(prior)+1 {
			t.Fatalf("step %d: history length = %d, want %d", i, len(view.AssignmentHistory), len(prior)+1)
		}
		for j, record := range prior {
			got := view.AssignmentHistory[j]
			if !got.AssignedTo.Equal(record.AssignedTo) || !got.AssignedBy.Equal(record.AssignedBy) ||
				!got.AssignedAt.Equal(record.AssignedAt) || got.Note != record.Note {
				t.Fatalf("step %d: record %d changed from %+v to %+v", i, j, record, got)
			}
		}
		last := view.AssignmentHistory[len(view.AssignmentHistory)-1]
		if !last.AssignedTo.Equal(target) || !last.AssignedBy.Equal(admin1) || last.Note != "handover" {
			t.Fatalf("step %d: last record = %+v", i, last)
		}
		checkInvariants(t, &view.Ticket)
		prior = append([]domain.AssignmentRecord{}, view.AssignmentHistory...)
	}

	assigned := env.log.ofType(events.EventTicketAssigned)
	if len(assigned) != len(steps) {
		t.Fatalf("ticketAssigned events = %d, want %d", len(assigned), len(steps))
	}
	delta, ok := assigned[0].Payload.Delta.(events.AssignmentDelta)
	if !ok || delta.Previous == nil || !delta.Previous.Equal(team1) || !delta.Record.AssignedTo.Equal(team2) {
		t.Fatalf("first assignment delta = %+v", assigned[0].Payload.Delta)
	}
}

func TestAssignRejections(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)
	admin := env.actor(t, admin1)

	cases := []struct {
		name  string
		actor *domain.ActorSummary
		input AssignTicketInput
		code  string
	}{
		{"team outside area", admin, AssignTicketInput{AssignedTo: team3}, apperrors.CodeConflictOrOrphan},
		{"customer target", admin, AssignTicketInput{AssignedTo: cust1}, apperrors.CodeValidation},
		{"unknown team", admin, AssignTicketInput{AssignedTo: domain.NewActorRef(domain.ActorTeam, "ghost")}, apperrors.CodeNotFound},
		{"note too long", admin, AssignTicketInput{AssignedTo: team2, Note: strings.Repeat("n", domain.MaxAssignmentNoteLength+1)}, apperrors.CodeValidation},
		{"customer actor", env.actor(t, cust1), AssignTicketInput{AssignedTo: team2}, apperrors.CodeForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.tickets.Assign(ctx, tc.actor, ticket.ID, tc.input)
			requireCode(t, err, tc.code)
		})
	}

	stored, err := env.store.Tickets().GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(stored.AssignmentHistory) != 1 {
		t.Fatalf("rejected assignments changed history: %d records", len(stored.AssignmentHistory))
	}
}

func TestAssignLaxWhenStrictDisabled(t *testing.T) {
	cfg := defaultTicketsConfig()
	cfg.StrictAssignment = false
	env := newTestEnv(t, cfg)
	ticket := env.openTicket(t)

	view, err := env.tickets.Assign(context.Background(), env.actor(t, admin1), ticket.ID, AssignTicketInput{AssignedTo: team3})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !view.AssignedTo.Equal(team3) {
		t.Fatalf("assigned_to = %v, want %v", view.AssignedTo, team3)
	}
}

func TestSelfAssignAndHistory(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)

	if _, err := env.tickets.SelfAssign(ctx, env.actor(t, team2), ticket.ID, "mine"); err != nil {
		t.Fatalf("SelfAssign: %v", err)
	}
	history, err := env.tickets.History(ctx, env.actor(t, cust1), ticket.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 || !history[1].AssignedTo.Equal(team2) || !history[1].AssignedBy.Equal(team2) {
		t.Fatalf("history = %+v", history)
	}
	if history[1].Note != "" {
		t.Fatalf("customer history exposes staff note %q", history[1].Note)
	}

	staffHistory, err := env.tickets.History(ctx, env.actor(t, team2), ticket.ID)
	if err != nil {
		t.Fatalf("History as staff: %v", err)
	}
	if staffHistory[1].Note != "mine" {
		t.Fatalf("staff history note = %q, want %q", staffHistory[1].Note, "mine")
	}

	customerView, err := env.tickets.Get(ctx, env.actor(t, cust1), ticket.ID)
	if err != nil {
		t.Fatalf("Get as customer: %v", err)
	}
	for i, record := range customerView.AssignmentHistory {
		if record.Note != "" {
			t.Fatalf("customer view record %d note = %q", i, record.Note)
		}
	}
}

func TestEscalateThenResolve(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)
	team := env.actor(t, team1)

	escalated, err := env.tickets.Escalate(ctx, team, ticket.ID)
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if escalated.Status != domain.TicketStatusEscalated || !escalated.Escalated {
		t.Fatalf("after escalate: status=%q escalated=%v", escalated.Status, escalated.Escalated)
	}
	if escalated.UpdatedBy == nil || !escalated.UpdatedBy.Equal(team1) {
		t.Fatalf("updated_by = %v", escalated.UpdatedBy)
	}

	resolved, err := env.tickets.Resolve(ctx, team, ticket.ID, "replaced the ONT")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != domain.TicketStatusClosed {
		t.Fatalf("status = %q, want Closed", resolved.Status)
	}
	if resolved.ResolvedBy == nil || !resolved.ResolvedBy.Equal(team1) || resolved.ResolvedAt == nil {
		t.Fatalf("resolver not stamped: %v %v", resolved.ResolvedBy, resolved.ResolvedAt)
	}
	if resolved.ResolutionMessage == nil || *resolved.ResolutionMessage != "replaced the ONT" {
		t.Fatalf("resolution_message = %v", resolved.ResolutionMessage)
	}
	if !resolved.Escalated {
		t.Fatal("escalated flag cleared by resolve")
	}
	checkInvariants(t, &resolved.Ticket)

	if len(env.log.ofType(events.EventTicketEscalated)) != 1 || len(env.log.ofType(events.EventTicketResolved)) != 1 {
		t.Fatalf("events = %+v", env.log.all())
	}
	delta, ok := env.log.ofType(events.EventTicketResolved)[0].Payload.Delta.(events.StatusDelta)
	if !ok || delta.From != domain.TicketStatusEscalated || delta.ResolutionMessage != "replaced the ONT" {
		t.Fatalf("resolve delta = %+v", delta)
	}
}

func TestResolveWithoutMessageLeavesTicketUnchanged(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)
	before, err := env.store.Tickets().GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	env.log.reset()

	for _, message := range []string{"", "   ", strings.Repeat("m", domain.MaxResolutionMessageLength+1)} {
		_, err := env.tickets.Resolve(ctx, env.actor(t, team1), ticket.ID, message)
		requireCode(t, err, apperrors.CodeValidation)
	}

	after, err := env.store.Tickets().GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Status != before.Status || !after.UpdatedAt.Equal(before.UpdatedAt) ||
		after.ResolutionMessage != nil || after.ResolvedBy != nil || after.ResolvedAt != nil {
		t.Fatalf("ticket changed: before=%+v after=%+v", before, after)
	}
	if len(env.log.all()) != 0 {
		t.Fatalf("events published: %+v", env.log.all())
	}
}

func TestUpdateIsPartialAndPermissive(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)
	admin := env.actor(t, admin1)

	_, err := env.tickets.Update(ctx, admin, ticket.ID, UpdateTicketInput{})
	requireCode(t, err, apperrors.CodeValidation)

	view, err := env.tickets.Update(ctx, admin, ticket.ID, UpdateTicketInput{Priority: strPtr("medium")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if view.Priority != domain.TicketPriorityMedium || view.Description != "no internet" || view.IssueType != "connection" {
		t.Fatalf("partial update touched other fields: %+v", view.Ticket)
	}
	if view.UpdatedBy == nil || !view.UpdatedBy.Equal(admin1) || view.UpdatedAt.Before(ticket.UpdatedAt) {
		t.Fatalf("update stamps wrong: %v %v", view.UpdatedBy, view.UpdatedAt)
	}

	closed, err := env.tickets.Update(ctx, admin, ticket.ID, UpdateTicketInput{Status: strPtr("closed")})
	if err != nil {
		t.Fatalf("Update to closed: %v", err)
	}
	if closed.ResolvedAt == nil || closed.ResolvedBy == nil || !closed.ResolvedBy.Equal(admin1) {
		t.Fatalf("closing via update did not stamp resolution: %+v", closed.Ticket)
	}
	firstResolvedAt := *closed.ResolvedAt

	// any status to any status without the guard
	reescalated, err := env.tickets.Update(ctx, env.actor(t, team1), ticket.ID, UpdateTicketInput{Status: strPtr("Escalated")})
	if err != nil {
		t.Fatalf("Update closed->escalated: %v", err)
	}
	if reescalated.Status != domain.TicketStatusEscalated {
		t.Fatalf("status = %q", reescalated.Status)
	}
	if !reescalated.ResolvedAt.Equal(firstResolvedAt) {
		t.Fatal("resolved_at moved after reopening")
	}
	checkInvariants(t, &reescalated.Ticket)

	_, err = env.tickets.Update(ctx, admin, ticket.ID, UpdateTicketInput{Status: strPtr("pending")})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = env.tickets.Update(ctx, env.actor(t, cust1), ticket.ID, UpdateTicketInput{Priority: strPtr("low")})
	requireCode(t, err, apperrors.CodeForbidden)

	updates := env.log.ofType(events.EventTicketUpdated)
	if len(updates) != 3 {
		t.Fatalf("ticketUpdated events = %d, want 3", len(updates))
	}
}

func TestGuardedTransitions(t *testing.T) {
	cfg := defaultTicketsConfig()
	cfg.GuardTransitions = true
	env := newTestEnv(t, cfg)
	ctx := context.Background()
	ticket := env.openTicket(t)
	team := env.actor(t, team1)

	if _, err := env.tickets.Close(ctx, team, ticket.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err := env.tickets.Update(ctx, team, ticket.ID, UpdateTicketInput{Status: strPtr("Escalated")})
	requireCode(t, err, apperrors.CodeValidation)
	_, err = env.tickets.Escalate(ctx, team, ticket.ID)
	requireCode(t, err, apperrors.CodeValidation)

	reopened, err := env.tickets.Reopen(ctx, env.actor(t, cust1), ticket.ID)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if reopened.Status != domain.TicketStatusOpen || reopened.ResolvedAt == nil {
		t.Fatalf("reopen: status=%q resolved_at=%v", reopened.Status, reopened.ResolvedAt)
	}
	if _, err := env.tickets.Update(ctx, team, ticket.ID, UpdateTicketInput{Status: strPtr("In Progress")}); err != nil {
		t.Fatalf("Open -> In Progress: %v", err)
	}
	_, err = env.tickets.Update(ctx, team, ticket.ID, UpdateTicketInput{Status: strPtr("Open")})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestCloseAndReopenEvents(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)

	closed, err := env.tickets.Close(ctx, env.actor(t, team1), ticket.ID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != domain.TicketStatusClosed || closed.ResolutionMessage != nil || closed.ResolvedBy == nil {
		t.Fatalf("close result = %+v", closed.Ticket)
	}
	_, err = env.tickets.Reopen(ctx, env.actor(t, cust4), ticket.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	if _, err := env.tickets.Reopen(ctx, env.actor(t, cust1), ticket.ID); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if len(env.log.ofType(events.EventTicketClosed)) != 1 || len(env.log.ofType(events.EventTicketReopened)) != 1 {
		t.Fatalf("events = %+v", env.log.all())
	}
}

func TestBulkUpdateSkipsMissingTickets(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	first := env.openTicket(t)
	second, err := env.tickets.Create(ctx, env.actor(t, cust4), CreateTicketInput{Description: "packet loss"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	env.log.reset()

	ids := []string{first.ID, "missing-1", second.ID, first.ID, "missing-2"}
	result, err := env.tickets.BulkUpdate(ctx, env.actor(t, admin1), BulkUpdateInput{
		TicketIDs: ids,
		Status:    strPtr("In Progress"),
		Priority:  strPtr("high"),
	})
	if err != nil {
		t.Fatalf("BulkUpdate: %v", err)
	}
	if result.Count != 2 || result.Count > len(ids) || len(result.Modified) != 2 {
		t.Fatalf("result = %+v", result)
	}
	for _, id := range []string{first.ID, second.ID} {
		stored, err := env.store.Tickets().GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if stored.Status != domain.TicketStatusInProgress || stored.Priority != domain.TicketPriorityHigh {
			t.Fatalf("ticket %s not updated: %+v", id, stored)
		}
		if stored.UpdatedBy == nil || !stored.UpdatedBy.Equal(admin1) {
			t.Fatalf("ticket %s updated_by = %v", id, stored.UpdatedBy)
		}
	}
	if got := len(env.log.ofType(events.EventTicketUpdated)); got != 2 {
		t.Fatalf("ticketUpdated events = %d, want 2", got)
	}

	_, err = env.tickets.BulkUpdate(ctx, env.actor(t, team1), BulkUpdateInput{TicketIDs: ids, Priority: strPtr("low")})
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = env.tickets.BulkUpdate(ctx, env.actor(t, admin1), BulkUpdateInput{TicketIDs: ids})
	requireCode(t, err, apperrors.CodeValidation)
	_, err = env.tickets.BulkUpdate(ctx, env.actor(t, admin1), BulkUpdateInput{Priority: strPtr("low")})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestBulkUpdateGuardSkipsIllegalSources(t *testing.T) {
	cfg := defaultTicketsConfig()
	cfg.GuardTransitions = true
	env := newTestEnv(t, cfg)
	ctx := context.Background()
	open := env.openTicket(t)
	closed := env.openTicket(t)
	if _, err := env.tickets.Close(ctx, env.actor(t, admin1), closed.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	result, err := env.tickets.BulkUpdate(ctx, env.actor(t, admin1), BulkUpdateInput{
		TicketIDs: []string{open.ID, closed.ID},
		Status:    strPtr("Escalated"),
	})
	if err != nil {
		t.Fatalf("BulkUpdate: %v", err)
	}
	if result.Count != 1 || result.Modified[0] != open.ID {
		t.Fatalf("result = %+v", result)
	}
}

func TestAccessRules(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	north := env.openTicket(t)
	south, err := env.tickets.Create(ctx, env.actor(t, cust4), CreateTicketInput{Description: "dns failures"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	allowed := []struct {
		actor  domain.ActorRef
		ticket string
	}{
		{cust1, north.ID}, {team1, north.ID}, {team2, north.ID}, {admin1, north.ID}, {team3, south.ID},
	}
	for _, tc := range allowed {
		if _, err := env.tickets.Get(ctx, env.actor(t, tc.actor), tc.ticket); err != nil {
			t.Errorf("%v Get(%s): %v", tc.actor, tc.ticket, err)
		}
	}
	denied := []struct {
		actor  domain.ActorRef
		ticket string
	}{
		{cust4, north.ID}, {team3, north.ID}, {cust1, south.ID}, {team1, south.ID},
	}
	for _, tc := range denied {
		_, err := env.tickets.Get(ctx, env.actor(t, tc.actor), tc.ticket)
		if !apperrors.HasCode(err, apperrors.CodeForbidden) {
			t.Errorf("%v Get(%s) = %v, want FORBIDDEN", tc.actor, tc.ticket, err)
		}
	}
	_, err = env.tickets.Get(ctx, env.actor(t, admin1), "missing")
	requireCode(t, err, apperrors.CodeNotFound)

	// assignment grants visibility outside the member's areas
	cfg := defaultTicketsConfig()
	cfg.StrictAssignment = false
	lax := newTestEnv(t, cfg)
	ticket := lax.openTicket(t)
	if _, err := lax.tickets.Assign(ctx, lax.actor(t, admin1), ticket.ID, AssignTicketInput{AssignedTo: team3}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := lax.tickets.Get(ctx, lax.actor(t, team3), ticket.ID); err != nil {
		t.Fatalf("assignee Get: %v", err)
	}
	if err := lax.tickets.AuthorizeRoom(ctx, lax.actor(t, team3), ticket.ID); err != nil {
		t.Fatalf("assignee AuthorizeRoom: %v", err)
	}
	err = lax.tickets.AuthorizeRoom(ctx, lax.actor(t, cust4), ticket.ID)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestListIsScopedToActor(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	env.openTicket(t)
	env.openTicket(t)
	if _, err := env.tickets.Create(ctx, env.actor(t, cust4), CreateTicketInput{Description: "latency", Priority: "medium"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	counts := []struct {
		actor domain.ActorRef
		want  int
	}{
		{cust1, 2}, {cust4, 1}, {cust2, 0}, {team1, 2}, {team2, 2}, {team3, 1}, {admin1, 3},
	}
	for _, tc := range counts {
		got, err := env.tickets.List(ctx, env.actor(t, tc.actor), TicketListFilter{})
		if err != nil {
			t.Fatalf("%v List: %v", tc.actor, err)
		}
		if len(got) != tc.want {
			t.Errorf("%v sees %d tickets, want %d", tc.actor, len(got), tc.want)
		}
	}

	medium, err := env.tickets.List(ctx, env.actor(t, admin1), TicketListFilter{Priorities: []string{"medium"}})
	if err != nil || len(medium) != 1 || medium[0].CustomerID != "cust-4" {
		t.Fatalf("priority filter = %v, %v", medium, err)
	}
	_, err = env.tickets.List(ctx, env.actor(t, admin1), TicketListFilter{Statuses: []string{"resolved"}})
	requireCode(t, err, apperrors.CodeValidation)

	mine, err := env.tickets.ListForCustomer(ctx, env.actor(t, cust1), "", 0, 0)
	if err != nil || len(mine) != 2 {
		t.Fatalf("ListForCustomer = %d, %v", len(mine), err)
	}
	_, err = env.tickets.ListForCustomer(ctx, env.actor(t, cust1), "cust-4", 0, 0)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestRecentUsesConfiguredLimit(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		env.openTicket(t)
	}
	recent, err := env.tickets.Recent(ctx, env.actor(t, admin1), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("recent = %d tickets, want 5", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].CreatedAt.After(recent[i-1].CreatedAt) {
			t.Fatalf("recent not newest first at %d", i)
		}
	}
}

func TestDeleteIsAdminOnlyAndGlobal(t *testing.T) {
	env := newTestEnv(t, defaultTicketsConfig())
	ctx := context.Background()
	ticket := env.openTicket(t)

	err := env.tickets.Delete(ctx, env.actor(t, team1), ticket.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	if err := env.tickets.Delete(ctx, env.actor(t, admin1), ticket.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = env.tickets.Get(ctx, env.actor(t, admin1), ticket.ID)
	requireCode(t, err, apperrors.CodeNotFound)
	err = env.tickets.Delete(ctx, env.actor(t, admin1), ticket.ID)
	requireCode(t, err, apperrors.CodeNotFound)

	deleted := env.log.ofType(events.EventTicketDeleted)
	if len(deleted) != 1 || !deleted[0].Global {
		t.Fatalf("ticketDeleted events = %+v", deleted)
	}
	if delta, ok := deleted[0].Payload.Delta.(events.DeletedDelta); !ok || delta.ID != ticket.ID {
		t.Fatalf("delete delta = %+v", deleted[0].Payload.Delta)
	}
}
