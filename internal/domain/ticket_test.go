package domain

import (
	"testing"
	"time"
)

func TestTicketAppendAssignmentKeepsInvariant(t *testing.T) {
	ticket := &Ticket{}
	if err := ticket.CheckInvariants(); err != nil {
		t.Fatalf("empty ticket: %v", err)
	}

	team := NewActorRef(ActorTeam, "t1")
	admin := NewActorRef(ActorAdmin, "a1")
	customer := NewActorRef(ActorCustomer, "c1")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ticket.AppendAssignment(AssignmentRecord{AssignedTo: team, AssignedBy: customer, AssignedAt: now})
	ticket.AppendAssignment(AssignmentRecord{AssignedTo: admin, AssignedBy: team, AssignedAt: now.Add(time.Minute)})

	if err := ticket.CheckInvariants(); err != nil {
		t.Fatalf("after assignments: %v", err)
	}
	if len(ticket.AssignmentHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(ticket.AssignmentHistory))
	}
	if !ticket.AssignedTo.Equal(admin) {
		t.Fatalf("assigned_to = %v, want %v", ticket.AssignedTo, admin)
	}
	if !ticket.AssignmentHistory[0].AssignedTo.Equal(team) {
		t.Fatalf("first record mutated: %v", ticket.AssignmentHistory[0])
	}
}

func TestTicketCheckInvariantsDetectsMismatch(t *testing.T) {
	team := NewActorRef(ActorTeam, "t1")
	other := NewActorRef(ActorTeam, "t2")
	now := time.Now()

	cases := []struct {
		name   string
		ticket Ticket
	}{
		{"assignee without history", Ticket{AssignedTo: &team}},
		{"history without assignee", Ticket{AssignmentHistory: []AssignmentRecord{{AssignedTo: team}}}},
		{"assignee mismatch", Ticket{AssignedTo: &other, AssignmentHistory: []AssignmentRecord{{AssignedTo: team}}}},
		{"resolved_at only", Ticket{ResolvedAt: &now}},
	}
	for _, tc := range cases {
		if err := tc.ticket.CheckInvariants(); err == nil {
			t.Errorf("%s: expected invariant error", tc.name)
		}
	}
}

func TestMarkResolvedOnlyStampsOnce(t *testing.T) {
	first := NewActorRef(ActorTeam, "t1")
	second := NewActorRef(ActorAdmin, "a1")
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ticket := &Ticket{}
	ticket.MarkResolved(first, t0)
	ticket.MarkResolved(second, t0.Add(time.Hour))

	if !ticket.ResolvedBy.Equal(first) {
		t.Fatalf("resolved_by = %v, want %v", ticket.ResolvedBy, first)
	}
	if !ticket.ResolvedAt.Equal(t0) {
		t.Fatalf("resolved_at = %v, want %v", ticket.ResolvedAt, t0)
	}
}

func TestTouchNeverMovesUpdatedAtBackwards(t *testing.T) {
	actor := NewActorRef(ActorAdmin, "a1")
	later := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ticket := &Ticket{UpdatedAt: later}

	ticket.Touch(actor, later.Add(-time.Hour))
	if !ticket.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at moved backwards to %v", ticket.UpdatedAt)
	}
	if ticket.UpdatedBy == nil || !ticket.UpdatedBy.Equal(actor) {
		t.Fatalf("updated_by not stamped: %v", ticket.UpdatedBy)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TicketStatus
		want     bool
	}{
		{TicketStatusOpen, TicketStatusInProgress, true},
		{TicketStatusOpen, TicketStatusEscalated, true},
		{TicketStatusInProgress, TicketStatusOpen, false},
		{TicketStatusEscalated, TicketStatusInProgress, true},
		{TicketStatusClosed, TicketStatusOpen, true},
		{TicketStatusClosed, TicketStatusEscalated, false},
		{TicketStatusClosed, TicketStatusClosed, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseTicketStatusAndPriority(t *testing.T) {
	if s, ok := ParseTicketStatus("in_progress"); !ok || s != TicketStatusInProgress {
		t.Errorf("ParseTicketStatus(in_progress) = %q, %v", s, ok)
	}
	if _, ok := ParseTicketStatus("resolved"); ok {
		t.Errorf("ParseTicketStatus(resolved) should fail")
	}
	if p, ok := ParseTicketPriority("HIGH"); !ok || p != TicketPriorityHigh {
		t.Errorf("ParseTicketPriority(HIGH) = %q, %v", p, ok)
	}
	if _, ok := ParseTicketPriority("urgent"); ok {
		t.Errorf("ParseTicketPriority(urgent) should fail")
	}
}

func TestTicketViewForCustomerStripsPrivateComments(t *testing.T) {
	view := &TicketView{Ticket: Ticket{PublicComments: []string{"p1"}, PrivateComments: []string{"x1"}}}
	redacted := view.ForCustomer()
	if len(redacted.PrivateComments) != 0 {
		t.Fatalf("private comments leaked: %v", redacted.PrivateComments)
	}
	if len(view.PrivateComments) != 1 {
		t.Fatalf("original view mutated")
	}
	if len(redacted.PublicComments) != 1 {
		t.Fatalf("public comments dropped")
	}
}

func TestTicketViewForCustomerBlanksAssignmentNotes(t *testing.T) {
	history := []AssignmentRecord{
		{AssignedTo: NewActorRef(ActorTeam, "team-1"), AssignedBy: NewActorRef(ActorCustomer, "cust-1")},
		{AssignedTo: NewActorRef(ActorTeam, "team-2"), AssignedBy: NewActorRef(ActorAdmin, "admin-1"), Note: "customer is abusive, handle carefully"},
	}
	view := &TicketView{Ticket: Ticket{AssignmentHistory: history}}

	redacted := view.ForCustomer()
	if len(redacted.AssignmentHistory) != 2 {
		t.Fatalf("history length = %d, want 2", len(redacted.AssignmentHistory))
	}
	for i, record := range redacted.AssignmentHistory {
		if record.Note != "" {
			t.Fatalf("record %d note leaked: %q", i, record.Note)
		}
		if !record.AssignedTo.Equal(history[i].AssignedTo) {
			t.Fatalf("record %d assignee changed: %v", i, record.AssignedTo)
		}
	}
	if view.AssignmentHistory[1].Note == "" {
		t.Fatal("original history mutated")
	}
}

func TestParseActorKind(t *testing.T) {
	kind, err := ParseActorKind("team")
	if err != nil || kind != ActorTeam {
		t.Fatalf("ParseActorKind(team) = %q, %v", kind, err)
	}
	if _, err := ParseActorKind("guest"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if ActorCustomer.IsStaff() || !ActorAdmin.IsStaff() {
		t.Fatalf("IsStaff mismatch")
	}
}
