package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/events"
	"github.com/spec-kit/isp-support/internal/observability"
	"github.com/spec-kit/isp-support/internal/repository/memory"
	"github.com/spec-kit/isp-support/internal/storage"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

// Directory used by the service tests:
//
//	area-north: team-1 (oldest), team-2
//	area-south: team-3
//	area-east:  nobody
//
//	cust-1 -> conn-1 (north)   cust-2 -> no connection
//	cust-3 -> conn-3 (east)    cust-4 -> conn-4 (south)
//	cust-5 -> conn-5 (no area)
var (
	cust1  = domain.NewActorRef(domain.ActorCustomer, "cust-1")
	cust2  = domain.NewActorRef(domain.ActorCustomer, "cust-2")
	cust3  = domain.NewActorRef(domain.ActorCustomer, "cust-3")
	cust4  = domain.NewActorRef(domain.ActorCustomer, "cust-4")
	cust5  = domain.NewActorRef(domain.ActorCustomer, "cust-5")
	team1  = domain.NewActorRef(domain.ActorTeam, "team-1")
	team2  = domain.NewActorRef(domain.ActorTeam, "team-2")
	team3  = domain.NewActorRef(domain.ActorTeam, "team-3")
	admin1 = domain.NewActorRef(domain.ActorAdmin, "admin-1")
)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(_ context.Context, event events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *eventLog) all() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Event(nil), l.events...)
}

func (l *eventLog) ofType(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, event := range l.all() {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

type testEnv struct {
	store       *memory.Store
	blobs       *storage.FileStore
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	log         *eventLog
	tickets     *TicketService
	comments    *CommentService
	attachments *AttachmentService
	maintenance *MaintenanceService
	directory   *ActorDirectory
}

func newTestEnv(t *testing.T, cfg config.TicketsConfig) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	seedDirectory(t, store)

	dir := t.TempDir()
	blobs, err := storage.NewFileStore(ctx, config.StorageConfig{
		BlobDir:        filepath.Join(dir, "blobs"),
		IndexPath:      filepath.Join(dir, "index.db"),
		MaxUploadBytes: 1 << 20,
	}, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { _ = blobs.Close() })

	dispatcher := events.NewInMemoryDispatcher(nil)
	log := &eventLog{}
	dispatcher.SubscribeAll(log.record)
	metrics := observability.NewMetrics()

	env := &testEnv{
		store:      store,
		blobs:      blobs,
		dispatcher: dispatcher,
		metrics:    metrics,
		log:        log,
		directory:  NewActorDirectory(store.Actors()),
	}
	env.tickets = NewTicketService(TicketDependencies{
		TicketRepo:     store.Tickets(),
		ConnectionRepo: store.Connections(),
		ActorRepo:      store.Actors(),
		AttachmentRepo: store.Attachments(),
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Config:         cfg,
	})
	env.comments = NewCommentService(CommentDependencies{
		TicketRepo:     store.Tickets(),
		CommentRepo:    store.Comments(),
		AttachmentRepo: store.Attachments(),
		ConnectionRepo: store.Connections(),
		ActorRepo:      store.Actors(),
		Blobs:          blobs,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
	})
	env.attachments = NewAttachmentService(AttachmentDependencies{
		TicketRepo:     store.Tickets(),
		CommentRepo:    store.Comments(),
		AttachmentRepo: store.Attachments(),
		ConnectionRepo: store.Connections(),
		ActorRepo:      store.Actors(),
		Blobs:          blobs,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
	})
	env.maintenance = NewMaintenanceService(MaintenanceDependencies{
		ConnectionRepo: store.Connections(),
		CommentRepo:    store.Comments(),
		AttachmentRepo: store.Attachments(),
		Blobs:          blobs,
	})
	return env
}

func defaultTicketsConfig() config.TicketsConfig {
	return config.Defaults().Tickets
}

func seedDirectory(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	w := store.Directory()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ptr := func(s string) *string { return &s }

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	for _, area := range []string{"area-north", "area-south", "area-east"} {
		must(w.UpsertServiceArea(ctx, domain.ServiceArea{ID: area, Region: area, IsActive: true}))
	}
	must(w.UpsertTeamMember(ctx, domain.TeamMember{ID: "team-2", FirstName: "Bea", LastName: "Second", Email: "bea@isp.test",
		ServiceAreaIDs: []string{"area-north"}, CreatedAt: base.Add(time.Hour)}))
	must(w.UpsertTeamMember(ctx, domain.TeamMember{ID: "team-1", FirstName: "Ari", LastName: "First", Email: "ari@isp.test",
		ServiceAreaIDs: []string{"area-north"}, CreatedAt: base}))
	must(w.UpsertTeamMember(ctx, domain.TeamMember{ID: "team-3", FirstName: "Cal", LastName: "South", Email: "cal@isp.test",
		ServiceAreaIDs: []string{"area-south"}, CreatedAt: base}))
	must(w.UpsertAdmin(ctx, domain.Admin{ID: "admin-1", Name: "Root Admin", Email: "root@isp.test", CreatedAt: base}))

	connections := []domain.Connection{
		{ID: "conn-1", CustomerID: "cust-1", ServiceAreaID: "area-north", IsActive: true},
		{ID: "conn-3", CustomerID: "cust-3", ServiceAreaID: "area-east", IsActive: true},
		{ID: "conn-4", CustomerID: "cust-4", ServiceAreaID: "area-south", IsActive: true},
		{ID: "conn-5", CustomerID: "cust-5", IsActive: true},
	}
	for _, conn := range connections {
		conn.CreatedAt = base
		must(w.UpsertConnection(ctx, conn))
	}
	customers := []domain.Customer{
		{ID: "cust-1", FirstName: "Dana", LastName: "One", Email: "dana@example.com", ActiveConnectionID: ptr("conn-1")},
		{ID: "cust-2", FirstName: "Eli", LastName: "Two", Email: "eli@example.com"},
		{ID: "cust-3", FirstName: "Fay", LastName: "Three", Email: "fay@example.com", ActiveConnectionID: ptr("conn-3")},
		{ID: "cust-4", FirstName: "Gus", LastName: "Four", Email: "gus@example.com", ActiveConnectionID: ptr("conn-4")},
		{ID: "cust-5", FirstName: "Hal", LastName: "Five", Email: "hal@example.com", ActiveConnectionID: ptr("conn-5")},
	}
	for _, customer := range customers {
		customer.CreatedAt = base
		must(w.UpsertCustomer(ctx, customer))
	}
}

func (e *testEnv) actor(t *testing.T, ref domain.ActorRef) *domain.ActorSummary {
	t.Helper()
	summary, err := e.directory.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("resolve %s: %v", ref, err)
	}
	return summary
}

// openTicket creates a ticket for cust-1, routed to team-1.
func (e *testEnv) openTicket(t *testing.T) *domain.TicketView {
	t.Helper()
	view, err := e.tickets.Create(context.Background(), e.actor(t, cust1), CreateTicketInput{
		Description: "no internet",
		IssueType:   "connection",
		Priority:    "high",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return view
}

func (e *testEnv) ticketCount(t *testing.T) int {
	t.Helper()
	all, err := e.tickets.List(context.Background(), e.actor(t, admin1), TicketListFilter{Limit: 200})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return len(all)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func checkInvariants(t *testing.T, ticket *domain.Ticket) {
	t.Helper()
	if err := ticket.CheckInvariants(); err != nil {
		t.Fatalf("ticket %s violates invariants: %v", ticket.ID, err)
	}
}
