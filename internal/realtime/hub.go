package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/events"
	"github.com/spec-kit/isp-support/internal/observability"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

const defaultSubscriberBuffer = 256

// Subscriber is one connected client. Events arrive on a bounded channel;
// when the channel is full the event is dropped and the subscriber is marked
// for resync.
type Subscriber struct {
	id     string
	actor  *domain.ActorSummary
	ch     chan events.Event
	resync atomic.Bool
	done   chan struct{}
	once   sync.Once
}

// ID identifies the subscriber in logs.
func (s *Subscriber) ID() string { return s.id }

// Actor returns the principal the subscriber connected as.
func (s *Subscriber) Actor() *domain.ActorSummary { return s.actor }

// Events returns the delivery channel.
func (s *Subscriber) Events() <-chan events.Event { return s.ch }

// Done is closed once the subscriber is disconnected.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// TakeResync reports and clears the overflow flag.
func (s *Subscriber) TakeResync() bool { return s.resync.Swap(false) }

// Hub fans dispatcher events out to subscribers grouped by ticket room. The
// global channel carries events flagged Global and is open to staff only.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Subscriber]struct{}
	global  map[*Subscriber]struct{}
	joined  map[*Subscriber]map[string]struct{}
	buffer  int
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(cfg config.RealtimeConfig, metrics *observability.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	buffer := cfg.SubscriberBuffer
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		rooms:   make(map[string]map[*Subscriber]struct{}),
		global:  make(map[*Subscriber]struct{}),
		joined:  make(map[*Subscriber]map[string]struct{}),
		buffer:  buffer,
		metrics: metrics,
		logger:  logger,
	}
}

// Attach feeds every event published on the dispatcher into the hub.
func (h *Hub) Attach(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(h.Deliver)
}

// Connect registers a subscriber for the actor. It belongs to no room yet.
func (h *Hub) Connect(actor *domain.ActorSummary) (*Subscriber, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("missing principal")
	}
	sub := &Subscriber{
		id:    uuid.NewString(),
		actor: actor,
		ch:    make(chan events.Event, h.buffer),
		done:  make(chan struct{}),
	}
	h.mu.Lock()
	h.joined[sub] = make(map[string]struct{})
	h.mu.Unlock()
	return sub, nil
}

// Disconnect removes the subscriber from every room and closes Done.
func (h *Hub) Disconnect(sub *Subscriber) {
	h.mu.Lock()
	for room := range h.joined[sub] {
		h.removeFromRoom(sub, room)
	}
	delete(h.joined, sub)
	delete(h.global, sub)
	h.mu.Unlock()
	sub.once.Do(func() { close(sub.done) })
}

// Join adds the subscriber to a ticket room. Authorization happens before
// this call.
func (h *Hub) Join(sub *Subscriber, room string) error {
	if room == "" {
		return apperrors.NewValidationError("room is required", nil)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.joined[sub]
	if !ok {
		return apperrors.NewValidationError("subscriber is not connected", nil)
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Subscriber]struct{})
		h.rooms[room] = members
	}
	members[sub] = struct{}{}
	rooms[room] = struct{}{}
	return nil
}

// Leave removes the subscriber from a room. Leaving a room never joined is a no-op.
func (h *Hub) Leave(sub *Subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(sub, room)
	if rooms, ok := h.joined[sub]; ok {
		delete(rooms, room)
	}
}

// JoinGlobal subscribes a staff member to the dashboard channel.
func (h *Hub) JoinGlobal(sub *Subscriber) error {
	if !sub.actor.IsStaff() {
		return apperrors.NewForbidden("global channel is staff only")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.joined[sub]; !ok {
		return apperrors.NewValidationError("subscriber is not connected", nil)
	}
	h.global[sub] = struct{}{}
	return nil
}

// LeaveGlobal unsubscribes from the dashboard channel.
func (h *Hub) LeaveGlobal(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.global, sub)
}

// RoomSize returns the number of subscribers in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Deliver routes an event to its room and, when flagged, the global channel.
// Sends never block: a full subscriber loses the event and gets a resync.
func (h *Hub) Deliver(_ context.Context, event events.Event) error {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.rooms[event.TicketID])+len(h.global))
	for sub := range h.rooms[event.TicketID] {
		targets = append(targets, sub)
	}
	if event.Global {
		for sub := range h.global {
			if _, dup := h.rooms[event.TicketID][sub]; !dup {
				targets = append(targets, sub)
			}
		}
	}
	h.mu.RUnlock()

	var customerCopy *events.Event
	for _, sub := range targets {
		staff := sub.actor.IsStaff()
		if event.StaffOnly && !staff {
			continue
		}
		out := event
		if !staff {
			if customerCopy == nil {
				stripped := event
				stripped.Payload.Ticket = event.Payload.Ticket.ForCustomer()
				customerCopy = &stripped
			}
			out = *customerCopy
		}
		h.send(sub, out)
	}
	return nil
}

func (h *Hub) send(sub *Subscriber, event events.Event) {
	select {
	case <-sub.done:
		return
	default:
	}
	select {
	case sub.ch <- event:
	default:
		sub.resync.Store(true)
		h.metrics.RecordDroppedEvent()
		h.logger.Debug("subscriber buffer full, event dropped",
			zap.String("subscriber", sub.id),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
	}
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(sub *Subscriber, room string) {
	members := h.rooms[room]
	if members == nil {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}
