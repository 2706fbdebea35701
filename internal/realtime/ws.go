package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/auth"
	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/events"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

const (
	wsPrincipalKey  = "ws_principal"
	writeWait       = 5 * time.Second
	authorizeWait   = 5 * time.Second
	globalRoomName  = "global"
	defaultPingTick = 30 * time.Second
)

// Client actions.
const (
	ActionJoin        = "join"
	ActionLeave       = "leave"
	ActionJoinGlobal  = "join_global"
	ActionLeaveGlobal = "leave_global"
)

// Frame types written to clients.
const (
	FrameEvent  = "event"
	FrameJoined = "joined"
	FrameLeft   = "left"
	FrameResync = "resync"
	FrameError  = "error"
)

// RoomAuthorizer decides whether an actor may watch a ticket.
type RoomAuthorizer interface {
	AuthorizeRoom(ctx context.Context, actor *domain.ActorSummary, ticketID string) error
}

// ClientMessage is a request sent by a websocket client.
type ClientMessage struct {
	Action string `json:"action"`
	Room   string `json:"room,omitempty"`
}

// Frame is a single JSON message sent to a websocket client.
//
//   - "event": a fan-out event for Room
//   - "joined"/"left": acknowledgement of a room action
//   - "resync": events were dropped; the client should refetch its tickets
//   - "error": the last action failed (Code, Message populated)
type Frame struct {
	Type    string        `json:"type"`
	Room    string        `json:"room,omitempty"`
	Event   *events.Event `json:"event,omitempty"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Handler serves the /ws endpoint.
type Handler struct {
	hub       *Hub
	rooms     RoomAuthorizer
	authorize bool
	ping      time.Duration
	readWait  time.Duration
	logger    *zap.Logger
}

// NewHandler builds the websocket handler. When cfg.AuthorizeRooms is false
// any authenticated actor may join any room.
func NewHandler(hub *Hub, rooms RoomAuthorizer, cfg config.RealtimeConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ping := cfg.PingInterval()
	if ping <= 0 {
		ping = defaultPingTick
	}
	return &Handler{
		hub:       hub,
		rooms:     rooms,
		authorize: cfg.AuthorizeRooms,
		ping:      ping,
		readWait:  cfg.ReadTimeout(),
		logger:    logger,
	}
}

// Register mounts the endpoint. authn must populate the request principal.
func (h *Handler) Register(router fiber.Router, authn fiber.Handler) {
	router.Use("/ws", authn, h.Upgrade)
	router.Get("/ws", websocket.New(h.serve))
}

// Upgrade rejects plain HTTP requests and hands the principal to the socket.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing principal")
	}
	c.Locals(wsPrincipalKey, principal)
	return c.Next()
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) write(frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

func (c *wsClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (h *Handler) serve(conn *websocket.Conn) {
	client := &wsClient{conn: conn}
	actor, _ := conn.Locals(wsPrincipalKey).(*domain.ActorSummary)
	sub, err := h.hub.Connect(actor)
	if err != nil {
		_ = client.write(errorFrame(err))
		_ = conn.Close()
		return
	}
	logger := h.logger.With(zap.String("subscriber", sub.ID()), zap.Stringer("actor", actor.Ref))
	logger.Debug("websocket connected")
	defer func() {
		h.hub.Disconnect(sub)
		_ = conn.Close()
		logger.Debug("websocket disconnected")
	}()

	go h.writeLoop(client, sub, logger)
	h.readLoop(client, sub, logger)
}

func (h *Handler) readLoop(client *wsClient, sub *Subscriber, logger *zap.Logger) {
	conn := client.conn
	h.extendRead(conn)
	conn.SetPongHandler(func(string) error {
		h.extendRead(conn)
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
		h.extendRead(conn)

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			_ = client.write(errorFrame(apperrors.NewValidationError("malformed message", nil)))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), authorizeWait)
		frame := h.handle(ctx, sub, msg)
		cancel()
		if err := client.write(frame); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(client *wsClient, sub *Subscriber, logger *zap.Logger) {
	ticker := time.NewTicker(h.ping)
	defer ticker.Stop()

	for {
		select {
		case <-sub.Done():
			return
		case event := <-sub.Events():
			if sub.TakeResync() {
				if err := client.write(Frame{Type: FrameResync}); err != nil {
					_ = client.conn.Close()
					return
				}
			}
			if err := client.write(Frame{Type: FrameEvent, Room: event.TicketID, Event: &event}); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				_ = client.conn.Close()
				return
			}
		case <-ticker.C:
			if err := client.ping(); err != nil {
				logger.Debug("websocket ping failed", zap.Error(err))
				_ = client.conn.Close()
				return
			}
		}
	}
}

func (h *Handler) extendRead(conn *websocket.Conn) {
	if h.readWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.readWait))
	}
}

// handle applies one client action and returns the acknowledgement frame.
func (h *Handler) handle(ctx context.Context, sub *Subscriber, msg ClientMessage) Frame {
	switch msg.Action {
	case ActionJoin:
		if msg.Room == "" {
			return errorFrame(apperrors.NewValidationError("room is required", nil))
		}
		if h.authorize && h.rooms != nil {
			if err := h.rooms.AuthorizeRoom(ctx, sub.Actor(), msg.Room); err != nil {
				return roomErrorFrame(msg.Room, err)
			}
		}
		if err := h.hub.Join(sub, msg.Room); err != nil {
			return roomErrorFrame(msg.Room, err)
		}
		return Frame{Type: FrameJoined, Room: msg.Room}
	case ActionLeave:
		h.hub.Leave(sub, msg.Room)
		return Frame{Type: FrameLeft, Room: msg.Room}
	case ActionJoinGlobal:
		if err := h.hub.JoinGlobal(sub); err != nil {
			return roomErrorFrame(globalRoomName, err)
		}
		return Frame{Type: FrameJoined, Room: globalRoomName}
	case ActionLeaveGlobal:
		h.hub.LeaveGlobal(sub)
		return Frame{Type: FrameLeft, Room: globalRoomName}
	default:
		return errorFrame(apperrors.NewValidationError("unknown action", map[string]any{"action": msg.Action}))
	}
}

func errorFrame(err error) Frame {
	domainErr := apperrors.ToDomainError(err)
	return Frame{Type: FrameError, Code: domainErr.Code, Message: domainErr.Message}
}

func roomErrorFrame(room string, err error) Frame {
	frame := errorFrame(err)
	frame.Room = room
	return frame
}
