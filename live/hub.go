package live

import (
	"commerce_settlement/model"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const (
	MessageAck           = "ack"
	MessageSnapshot      = "snapshot"
	MessagePaymentStatus = "payment_status"
	MessageError         = "error"
)

var (
	ErrUnauthenticated = errors.New("live: unauthenticated connection")
	ErrUnknownConn     = errors.New("live: unknown connection")
)

// Conn is the write side of a websocket connection.
type Conn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// StatusLookup returns the current payment snapshot of an order, or
// model.ErrPaymentNotFound when none exists yet.
type StatusLookup func(ctx context.Context, orderId uint) (*model.PaymentSnapshot, error)

type ClientMessage struct {
	Action  string `json:"action"`
	OrderId uint   `json:"orderId"`
}

type Message struct {
	Type     string                 `json:"type"`
	Action   string                 `json:"action,omitempty"`
	OrderId  uint                   `json:"orderId,omitempty"`
	Snapshot *model.PaymentSnapshot `json:"snapshot,omitempty"`
	Event    *model.StatusEvent     `json:"event,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Registration describes one order watched by one connection.
type Registration struct {
	ConnId   string    `json:"connId"`
	UserId   uint      `json:"userId"`
	OrderId  uint      `json:"orderId"`
	JoinedAt time.Time `json:"joinedAt"`
}

type client struct {
	id      string
	userId  uint
	conn    Conn
	writeMu sync.Mutex
	orders  map[uint]time.Time
}

// Hub is the connection registry. All methods are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	groups  map[uint]map[string]*client

	lookup       StatusLookup
	backplane    Backplane
	writeTimeout time.Duration
}

func NewHub(lookup StatusLookup, writeTimeout time.Duration) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Hub{
		clients:      make(map[string]*client),
		groups:       make(map[uint]map[string]*client),
		lookup:       lookup,
		writeTimeout: writeTimeout,
	}
}

// UseBackplane routes broadcasts through b so every instance sharing it delivers them.
func (h *Hub) UseBackplane(b Backplane) {
	h.backplane = b
}

// Register adds an authenticated connection and returns its id.
func (h *Hub) Register(conn Conn, userId uint) (string, error) {
	if userId == 0 {
		return "", ErrUnauthenticated
	}
	c := &client{
		id:     uuid.NewString(),
		userId: userId,
		conn:   conn,
		orders: make(map[uint]time.Time),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c.id, nil
}

// Dispatch runs one client request and answers on the same connection.
func (h *Hub) Dispatch(ctx context.Context, connId string, msg ClientMessage) error {
	var err error
	switch msg.Action {
	case "join":
		err = h.Join(ctx, connId, msg.OrderId)
	case "leave":
		err = h.Leave(connId, msg.OrderId)
	case "check":
		err = h.Check(ctx, connId, msg.OrderId)
	default:
		err = fmt.Errorf("unknown action %q", msg.Action)
	}
	if err != nil && !errors.Is(err, ErrUnknownConn) {
		h.send(connId, Message{Type: MessageError, Action: msg.Action, OrderId: msg.OrderId, Error: err.Error()})
	}
	return err
}

// Join subscribes the connection to orderId and replies with the current
// snapshot so a status reached before joining is not missed.
func (h *Hub) Join(ctx context.Context, connId string, orderId uint) error {
	if orderId == 0 {
		return model.ErrInvalidOrder
	}

	h.mu.Lock()
	c, ok := h.clients[connId]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownConn
	}
	if c.userId == 0 {
		h.mu.Unlock()
		return ErrUnauthenticated
	}
	if _, joined := c.orders[orderId]; !joined {
		c.orders[orderId] = time.Now()
	}
	group := h.groups[orderId]
	if group == nil {
		group = make(map[string]*client)
		h.groups[orderId] = group
	}
	group[connId] = c
	h.mu.Unlock()

	h.send(connId, Message{Type: MessageAck, Action: "join", OrderId: orderId})
	h.replySnapshot(ctx, connId, orderId, false)
	return nil
}

func (h *Hub) Leave(connId string, orderId uint) error {
	h.mu.Lock()
	c, ok := h.clients[connId]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownConn
	}
	delete(c.orders, orderId)
	h.removeFromGroup(orderId, connId)
	h.mu.Unlock()

	h.send(connId, Message{Type: MessageAck, Action: "leave", OrderId: orderId})
	return nil
}

// Check answers with the current status whether or not the connection joined the order.
func (h *Hub) Check(ctx context.Context, connId string, orderId uint) error {
	if orderId == 0 {
		return model.ErrInvalidOrder
	}
	h.mu.RLock()
	_, ok := h.clients[connId]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownConn
	}
	h.replySnapshot(ctx, connId, orderId, true)
	return nil
}

func (h *Hub) replySnapshot(ctx context.Context, connId string, orderId uint, reportMissing bool) {
	if h.lookup == nil {
		return
	}
	snap, err := h.lookup(ctx, orderId)
	switch {
	case err == nil:
		h.send(connId, Message{Type: MessageSnapshot, OrderId: orderId, Snapshot: snap})
	case errors.Is(err, model.ErrPaymentNotFound):
		if reportMissing {
			h.send(connId, Message{Type: MessageError, Action: "check", OrderId: orderId, Error: err.Error()})
		}
	default:
		log.Warnw("live status lookup failed", "order", orderId, "error", err)
		h.send(connId, Message{Type: MessageError, OrderId: orderId, Error: "status unavailable"})
	}
}

// Disconnect forgets the connection and closes it. It never panics.
func (h *Hub) Disconnect(connId string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("live disconnect recovered", "conn", connId, "panic", r)
		}
	}()

	h.mu.Lock()
	c, ok := h.clients[connId]
	if ok {
		delete(h.clients, connId)
		for orderId := range c.orders {
			h.removeFromGroup(orderId, connId)
		}
	}
	h.mu.Unlock()

	if ok {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		_ = c.conn.Close()
	}
}

// removeFromGroup expects h.mu to be held.
func (h *Hub) removeFromGroup(orderId uint, connId string) {
	group := h.groups[orderId]
	if group == nil {
		return
	}
	delete(group, connId)
	if len(group) == 0 {
		delete(h.groups, orderId)
	}
}

// Broadcast implements the status notifier used by the payment service.
func (h *Hub) Broadcast(ctx context.Context, evt model.StatusEvent) {
	if h.backplane != nil {
		err := h.backplane.Publish(ctx, evt)
		if err == nil {
			return
		}
		log.Warnw("backplane publish failed, delivering locally", "payment", evt.PaymentId, "error", err)
	}
	h.Deliver(evt)
}

// Deliver pushes evt to local connections. Each connection receives it at
// most once even when it watches several orders of the batch.
func (h *Hub) Deliver(evt model.StatusEvent) {
	if evt.Type == "" {
		evt.Type = MessagePaymentStatus
	}
	sent := make(map[string]struct{})
	for _, orderId := range evt.OrderIds {
		h.deliverGroup(orderId, evt, sent)
	}
}

func (h *Hub) deliverGroup(orderId uint, evt model.StatusEvent, sent map[string]struct{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("live broadcast recovered", "order", orderId, "panic", r)
		}
	}()

	h.mu.RLock()
	targets := make([]string, 0, len(h.groups[orderId]))
	for id := range h.groups[orderId] {
		if _, done := sent[id]; !done {
			targets = append(targets, id)
		}
	}
	h.mu.RUnlock()

	msg := Message{Type: MessagePaymentStatus, OrderId: orderId, Event: &evt}
	for _, id := range targets {
		sent[id] = struct{}{}
		if err := h.write(id, msg); err != nil {
			log.Warnw("live write failed, dropping connection", "conn", id, "order", orderId, "error", err)
			h.Disconnect(id)
		}
	}
}

func (h *Hub) send(connId string, msg Message) {
	if err := h.write(connId, msg); err != nil && !errors.Is(err, ErrUnknownConn) {
		log.Warnw("live reply failed, dropping connection", "conn", connId, "error", err)
		h.Disconnect(connId)
	}
}

// write serialises writes per connection and bounds each by writeTimeout.
func (h *Hub) write(connId string, msg Message) error {
	h.mu.RLock()
	c, ok := h.clients[connId]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownConn
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

// Registrations lists what every connection watches.
func (h *Hub) Registrations() []Registration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Registration
	for _, c := range h.clients {
		for orderId, joinedAt := range c.orders {
			out = append(out, Registration{ConnId: c.id, UserId: c.userId, OrderId: orderId, JoinedAt: joinedAt})
		}
	}
	return out
}

// Watchers returns how many connections are in orderId's group.
func (h *Hub) Watchers(orderId uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[orderId])
}
