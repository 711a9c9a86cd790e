// Package hub fans events out to connected viewers.
//
// Each client owns a bounded send queue drained by its own writer goroutine,
// so a slow or broken viewer never delays the publisher or other viewers.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/killfeedsc/killfeed-go/internal/metrics"
	"github.com/killfeedsc/killfeed-go/pkg/killfeed/event"
)

// ErrClosed is returned by Accept after Close.
var ErrClosed = errors.New("hub: closed")

// Disconnect reasons, passed to Conn.Close and used as metric labels.
const (
	ReasonClientLeft  = "client_left"
	ReasonSlow        = "slow_consumer"
	ReasonWriteFailed = "write_failed"
	ReasonPingFailed  = "ping_failed"
	ReasonShutdown    = "shutdown"
)

// Conn is the transport of one viewer. Implementations need not be safe for
// concurrent use; the hub calls them from a single goroutine per client.
type Conn interface {
	Write(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	Close(reason string) error
}

const (
	DefaultSendQueue    = 64
	DefaultWriteTimeout = 2 * time.Second
	DefaultPingInterval = 20 * time.Second
	DefaultCloseTimeout = 3 * time.Second
)

// Config holds configuration for a Hub.
type Config struct {
	// SendQueue is the per-client queue length; a full queue drops the client.
	SendQueue    int
	WriteTimeout time.Duration
	PingInterval time.Duration
	// CloseTimeout bounds how long Close waits for writers to finish.
	CloseTimeout time.Duration

	// Version and PlayerName are reported in the hello message.
	Version    string
	PlayerName string
	// SourceState, if set, reports the line source state for hello messages.
	SourceState func() string

	Now     func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func (c Config) withDefaults() Config {
	if c.SendQueue <= 0 {
		c.SendQueue = DefaultSendQueue
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = DefaultCloseTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Client is one registered viewer.
type Client struct {
	ID          uuid.UUID
	ConnectedAt time.Time

	conn     Conn
	send     chan []byte
	done     chan struct{}
	finished chan struct{}
	once     sync.Once

	mu      sync.Mutex
	reason  string
	lastErr error
}

// Done is closed when the client has been removed from the hub.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Finished is closed once the writer goroutine has closed the connection.
func (c *Client) Finished() <-chan struct{} {
	return c.finished
}

// Err returns the last send error, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) stop(reason string, err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		if err != nil {
			c.lastErr = err
		}
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Client) closeReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Status is a snapshot of hub counters.
type Status struct {
	Clients         int    `json:"clients"`
	EventsPublished uint64 `json:"events_published"`
	MessagesSent    uint64 `json:"messages_sent"`
	ClientsDropped  uint64 `json:"clients_dropped"`
}

// ClientInfo describes a connected client.
type ClientInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	LastError   string    `json:"last_error,omitempty"`
}

// Hub is the client registry and broadcaster.
type Hub struct {
	cfg Config
	log *zap.Logger

	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	closed  bool
	wg      sync.WaitGroup

	published atomic.Uint64
	sent      atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a Hub.
func New(cfg Config) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		cfg:     cfg,
		log:     cfg.Logger,
		clients: make(map[uuid.UUID]*Client),
	}
}

// helloMessage is the first message every client receives.
type helloMessage struct {
	Type       event.Type  `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
	PlayerName string      `json:"player_name,omitempty"`
	Version    string      `json:"version"`
	Status     helloStatus `json:"status"`
}

type helloStatus struct {
	State   string `json:"state"`
	Clients int    `json:"clients"`
}

// Accept registers conn and queues the hello message ahead of any event.
// The client is removed when ctx is cancelled. Accept never blocks on the
// connection.
func (h *Hub) Accept(ctx context.Context, conn Conn) (*Client, error) {
	c := &Client{
		ID:          uuid.New(),
		ConnectedAt: h.cfg.Now().UTC(),
		conn:        conn,
		send:        make(chan []byte, h.cfg.SendQueue),
		done:        make(chan struct{}),
		finished:    make(chan struct{}),
	}

	state := ""
	if h.cfg.SourceState != nil {
		state = h.cfg.SourceState()
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	hello, err := json.Marshal(helloMessage{
		Type:       event.Hello,
		Timestamp:  c.ConnectedAt,
		PlayerName: h.cfg.PlayerName,
		Version:    h.cfg.Version,
		Status:     helloStatus{State: state, Clients: len(h.clients) + 1},
	})
	if err != nil {
		h.mu.Unlock()
		return nil, err
	}
	c.send <- hello
	h.clients[c.ID] = c
	count := len(h.clients)
	h.wg.Add(1)
	h.mu.Unlock()

	h.cfg.Metrics.ClientConnected()
	h.log.Info("client connected", zap.Stringer("client", c.ID), zap.Int("clients", count))

	go h.writeLoop(ctx, c)
	return c, nil
}

// Publish queues ev for every registered client and returns how many
// clients it was handed to. Clients whose queue is full are disconnected.
func (h *Hub) Publish(ev event.Event) int {
	ev.RawLine = ""
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encoding event", zap.Error(err))
		return 0
	}
	h.published.Add(1)

	var delivered int
	var slow []*Client

	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.remove(c, ReasonSlow, nil)
	}
	return delivered
}

// Disconnect removes c. Safe to call more than once and after Close.
func (h *Hub) Disconnect(c *Client) {
	if c == nil {
		return
	}
	h.remove(c, ReasonClientLeft, nil)
}

// Status returns a snapshot of hub counters.
func (h *Hub) Status() Status {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	return Status{
		Clients:         n,
		EventsPublished: h.published.Load(),
		MessagesSent:    h.sent.Load(),
		ClientsDropped:  h.dropped.Load(),
	}
}

// Clients returns the connected clients ordered by connection time.
func (h *Hub) Clients() []ClientInfo {
	h.mu.RLock()
	out := make([]ClientInfo, 0, len(h.clients))
	for _, c := range h.clients {
		info := ClientInfo{ID: c.ID.String(), ConnectedAt: c.ConnectedAt}
		if err := c.Err(); err != nil {
			info.LastError = err.Error()
		}
		out = append(out, info)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Close stops accepting clients, closes every connection with a going-away
// status and waits up to CloseTimeout for writers to exit.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for id, c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.stop(ReasonShutdown, nil)
		h.cfg.Metrics.ClientDisconnected(ReasonShutdown)
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		h.log.Info("hub closed", zap.Int("clients", len(clients)))
	case <-time.After(h.cfg.CloseTimeout):
		h.log.Warn("hub close timed out waiting for writers", zap.Duration("timeout", h.cfg.CloseTimeout))
	}
	return nil
}

// remove unregisters c and signals its writer. Returns false if c was
// already gone.
func (h *Hub) remove(c *Client, reason string, cause error) bool {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	if ok {
		delete(h.clients, c.ID)
	}
	remaining := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return false
	}

	c.stop(reason, cause)
	h.cfg.Metrics.ClientDisconnected(reason)
	if reason != ReasonClientLeft {
		h.dropped.Add(1)
	}

	fields := []zap.Field{zap.Stringer("client", c.ID), zap.String("reason", reason), zap.Int("clients", remaining)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
		h.log.Warn("client dropped", fields...)
	} else {
		h.log.Info("client disconnected", fields...)
	}
	return true
}

func (h *Hub) writeLoop(ctx context.Context, c *Client) {
	defer h.wg.Done()
	defer close(c.finished)
	defer func() {
		if err := c.conn.Close(c.closeReason()); err != nil {
			h.log.Debug("closing connection", zap.Stringer("client", c.ID), zap.Error(err))
		}
	}()

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		// Removal wins over pending messages.
		select {
		case <-c.done:
			return
		default:
		}

		select {
		case <-c.done:
			return
		case <-ctx.Done():
			h.remove(c, ReasonClientLeft, nil)
			return
		case msg := <-c.send:
			if err := h.write(c, msg); err != nil {
				h.remove(c, ReasonWriteFailed, err)
				return
			}
			h.sent.Add(1)
			h.cfg.Metrics.MessageSent()
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				h.remove(c, ReasonPingFailed, err)
				return
			}
		}
	}
}

func (h *Hub) write(c *Client, msg []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
	defer cancel()
	return c.conn.Write(ctx, msg)
}
