package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// BroadcasterConfig tunes websocket timing and buffering.
type BroadcasterConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration

	// MaxMessageSize limits what clients may send; they only send pongs.
	MaxMessageSize       int64
	BroadcastBufferSize  int
	ClientSendBufferSize int
}

func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		PingInterval:         30 * time.Second,
		PongWait:             60 * time.Second,
		WriteWait:            10 * time.Second,
		MaxMessageSize:       512,
		BroadcastBufferSize:  256,
		ClientSendBufferSize: 64,
	}
}

type client struct {
	conn        *websocket.Conn
	send        chan []byte
	remoteAddr  string
	connectedAt time.Time
}

// Broadcaster fans messages out to every connected websocket client.
//
// The client set is owned by the Run loop. Each client has its own write
// goroutine, the only one writing to its connection; a client whose send
// buffer fills up is dropped rather than slowing everyone else down.
type Broadcaster struct {
	cfg    BroadcasterConfig
	logger *zap.Logger

	upgrader   websocket.Upgrader
	broadcast  chan WSMessage
	register   chan *client
	unregister chan *websocket.Conn
	done       chan struct{}

	// initial, if set, builds the first message each client receives.
	initial func() WSMessage

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

func NewBroadcaster(cfg BroadcasterConfig, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultBroadcasterConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.BroadcastBufferSize <= 0 {
		cfg.BroadcastBufferSize = def.BroadcastBufferSize
	}
	if cfg.ClientSendBufferSize <= 0 {
		cfg.ClientSendBufferSize = def.ClientSendBufferSize
	}

	return &Broadcaster{
		cfg:        cfg,
		logger:     logger,
		broadcast:  make(chan WSMessage, cfg.BroadcastBufferSize),
		register:   make(chan *client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		clients:    make(map[*websocket.Conn]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI is served from the same origin; API clients send no Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetInitial installs the builder for each client's first message. It must
// be called before Run.
func (b *Broadcaster) SetInitial(fn func() WSMessage) {
	b.initial = fn
}

// Run processes registrations and broadcasts until ctx is done, then closes
// every client.
func (b *Broadcaster) Run(ctx context.Context) {
	defer close(b.done)
	b.logger.Debug("broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			b.logger.Debug("broadcaster stopped")
			return
		case c := <-b.register:
			b.addClient(c)
		case conn := <-b.unregister:
			b.removeClient(conn)
		case msg := <-b.broadcast:
			b.broadcastToAll(msg)
		}
	}
}

// HandleConnection upgrades the request and registers the client.
func (b *Broadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	conn.SetReadLimit(b.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	})

	c := &client{
		conn:        conn,
		send:        make(chan []byte, b.cfg.ClientSendBufferSize),
		remoteAddr:  r.RemoteAddr,
		connectedAt: time.Now(),
	}
	select {
	case b.register <- c:
	case <-b.done:
		conn.Close()
		return
	}
	go b.readPump(conn)
}

// Broadcast queues msg for every client. It never blocks; when the queue is
// full the message is dropped.
func (b *Broadcaster) Broadcast(msg WSMessage) bool {
	select {
	case b.broadcast <- msg:
		return true
	default:
		b.logger.Warn("broadcast queue full, dropping message", zap.String("type", msg.Type))
		return false
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) addClient(c *client) {
	if b.initial != nil {
		if data, err := json.Marshal(b.initial()); err == nil {
			c.send <- data
		} else {
			b.logger.Error("marshal initial message", zap.Error(err))
		}
	}

	b.mu.Lock()
	b.clients[c.conn] = c
	total := len(b.clients)
	b.mu.Unlock()

	go b.writePump(c)
	b.logger.Debug("websocket client connected", zap.String("remote_addr", c.remoteAddr), zap.Int("clients", total))
}

func (b *Broadcaster) removeClient(conn *websocket.Conn) {
	b.mu.Lock()
	c, ok := b.clients[conn]
	delete(b.clients, conn)
	total := len(b.clients)
	b.mu.Unlock()
	if !ok {
		return
	}

	close(c.send)
	b.logger.Debug("websocket client disconnected",
		zap.String("remote_addr", c.remoteAddr),
		zap.Duration("connected", time.Since(c.connectedAt)),
		zap.Int("clients", total))
}

func (b *Broadcaster) broadcastToAll(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("marshal broadcast message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	b.mu.RLock()
	var slow []*websocket.Conn
	for conn, c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	b.mu.RUnlock()

	for _, conn := range slow {
		b.logger.Warn("websocket client too slow, disconnecting", zap.String("remote_addr", conn.RemoteAddr().String()))
		b.removeClient(conn)
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.mu.RUnlock()

	for _, conn := range conns {
		b.removeClient(conn)
	}
}

// readPump discards client messages; it exists to process pongs and notice
// disconnects.
func (b *Broadcaster) readPump(conn *websocket.Conn) {
	defer func() {
		select {
		case b.unregister <- conn:
		case <-b.done:
		}
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (b *Broadcaster) writePump(c *client) {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
