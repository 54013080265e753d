// Package inspector streams read-only game snapshots to websocket clients.
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeusync/stagehand/internal/core/game"
	"github.com/zeusync/stagehand/internal/core/observability/log"
	"github.com/zeusync/stagehand/internal/core/watch"
)

type Config struct {
	Address      string
	Path         string
	WriteTimeout time.Duration
	// ClientBuffer is the number of snapshots queued per client before new
	// ones are dropped for it.
	ClientBuffer int
}

func DefaultConfig() Config {
	return Config{
		Address:      "127.0.0.1:7070",
		Path:         "/inspect",
		WriteTimeout: 5 * time.Second,
		ClientBuffer: 16,
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	addr string
}

// Inspector fans snapshots out to connected clients. Publishing never blocks
// on a slow client.
type Inspector struct {
	cfg      Config
	logger   log.Log
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte

	running   atomic.Bool
	published atomic.Uint64
	dropped   atomic.Uint64
}

func New(cfg Config, logger log.Log) (*Inspector, error) {
	if cfg.Path == "" || cfg.Path[0] != '/' {
		return nil, fmt.Errorf("%w: path %q", ErrInvalidConfig, cfg.Path)
	}
	if cfg.ClientBuffer <= 0 {
		return nil, fmt.Errorf("%w: client buffer %d", ErrInvalidConfig, cfg.ClientBuffer)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Inspector{
		cfg:    cfg,
		logger: logger.With(log.String("component", "inspector")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}, nil
}

// Watch publishes a snapshot of g after every render.
func (i *Inspector) Watch(g *game.Game) watch.Subscription {
	return g.WatchType(game.EventRender, watch.Options{}, func(watch.Event) error {
		return i.Publish(Capture(g))
	})
}

// Publish encodes snap and queues it for every client.
func (i *Inspector) Publish(snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	i.published.Add(1)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.last = b
	for c := range i.clients {
		select {
		case c.send <- b:
		default:
			i.dropped.Add(1)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (i *Inspector) Clients() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.clients)
}

// Dropped counts snapshots skipped for clients whose buffer was full.
func (i *Inspector) Dropped() uint64 { return i.dropped.Load() }

func (i *Inspector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(i.cfg.Path, i.handleWebSocket)
	return mux
}

// Run serves the inspector until ctx is cancelled.
func (i *Inspector) Run(ctx context.Context) error {
	if !i.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}
	defer i.running.Store(false)

	listener, err := net.Listen("tcp", i.cfg.Address)
	if err != nil {
		return fmt.Errorf("inspector listen %s: %w", i.cfg.Address, err)
	}
	return i.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (i *Inspector) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           i.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	i.logger.Info("Inspector listening",
		log.String("addr", listener.Addr().String()),
		log.String("path", i.cfg.Path))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		i.closeClients()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), i.cfg.WriteTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	i.closeClients()
	i.logger.Info("Inspector stopped")
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (i *Inspector) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		i.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, i.cfg.ClientBuffer),
		addr: conn.RemoteAddr().String(),
	}
	i.mu.Lock()
	if i.last != nil {
		c.send <- i.last
	}
	i.clients[c] = struct{}{}
	i.mu.Unlock()
	i.logger.Debug("Inspector client connected", log.String("remote_addr", c.addr))

	go i.writeLoop(c)
	i.readLoop(c)
}

// readLoop discards client input and detects disconnects.
func (i *Inspector) readLoop(c *client) {
	defer i.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (i *Inspector) writeLoop(c *client) {
	for b := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(i.cfg.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			i.logger.Debug("Inspector write failed", log.String("remote_addr", c.addr), log.Error(err))
			_ = c.conn.Close()
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = c.conn.Close()
}

// drop unregisters c and stops its writer.
func (i *Inspector) drop(c *client) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.clients[c]; !ok {
		return
	}
	delete(i.clients, c)
	close(c.send)
	i.logger.Debug("Inspector client disconnected", log.String("remote_addr", c.addr))
}

func (i *Inspector) closeClients() {
	i.mu.Lock()
	list := make([]*client, 0, len(i.clients))
	for c := range i.clients {
		list = append(list, c)
	}
	i.mu.Unlock()
	for _, c := range list {
		i.drop(c)
	}
}
