package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"visualizer/internal/log"
	"visualizer/internal/metrics"
	"visualizer/internal/spectrum"
)

// WebSocketPath is where clients connect.
const WebSocketPath = "/ws"

const (
	broadcastQueue = 16
	writeTimeout   = time.Second
)

// WebSocketTransport implements the Transport interface for WebSocket
// connections. Each snapshot is encoded once as JSON and written to every
// connected client by a single broadcast goroutine; a client whose write
// fails is dropped.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	closed    bool // guarded by clientsMu
	broadcast chan []byte
	server    *http.Server
	listener  net.Listener
	metrics   *metrics.Metrics
	log       log.Logger

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWebSocketTransport listens on addr and starts serving WebSocket clients
// at WebSocketPath.
func NewWebSocketTransport(addr string, m *metrics.Metrics) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Any local page may visualize the stream
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, broadcastQueue),
		listener:  ln,
		metrics:   m,
		log:       log.Named("websocket"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, wst.handleWebSocket)
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		wst.log.Infof("serving spectra on ws://%s%s", ln.Addr(), WebSocketPath)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.log.Errorf("server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()

	return wst, nil
}

// Name returns "websocket".
func (wst *WebSocketTransport) Name() string { return "websocket" }

// Addr returns the address the server listens on.
func (wst *WebSocketTransport) Addr() net.Addr { return wst.listener.Addr() }

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.log.Warnf("upgrade error: %v", err)
		return
	}

	// Register client
	wst.clientsMu.Lock()
	if wst.closed {
		wst.clientsMu.Unlock()
		conn.Close()
		return
	}
	wst.clients[conn] = true
	n := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.metrics.SetWebSocketClients(n)
	wst.log.Infof("client %s connected, total: %d", conn.RemoteAddr(), n)

	// Clients only listen; reading detects the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.removeClient(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	n := len(wst.clients)
	wst.clientsMu.Unlock()

	conn.Close()
	if ok {
		wst.metrics.SetWebSocketClients(n)
		wst.log.Infof("client %s disconnected, total: %d", conn.RemoteAddr(), n)
	}
}

// handleBroadcasts sends messages to all connected clients. Writes happen
// outside clientsMu so a slow client never blocks Send or Clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	var clients []*websocket.Conn
	for data := range wst.broadcast {
		clients = clients[:0]
		wst.clientsMu.Lock()
		for client := range wst.clients {
			clients = append(clients, client)
		}
		wst.clientsMu.Unlock()

		for _, client := range clients {
			_ = client.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
				wst.log.Debugf("error sending to %s: %v", client.RemoteAddr(), err)
				wst.removeClient(client)
			}
		}
	}
}

// Send queues snap for all connected WebSocket clients. It returns an error
// wrapping ErrSkipped when no client is connected or the queue is full; a
// newer snapshot follows shortly.
func (wst *WebSocketTransport) Send(snap *spectrum.Snapshot) error {
	if wst.Clients() == 0 {
		return fmt.Errorf("%w: no websocket clients", ErrSkipped)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	if wst.closed {
		return net.ErrClosed
	}
	select {
	case wst.broadcast <- data:
		return nil
	default:
		return fmt.Errorf("%w: broadcast queue full", ErrSkipped)
	}
}

// Close shuts down the server and disconnects all clients.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		err = wst.server.Close()

		wst.clientsMu.Lock()
		wst.closed = true
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		close(wst.broadcast)
		wst.clientsMu.Unlock()
		wst.metrics.SetWebSocketClients(0)

		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
