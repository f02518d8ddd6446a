// Package dashboard streams audit session activity to WebSocket clients,
// so a supervisor can watch door selections, picks, and saves live while
// a field team works through a building.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/dataworks/fieldaudit/internal/audit"
	"github.com/dataworks/fieldaudit/internal/model"
	"github.com/dataworks/fieldaudit/internal/store"
)

// Snapshot is the working-table summary sent to each client on connect
// and after every save.
type Snapshot struct {
	Total int `json:"total"`
	Found int `json:"found"`
	Extra int `json:"extra"`
	Unset int `json:"unset"`
}

type message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Server manages WebSocket connections and broadcasts session events.
// It implements audit.EventSink so it can be attached to a Session
// directly.
type Server struct {
	addr     string
	db       *store.DB
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewServer creates a dashboard server on addr (host:port). db supplies
// the working-table snapshot; it may be nil in tests.
func NewServer(addr string, db *store.DB, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		db:        db,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Start begins listening and serving WebSocket clients.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("dashboard listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("dashboard server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server and closes all clients.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}

	s.wg.Wait()
	return nil
}

// Emit broadcasts a session event to all clients. A save or finish also
// triggers a fresh working-table snapshot.
func (s *Server) Emit(ev audit.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Printf("failed to marshal event: %v", err)
		return
	}
	s.send(message{Type: ev.Type, Timestamp: ev.Timestamp, Data: data})

	switch ev.Type {
	case audit.EventWorkSaved, audit.EventAuditStarted, audit.EventAuditFinished, audit.EventAuditStopped:
		s.broadcastSnapshot()
	}
}

func (s *Server) send(msg message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("broadcast channel full, dropping message")
	}
}

func (s *Server) snapshot() (*Snapshot, error) {
	if s.db == nil {
		return &Snapshot{}, nil
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.AllAuditing(ctx)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Total: len(rows)}
	for _, r := range rows {
		switch r.FoundStatus {
		case model.FoundStatusFound:
			snap.Found++
		case model.FoundStatusExtra:
			snap.Extra++
		default:
			snap.Unset++
		}
	}
	return snap, nil
}

func (s *Server) broadcastSnapshot() {
	snap, err := s.snapshot()
	if err != nil {
		s.logger.Printf("failed to build snapshot: %v", err)
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	s.send(message{Type: "snapshot", Timestamp: time.Now(), Data: data})
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Printf("client connected (total: %d)", count)

	// New clients get the current working-table state immediately.
	if snap, err := s.snapshot(); err == nil {
		if data, err := json.Marshal(snap); err == nil {
			msg, _ := json.Marshal(message{Type: "snapshot", Timestamp: time.Now(), Data: data})
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = conn.Write(ctx, websocket.MessageText, msg)
			cancel()
		}
	}

	go s.readLoop(conn)
}

// readLoop drains client messages so disconnects are noticed. Clients
// only listen; anything they send is discarded.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)
	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		count := len(s.clients)
		s.clientsMu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("client disconnected (total: %d)", count)
		return
	}
	s.clientsMu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	count := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": count,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Field Audit Dashboard</title>
</head>
<body>
    <h1>Field Audit Dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Connect a WebSocket client to watch live audit activity.</p>
</body>
</html>`, r.Host)
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
