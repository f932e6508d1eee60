// Package web serves a small diagnostic feed: the latest state snapshot
// over plain HTTP and a websocket stream of snapshot updates.
package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bcm-service/internal/logger"
	"bcm-service/internal/types"
)

const writeDeadline = time.Second

// Server broadcasts state snapshots to connected websocket clients.
type Server struct {
	log      *logger.Logger
	upgrader websocket.Upgrader
	srv      *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	latest  types.Snapshot
	haveOne bool
}

func NewServer(addr string, log *logger.Logger) *Server {
	s := &Server{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/state", s.handleState)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start runs the HTTP listener in the background.
func (s *Server) Start() {
	go func() {
		s.log.Infof("Diagnostic feed listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("Web server error: %v", err)
		}
	}()
}

// Close stops the listener and disconnects all clients.
func (s *Server) Close() error {
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.mu.Unlock()
	return s.srv.Close()
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snap, ok := s.latest, s.haveOne
	s.mu.Unlock()

	if !ok {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.log.Warnf("Failed to encode snapshot: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	if s.haveOne {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteJSON(s.latest); err != nil {
			s.log.Debugf("Initial snapshot write failed: %v", err)
		}
	}
	s.mu.Unlock()

	// Drain the read side so pings and closes are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.mu.Lock()
				delete(s.clients, conn)
				s.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// PublishSnapshot stores the snapshot and broadcasts it. Clients that fail
// to accept the write are dropped.
func (s *Server) PublishSnapshot(snap types.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = snap
	s.haveOne = true
	for conn := range s.clients {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteJSON(snap); err != nil {
			delete(s.clients, conn)
			conn.Close()
		}
	}
	return nil
}
