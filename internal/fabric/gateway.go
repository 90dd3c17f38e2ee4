// Package fabric is the websocket session layer: it accepts framed
// client connections, runs the connect handshake, dispatches requests
// to the inspector core and fans broadcasts out to every initialized
// session.
package fabric

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/assets"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/core"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/metrics"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The inspector binds to an operator-controlled port; browser
	// origin checks do not apply to its tooling clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway owns the session registry. It implements core.Broadcaster.
type Gateway struct {
	core   *core.Inspector
	assets *assets.Service
	met    *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
	stopped  bool
}

// NewGateway builds the session gateway.
func NewGateway(c *core.Inspector, a *assets.Service, met *metrics.Metrics) *Gateway {
	return &Gateway{
		core:     c,
		assets:   a,
		met:      met,
		sessions: make(map[string]*Session),
	}
}

// HandleWebSocket upgrades the connection and runs the handshake.
// Connections beyond the session cap are closed with the try-again
// code and no frame.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	cfg := g.core.Config()
	if !cfg.Enabled || !cfg.WebsocketEnabled {
		http.Error(w, "inspector disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	s := newSession(g, conn)
	if !g.register(s, cfg.WebsocketMaxClients) {
		g.met.SessionsRejected.Inc()
		slog.Warn("Session rejected, client cap reached",
			"clientId", s.clientID, "maxClients", cfg.WebsocketMaxClients)
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "session cap reached"),
			deadline)
		conn.Close()
		return
	}

	slog.Info("Session connected", "clientId", s.clientID, "remote", conn.RemoteAddr().String())
	go s.writePump()
	go s.readPump()
	s.handshake()
}

func (g *Gateway) register(s *Session, maxClients int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return false
	}
	if maxClients > 0 && len(g.sessions) >= maxClients {
		return false
	}
	g.sessions[s.clientID] = s
	g.met.ActiveSessions.Set(float64(len(g.sessions)))
	return true
}

func (g *Gateway) unregister(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[s.clientID]; !ok {
		return
	}
	delete(g.sessions, s.clientID)
	g.met.ActiveSessions.Set(float64(len(g.sessions)))
}

// Broadcast fans a frame out to every initialized session. Per-session
// failures drop the frame for that session only.
func (g *Gateway) Broadcast(f *protocol.Frame) {
	raw, err := f.Encode()
	if err != nil {
		slog.Warn("Dropping unencodable broadcast frame", "type", f.Type, "error", err)
		return
	}
	g.mu.RLock()
	targets := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		if s.initialized.Load() {
			targets = append(targets, s)
		}
	}
	g.mu.RUnlock()

	for _, s := range targets {
		s.enqueue(raw)
	}
	if len(targets) > 0 {
		g.met.FramesSent.WithLabelValues(string(f.Type)).Add(float64(len(targets)))
	}
}

// SessionCount reports the number of connected sessions.
func (g *Gateway) SessionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

// Stop closes every session and refuses new ones. Idempotent.
func (g *Gateway) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	slog.Info("Session gateway stopped", "closedSessions", len(sessions))
}
