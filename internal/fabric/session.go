package fabric

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/protocol"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
	maxMsgSize = 512 * 1024
	sendBuffer = 256
)

// Session is one connected inspector client. writePump is the only
// goroutine writing to conn, readPump the only one reading; frames
// enqueued on send are delivered FIFO.
type Session struct {
	gw          *Gateway
	conn        *websocket.Conn
	clientID    string
	connectedAt time.Time

	lastActivity atomic.Int64 // unix millis
	sendCount    atomic.Int64
	initialized  atomic.Bool

	send chan []byte
	done chan struct{}
	once sync.Once
}

func newSession(g *Gateway, conn *websocket.Conn) *Session {
	s := &Session{
		gw:          g,
		conn:        conn,
		clientID:    uuid.NewString(),
		connectedAt: time.Now(),
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
	}
	s.touch()
	return s
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixMilli())
}

// handshake runs the connect sequence: initial world snapshot, then
// the session joins the broadcast set, then config and feature info.
func (s *Session) handshake() {
	snap, err := s.gw.core.OnRequestSnapshot("")
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.sendFrame(protocol.TypeInit, snap)
	s.initialized.Store(true)
	s.sendFrame(protocol.TypeConfigSync, s.gw.core.Config())
	s.sendFrame(protocol.TypeFeatureInfo, s.gw.core.FeatureInfo())
}

// enqueue hands a pre-encoded frame to the write pump. A full buffer
// or closed session drops the frame; broadcast is best-effort.
func (s *Session) enqueue(raw []byte) {
	select {
	case <-s.done:
	case s.send <- raw:
		s.sendCount.Add(1)
		s.touch()
	default:
		slog.Warn("Dropping frame, session send buffer full", "clientId", s.clientID)
	}
}

func (s *Session) sendFrame(t protocol.MessageType, data any) {
	raw, err := protocol.MustFrame(t, data).Encode()
	if err != nil {
		slog.Warn("Dropping unencodable frame", "type", t, "error", err)
		return
	}
	s.enqueue(raw)
	s.gw.met.FramesSent.WithLabelValues(string(t)).Inc()
}

func (s *Session) sendError(message string) {
	s.sendFrame(protocol.TypeError, map[string]string{"message": message})
}

// close shuts the session down exactly once.
func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		s.gw.unregister(s)
		s.conn.Close()
		slog.Info("Session disconnected",
			"clientId", s.clientID,
			"connectedFor", time.Since(s.connectedAt).Round(time.Second).String(),
			"framesSent", s.sendCount.Load())
	})
}

// writePump owns all writes to the connection, including pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case raw, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				slog.Warn("Session write failed", "clientId", s.clientID, "error", err)
				return
			}
			// Drain whatever queued up behind this frame.
			n := len(s.send)
			for i := 0; i < n; i++ {
				if err := s.conn.WriteMessage(websocket.TextMessage, <-s.send); err != nil {
					slog.Warn("Session write failed", "clientId", s.clientID, "error", err)
					return
				}
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			return
		}
	}
}

// readPump owns all reads and routes each inbound frame through the
// dispatch table.
func (s *Session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(maxMsgSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("Session read failed", "clientId", s.clientID, "error", err)
			}
			return
		}
		s.touch()

		frame, err := protocol.Parse(raw)
		if err != nil {
			s.gw.met.FrameErrors.Inc()
			s.sendError(err.Error())
			continue
		}
		s.gw.met.FramesReceived.WithLabelValues(string(frame.Type)).Inc()
		s.dispatch(frame)
	}
}
