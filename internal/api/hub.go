package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alexfall862/simBaseball-API-sub000/internal/metrics"
	"github.com/alexfall862/simBaseball-API-sub000/internal/transactions"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	subscriberQueue = 32
)

// subscriber is one WebSocket client. Only its write loop writes to conn.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans committed league events (transactions, rollbacks, proposal
// transitions) out to WebSocket subscribers. The subscriber set is owned by
// Run; everything else talks to it over channels.
type Hub struct {
	events chan []byte
	join   chan *subscriber
	leave  chan *subscriber
	done   chan struct{}
	logger *slog.Logger
}

// NewHub creates a hub. A nil logger uses slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		events: make(chan []byte, 256),
		join:   make(chan *subscriber),
		leave:  make(chan *subscriber),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run delivers events until ctx is done. A subscriber whose queue is full
// is disconnected rather than allowed to stall the others.
func (h *Hub) Run(ctx context.Context) {
	subs := make(map[*subscriber]struct{})
	drop := func(s *subscriber) {
		if _, ok := subs[s]; ok {
			delete(subs, s)
			close(s.send)
		}
	}
	defer func() {
		for s := range subs {
			drop(s)
		}
		metrics.WebSocketClients.Set(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.join:
			subs[s] = struct{}{}
			h.logger.Info("ws client connected", "total", len(subs))

		case s := <-h.leave:
			drop(s)

		case msg := <-h.events:
			for s := range subs {
				select {
				case s.send <- msg:
				default:
					h.logger.Warn("ws client too slow, disconnecting")
					drop(s)
				}
			}
		}
		metrics.WebSocketClients.Set(float64(len(subs)))
	}
}

// Notify queues ev for every subscriber. It never blocks the caller; events
// are dropped when the queue is full.
func (h *Hub) Notify(ev transactions.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("ws event encode failed", "type", ev.Type, "error", err)
		return
	}
	select {
	case h.events <- data:
	default:
		h.logger.Warn("ws event queue full, event dropped", "type", ev.Type)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer.
	CheckOrigin: func(*http.Request) bool { return true },
}

// HandleWS upgrades GET /api/v1/ws. Clients only receive; anything they send
// is discarded.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	s := &subscriber{conn: conn, send: make(chan []byte, subscriberQueue)}

	select {
	case h.join <- s:
	case <-h.done:
		conn.Close()
		return
	}

	go s.writeLoop()
	go h.readLoop(s)
}

func (h *Hub) readLoop(s *subscriber) {
	defer func() {
		select {
		case h.leave <- s:
		case <-h.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
