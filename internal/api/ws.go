package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ycwu/twstock/backend/internal/external/twse"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

const (
	streamInterval = 5 * time.Second
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	// pingPeriod must stay under pongWait so the client's pong lands
	// before the read deadline expires.
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamHandler pushes intraday quotes over a WebSocket.
// ⭐ SSOT: 盤中報價推播只在這個 handler
type StreamHandler struct {
	quotes *twse.Client
	logger *logger.Logger

	interval   time.Duration
	pingPeriod time.Duration
	pongWait   time.Duration
}

// NewStreamHandler creates a quote stream handler.
func NewStreamHandler(quotes *twse.Client, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		quotes:     quotes,
		logger:     log,
		interval:   streamInterval,
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}
}

// Serve upgrades the connection and pushes the stock's quote every
// five seconds until the client disconnects. The quote cache keeps
// many viewers of the same stock down to one upstream call per TTL.
// GET /api/stock/stream?id=
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	stockID := r.URL.Query().Get("id")
	if stockID == "" {
		http.Error(w, "missing stock id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	h.logger.WithField("stock_id", stockID).Debug("Quote stream opened")

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(r.Context(), conn, stockID, done)
}

// readPump drains incoming frames to detect the client going away.
// Pongs answering our pings refresh the read deadline.
func (h *StreamHandler) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes quotes on a fixed tick and pings the client so the
// read deadline keeps getting refreshed. A nil quote (off-hours,
// upstream down) skips the tick rather than closing the stream.
func (h *StreamHandler) writePump(ctx context.Context, conn *websocket.Conn, stockID string, done chan struct{}) {
	ticker := time.NewTicker(h.interval)
	pingTicker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		pingTicker.Stop()
		conn.Close()
	}()

	push := func() bool {
		quote := h.quotes.Quote(ctx, stockID)
		if quote == nil {
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(quote); err != nil {
			return false
		}
		return true
	}

	// 連上先推一筆，不用等第一個 tick
	if !push() {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !push() {
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
