package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"slidecast/internal/logging"
	"slidecast/internal/registry"
)

// jobUpdate is the wire form of one registry change pushed to websocket
// subscribers.
type jobUpdate struct {
	Type            string  `json:"type"`
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	ProgressPercent float64 `json:"progress_percent"`
	ProgressMessage string  `json:"progress_message,omitempty"`
	PageCount       int     `json:"page_count,omitempty"`
	Error           string  `json:"error,omitempty"`
	Timestamp       string  `json:"timestamp"`
}

// streamHub fans registry updates out to connected websocket clients.
type streamHub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newStreamHub(logger *slog.Logger) *streamHub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &streamHub{
		logger: logging.NewComponentLogger(logger, "stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// start subscribes to the registry and pumps updates until ctx ends.
func (h *streamHub) start(ctx context.Context, reg *registry.Registry) {
	updates, cancel := reg.Subscribe()
	go func() {
		defer cancel()
		defer h.closeAll()
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-updates:
				if !ok {
					return
				}
				h.broadcast(job)
			}
		}
	}()
}

func (h *streamHub) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client connected", logging.Int("clients", total))

	// Reader loop only watches for close; clients never send payloads.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *streamHub) broadcast(job *registry.Job) {
	update := jobUpdate{
		Type:            "job_update",
		JobID:           job.ID,
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		ProgressMessage: job.ProgressMessage,
		PageCount:       job.PageCount,
		Timestamp:       job.UpdatedAt.Format(time.RFC3339),
	}
	if job.Status == registry.StatusFailed && job.ErrorDetail != "" {
		update.Error = job.ErrorDetail
	}
	payload, err := json.Marshal(update)
	if err != nil {
		h.logger.Error("encode job update", logging.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *streamHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client disconnected", logging.Int("clients", total))
}

func (h *streamHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
