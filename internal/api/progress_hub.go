// Package api streams run progress to HTTP clients as Server-Sent Events.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"edgeproof/domain/core"
	"edgeproof/internal"
	"edgeproof/ports"
)

const (
	clientBuffer  = 64
	historyPerRun = 32
	historyRuns   = 256
)

type client struct {
	runID   core.RunID
	channel chan ports.ProgressEvent
}

// Hub fans progress events out to the SSE clients of each run. It keeps a
// short history per run so a client that connects late still sees every
// stage.
type Hub struct {
	clients   map[core.RunID]map[chan ports.ProgressEvent]bool
	history   map[core.RunID][]ports.ProgressEvent
	order     []core.RunID
	clientsMu sync.RWMutex

	register   chan client
	unregister chan client
	broadcast  chan ports.ProgressEvent
	done       chan struct{}
	closeOnce  sync.Once

	keepAlive time.Duration
	logger    *internal.Logger
}

var _ ports.ProgressSink = (*Hub)(nil)

// NewHub starts a hub; keepAlive <= 0 uses 30s pings
func NewHub(keepAlive time.Duration) *Hub {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	h := &Hub{
		clients:    make(map[core.RunID]map[chan ports.ProgressEvent]bool),
		history:    make(map[core.RunID][]ports.ProgressEvent),
		register:   make(chan client, 10),
		unregister: make(chan client, 10),
		broadcast:  make(chan ports.ProgressEvent, 256),
		done:       make(chan struct{}),
		keepAlive:  keepAlive,
		logger:     internal.DefaultLogger.With("sse"),
	}
	go h.run()
	return h
}

// Close stops the hub loop and ends open streams
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clientsMu.Lock()
			if h.clients[c.runID] == nil {
				h.clients[c.runID] = make(map[chan ports.ProgressEvent]bool)
			}
			h.clients[c.runID][c.channel] = true
			for _, event := range h.history[c.runID] {
				c.channel <- event
			}
			h.logger.Debug("client registered for run %s (total clients: %d)", c.runID, len(h.clients[c.runID]))
			h.clientsMu.Unlock()

		case c := <-h.unregister:
			h.clientsMu.Lock()
			if clients, ok := h.clients[c.runID]; ok {
				delete(clients, c.channel)
				if len(clients) == 0 {
					delete(h.clients, c.runID)
				}
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.Lock()
			h.remember(event)
			for ch := range h.clients[event.RunID] {
				select {
				case ch <- event:
				default:
					h.logger.Warn("client channel full for run %s, skipping %s", event.RunID, event.Stage)
				}
			}
			h.clientsMu.Unlock()

		case <-h.done:
			return
		}
	}
}

// remember appends to the run history, evicting the oldest run when full.
// Callers hold clientsMu.
func (h *Hub) remember(event ports.ProgressEvent) {
	past, seen := h.history[event.RunID]
	if !seen {
		h.order = append(h.order, event.RunID)
		if len(h.order) > historyRuns {
			delete(h.history, h.order[0])
			h.order = h.order[1:]
		}
	}
	if len(past) < historyPerRun {
		h.history[event.RunID] = append(past, event)
	}
}

// Publish implements ports.ProgressSink. Events are dropped when the hub is
// saturated or closed.
func (h *Hub) Publish(event ports.ProgressEvent) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping %s for run %s", event.Stage, event.RunID)
	}
}

// ActiveRuns returns runs with connected clients
func (h *Hub) ActiveRuns() []core.RunID {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	runs := make([]core.RunID, 0, len(h.clients))
	for runID := range h.clients {
		runs = append(runs, runID)
	}
	return runs
}

// ClientCount returns the number of connected clients for a run
func (h *Hub) ClientCount(runID core.RunID) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[runID])
}

// HandleSSE streams the events of run :id until the completed stage
func (h *Hub) HandleSSE(c *gin.Context) {
	runID := core.RunID(c.Param("id"))
	if runID.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run id required"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	cl := client{runID: runID, channel: make(chan ports.ProgressEvent, clientBuffer)}
	select {
	case h.register <- cl:
	case <-h.done:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "progress hub closed"})
		return
	case <-ctx.Done():
		return
	}
	defer func() {
		select {
		case h.unregister <- cl:
		case <-h.done:
		}
	}()

	c.Stream(func(w io.Writer) bool {
		select {
		case event := <-cl.channel:
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event: %v", err)
				return true
			}
			c.SSEvent("progress", string(payload))
			return event.Stage != ports.StageCompleted

		case <-time.After(h.keepAlive):
			c.SSEvent("ping", `{"status":"alive","timestamp":"`+time.Now().UTC().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		case <-h.done:
			return false
		}
	})
}

// NewRouter exposes the hub under /v1/events
func NewRouter(h *Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/v1/events", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"active_runs": h.ActiveRuns()})
	})
	r.GET("/v1/events/:id", h.HandleSSE)
	return r
}
