package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Event mirrors one pipeline progress event out to websocket watchers. SSE
// remains the authoritative per-run channel; the hub exists so other clients
// viewing the same project can follow a run they did not start.
type Event struct {
	ProjectID   uint64 `json:"project_id"`
	AnimationID uint64 `json:"animation_id,omitempty"`
	Type        string `json:"type"`
	Payload     any    `json:"payload,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

type client struct {
	projectID uint64
	conn      *websocket.Conn
	send      chan []byte
}

// Hub fans pipeline events out to websocket clients grouped by project.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[uint64]map[*client]struct{})}
}

// BroadcastProject sends an event to every watcher of the given project.
// Slow consumers are dropped rather than allowed to stall the pipeline.
func (h *Hub) BroadcastProject(projectID uint64, animationID uint64, eventType string, payload any) {
	if h == nil {
		return
	}

	encoded, err := json.Marshal(Event{
		ProjectID:   projectID,
		AnimationID: animationID,
		Type:        eventType,
		Payload:     payload,
		Timestamp:   time.Now().Unix(),
	})
	if err != nil {
		log.Printf("realtime: marshal event failed: %v", err)
		return
	}

	h.mu.RLock()
	watchers := h.clients[projectID]
	stale := make([]*client, 0)
	for c := range watchers {
		select {
		case c.send <- encoded:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.remove(c)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	watchers, ok := h.clients[c.projectID]
	if !ok {
		watchers = make(map[*client]struct{})
		h.clients[c.projectID] = watchers
	}
	watchers[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	watchers, ok := h.clients[c.projectID]
	if !ok {
		return
	}
	if _, ok := watchers[c]; ok {
		delete(watchers, c)
		close(c.send)
		if len(watchers) == 0 {
			delete(h.clients, c.projectID)
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterRoutes exposes the websocket endpoint for project watchers.
func RegisterRoutes(router *gin.Engine, hub *Hub) {
	router.GET("/realtime/projects/:id", func(c *gin.Context) {
		projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || projectID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
			return
		}
		hub.serve(c.Writer, c.Request, projectID)
	})
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, projectID uint64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: websocket upgrade failed: %v", err)
		return
	}

	watcher := &client{projectID: projectID, conn: conn, send: make(chan []byte, 256)}
	h.add(watcher)

	go func() {
		for msg := range watcher.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		conn.Close()
	}()

	// Consume control frames until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(watcher)
}
