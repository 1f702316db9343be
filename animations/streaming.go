package animations

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// Progress event payloads for a pipeline run. Events are emitted in order:
// start, then frame_start / frame_complete / frame_error per frame, then a
// terminal complete regardless of how many frames failed.
type startEvent struct {
	TotalFrames int `json:"totalFrames"`
}

type frameStartEvent struct {
	Index int `json:"index"`
}

type frameCompleteEvent struct {
	Index    int    `json:"index"`
	AssetID  uint64 `json:"assetId"`
	FilePath string `json:"filePath"`
}

type frameErrorEvent struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type completeEvent struct {
	TotalGenerated int `json:"totalGenerated"`
}

// sseHeaders prepares the response for server-sent events.
func sseHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache, no-transform")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
}

// streamEvent writes a single Server-Sent Event to the response writer.
func streamEvent(w gin.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

type sseWriter struct {
	writer  gin.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

func newSSEWriter(w gin.ResponseWriter, flusher http.Flusher) *sseWriter {
	return &sseWriter{writer: w, flusher: flusher}
}

func (w *sseWriter) Send(event string, payload any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return streamEvent(w.writer, w.flusher, event, payload)
}
