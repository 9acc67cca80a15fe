package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/morezero/mcp-servers/pkg/heartbeat"
)

const defaultSSEWriteTimeout = 5 * time.Second

// handleSSE opens a heartbeat session on the response stream. The session ends when
// the client disconnects (request context), a write fails or the server shuts down.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A peer that stops reading must not pin the session: every frame gets a write
	// deadline, and a missed deadline ends the session as a write error.
	rc := http.NewResponseController(w)
	writeTimeout := s.cfg.SSEWriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultSSEWriteTimeout
	}
	deadlines := true

	err := s.sessions.Serve(r.Context(), func(e heartbeat.Event) error {
		if deadlines {
			if err := rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				deadlines = false
				slog.Warn(fmt.Sprintf("%s - SSE write deadline unavailable: %v", logPrefix, err))
			}
		}
		return writeEvent(w, rc, e)
	})
	if err != nil && !errors.Is(err, heartbeat.ErrShutdown) {
		slog.Debug(fmt.Sprintf("%s - SSE stream ended: %v", logPrefix, err))
	}
}

// writeEvent frames e as "data: <json>\n\n" and flushes it, reporting flush errors.
func writeEvent(w http.ResponseWriter, rc *http.ResponseController, e heartbeat.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
