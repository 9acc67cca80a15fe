package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/morezero/mcp-servers/pkg/commsutil"
)

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Service   string   `json:"service"`
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Service   string  `json:"service"`
	Timestamp float64 `json:"timestamp"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// Endpoints returns the advertised endpoints: the service routes, then /health and /mcp/sse.
func (s *Server) Endpoints() []string {
	out := make([]string, 0, len(s.routes)+2)
	for _, r := range s.routes {
		out = append(out, r.Path)
	}
	return append(out, "/health", "/mcp/sse")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		s.renderHome(w)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Service:   s.cfg.ServiceName,
		Status:    "running",
		Version:   s.cfg.ServiceVersion,
		Endpoints: s.Endpoints(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   s.cfg.ServiceName,
		Timestamp: s.clock.Now(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.invoke(w, r, action)
	}
}

// invoke decodes the body as the argument mapping, rejects missing required fields
// with 400 and otherwise answers 200 with the envelope.
func (s *Server) invoke(w http.ResponseWriter, r *http.Request, action string) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	args, err := commsutil.DecodeArgs(body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	if err := s.disp.Validate(action, args); err != nil {
		slog.Debug(fmt.Sprintf("%s - rejected %s: %v", logPrefix, action, err))
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, s.disp.Invoke(ctx, action, args))
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - response encode: %v", logPrefix, err))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}
