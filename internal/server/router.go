package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// maxBodyBytes bounds action request bodies.
const maxBodyBytes = 1 << 20

// Handler builds the chi router with all middleware and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	if s.cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.RequestID)
	r.Use(s.recovererMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware())

	r.Get("/", s.handleStatus)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/openapi.json", s.handleOpenAPI)
	r.Get("/docs", s.handleDocs)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/mcp/sse", s.handleSSE)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		for _, route := range s.routes {
			r.Post(route.Path, s.handleAction(route.Action))
		}
		r.Post("/actions/{action}", func(w http.ResponseWriter, req *http.Request) {
			s.invoke(w, req, chi.URLParam(req, "action"))
		})
	})

	return r
}

func (s *Server) recovererMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error(fmt.Sprintf("%s - panic recovered: %v request_id=%s\n%s",
					logPrefix, rec, chimw.GetReqID(r.Context()), debug.Stack()))
				writeDetail(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info(fmt.Sprintf("%s - %s %s %d %s request_id=%s",
			logPrefix, r.Method, r.URL.Path, ww.Status(), time.Since(start), chimw.GetReqID(r.Context())))
	})
}

func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:       s.cfg.CORSAllowedOrigins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"*"},
		OptionsSuccessStatus: http.StatusNoContent,
	})
	return c.Handler
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r), time.Now()) {
			s.metrics.RateLimited()
			slog.Warn(fmt.Sprintf("%s - rate limit exceeded for %s on %s", logPrefix, clientKey(r), r.URL.Path))
			writeDetail(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller for rate limiting: the TCP peer, or the forwarded
// client address when TrustProxyHeaders lets RealIP rewrite RemoteAddr.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
