// Package http exposes the ledger over a JSON API. Handlers stay thin:
// they parse, delegate to the engine or summarizer, and translate domain
// errors into status codes.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"frugal/internal/cache"
	"frugal/internal/connectivity"
	"frugal/internal/core"
	"frugal/internal/ledger"
	"frugal/internal/summary"
)

// SummaryPublisher hands summary recomputation off to a worker. A nil
// publisher makes POST /summaries/run compute inline instead.
type SummaryPublisher interface {
	PublishSummaryRun(ctx context.Context, ownerID string, period core.Period) error
}

type Server struct {
	http.Server
	engine     *ledger.Engine
	summarizer *summary.Summarizer
	monitor    *connectivity.Monitor
	publisher  SummaryPublisher
	ownerID    string

	rateLimiter *rateLimiter

	// Read-side caches; any write purges them wholesale since a single
	// transaction touches account, category and summary views at once.
	txCache      *cache.LRUCache[[]core.Transaction]
	summaryCache *cache.LRUCache[[]core.MonthlySummary]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr, ownerID string, engine *ledger.Engine, summarizer *summary.Summarizer, monitor *connectivity.Monitor, publisher SummaryPublisher) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		engine:       engine,
		summarizer:   summarizer,
		monitor:      monitor,
		publisher:    publisher,
		ownerID:      ownerID,
		rateLimiter:  newRateLimiter(),
		txCache:      cache.NewLRUCache[[]core.Transaction](100, 5*time.Minute),
		summaryCache: cache.NewLRUCache[[]core.MonthlySummary](20, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.txCache)
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.withSecurityHeaders(s.handleReady))
	mux.HandleFunc("GET /status", s.withSecurityHeaders(s.handleStatus))

	mux.HandleFunc("GET /transactions", s.withSecurityHeaders(s.handleListTransactions))
	mux.HandleFunc("POST /transactions", s.withSecurityHeaders(s.handleCreateTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", s.withSecurityHeaders(s.handleDeleteTransaction))

	mux.HandleFunc("GET /pending", s.withSecurityHeaders(s.handleListPending))
	mux.HandleFunc("DELETE /pending/{seq}", s.withSecurityHeaders(s.handleDiscardPending))

	mux.HandleFunc("GET /accounts", s.withSecurityHeaders(s.handleListAccounts))
	mux.HandleFunc("POST /accounts", s.withSecurityHeaders(s.handleCreateAccount))
	mux.HandleFunc("PUT /accounts/{id}", s.withSecurityHeaders(s.handleUpdateAccount))
	mux.HandleFunc("DELETE /accounts/{id}", s.withSecurityHeaders(s.handleDeleteAccount))

	mux.HandleFunc("GET /categories", s.withSecurityHeaders(s.handleListCategories))
	mux.HandleFunc("POST /categories", s.withSecurityHeaders(s.handleCreateCategory))
	mux.HandleFunc("DELETE /categories/{id}", s.withSecurityHeaders(s.handleDeleteCategory))

	mux.HandleFunc("GET /summaries", s.withSecurityHeaders(s.handleListSummaries))
	mux.HandleFunc("POST /summaries/run", s.withSecurityHeaders(s.handleRunSummary))

	return s
}

// withSecurityHeaders adds security headers, rate limiting, and request logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Rate limiting applies to mutations only; reads are cache-backed.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports readiness once the local queue store answers.
// The remote being down is not a readiness failure: the whole point of
// the queue is to keep accepting writes without it.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.PendingCount(r.Context(), s.ownerID); err != nil {
		writeError(w, http.StatusServiceUnavailable, "local store unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := s.engine.PendingCount(r.Context(), s.ownerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		State:        string(s.monitor.State()),
		PendingCount: pending,
	})
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
