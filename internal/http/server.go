// Package http is the JSON API over the record store and the forecast
// engine. Routing, status codes, and auth header parsing live here; the
// engine stays a pure data transform underneath.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"undertow/internal/auth"
	"undertow/internal/cache"
	"undertow/internal/core"
	"undertow/internal/forecast"
	"undertow/internal/log"
	"undertow/internal/storage"
)

// Store is the record CRUD surface the handlers need. The forecast engine
// reads through its own forecast.Source instead; handlers never hand the
// engine anything but a user ID.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (storage.User, error)
	FindUserByEmail(ctx context.Context, email string) (storage.User, error)
	GetUser(ctx context.Context, id int64) (storage.User, error)

	CreateRecurring(ctx context.Context, userID int64, def core.RecurringDefinition) (core.RecurringDefinition, error)
	ListRecurring(ctx context.Context, userID int64) ([]core.RecurringDefinition, error)
	UpdateRecurring(ctx context.Context, userID int64, def core.RecurringDefinition) error
	DeleteRecurring(ctx context.Context, userID, id int64) error

	UpsertPaycheckStream(ctx context.Context, userID int64, ps core.PaycheckStream) error
	GetPaycheckStream(ctx context.Context, userID int64) (*core.PaycheckStream, error)

	UpsertStartingBalance(ctx context.Context, userID int64, amount core.Money) error
	GetStartingBalance(ctx context.Context, userID int64) (*core.StartingBalance, error)

	CreateTransaction(ctx context.Context, userID int64, tx core.Transaction) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, from, to time.Time) ([]core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id int64) error
}

// Exporter pushes a month projection to an external spreadsheet.
type Exporter interface {
	ExportMonth(ctx context.Context, proj core.MonthProjection) error
}

type Server struct {
	http.Server

	store    Store
	builder  *forecast.Builder
	authSvc  *auth.Service
	exporter Exporter // nil when export is not configured
	logger   *log.Logger

	rateLimiter *rateLimiter

	monthCache *cache.TTLCache[core.MonthProjection]
	yearCache  *cache.TTLCache[core.YearForecast]
	cacheMgr   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store Store, builder *forecast.Builder, authSvc *auth.Service, exporter Exporter, cacheSize int, cacheTTL time.Duration, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		store:       store,
		builder:     builder,
		authSvc:     authSvc,
		exporter:    exporter,
		logger:      logger,
		rateLimiter: newRateLimiter(),
		monthCache:  cache.NewTTL[core.MonthProjection](cacheSize, cacheTTL),
		yearCache:   cache.NewTTL[core.YearForecast](cacheSize, cacheTTL),
		cacheMgr:    cache.NewManager(),
	}
	s.cacheMgr.Register(s.monthCache)
	s.cacheMgr.Register(s.yearCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	r := mux.NewRouter()
	r.Use(s.withRequestLogging)

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(authSvc.Middleware)
	protected.HandleFunc("/auth/verify", s.handleVerify).Methods(http.MethodGet)

	protected.HandleFunc("/recurring", s.handleListRecurring).Methods(http.MethodGet)
	protected.HandleFunc("/recurring", s.handleCreateRecurring).Methods(http.MethodPost)
	protected.HandleFunc("/recurring/{id:[0-9]+}", s.handleUpdateRecurring).Methods(http.MethodPut)
	protected.HandleFunc("/recurring/{id:[0-9]+}", s.handleDeleteRecurring).Methods(http.MethodDelete)

	protected.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	protected.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	protected.HandleFunc("/transactions/{id:[0-9]+}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	protected.HandleFunc("/paycheck", s.handleGetPaycheck).Methods(http.MethodGet)
	protected.HandleFunc("/paycheck", s.handlePutPaycheck).Methods(http.MethodPut)

	protected.HandleFunc("/balance", s.handleGetBalance).Methods(http.MethodGet)
	protected.HandleFunc("/balance", s.handlePutBalance).Methods(http.MethodPut)

	protected.HandleFunc("/calendar/month", s.handleCalendarMonth).Methods(http.MethodGet)
	protected.HandleFunc("/calendar/year", s.handleCalendarYear).Methods(http.MethodGet)
	protected.HandleFunc("/calendar/export", s.handleCalendarExport).Methods(http.MethodPost)

	s.Server = http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRequestLogging adds security headers, rate limiting, and request
// logging around every route.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientIP(r)
		requestID := generateRequestID()

		s.logger.InfoContext(r.Context(), "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		// Rate limit writes only; projection reads are already cached
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded, try again later", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.logger.InfoContext(r.Context(), "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Simple in-memory rate limiter, per client IP.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[ip]
	if !exists {
		rl.clients[ip] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	// Reset the window after a minute of quiet
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= 60
}
