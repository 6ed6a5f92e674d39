package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/store"
)

type (
	Identity interface {
		SignUp(ctx context.Context, r core.Registration) (core.Session, error)
		SignIn(ctx context.Context, c core.Credentials) (core.Session, error)
		SignOut(ctx context.Context, token string) error
		CurrentUser(ctx context.Context, token string) (*core.Session, error)
	}

	Transactions interface {
		Add(ctx context.Context, session *core.Session, in core.TransactionInput) (string, error)
		Update(ctx context.Context, session *core.Session, id string, in core.TransactionInput) error
		Delete(ctx context.Context, session *core.Session, id string) error
		List(ctx context.Context, session *core.Session) ([]core.Transaction, error)
		Get(ctx context.Context, session *core.Session, id string) (core.Transaction, error)
	}

	Statistics interface {
		Statistics(ctx context.Context, session *core.Session) (core.Statistics, error)
	}

	Chat interface {
		Respond(ctx context.Context, session *core.Session, text string) string
		History(ctx context.Context, session *core.Session) []core.ChatMessage
	}
)

// Deps are the collaborators the handlers call. Ready may be nil.
type Deps struct {
	Identity     Identity
	Transactions Transactions
	Statistics   Statistics
	Chat         Chat
	Ready        func(ctx context.Context) error
	Logger       *log.Logger
	// RateLimitPerMinute applies to write requests per client address.
	RateLimitPerMinute int
	// TrustedProxies are CIDRs, beyond the private ranges, whose
	// X-Forwarded-For header is believed.
	TrustedProxies []string
	// CacheStats, when set, is reported on /metrics.
	CacheStats func() cache.Stats
}

type Server struct {
	http.Server

	deps     Deps
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. Call Shutdown to stop it and release the rate limiter.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	detector := security.NewDetector()
	for _, cidr := range deps.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}

	s := &Server{
		Server: http.Server{
			Addr:           addr,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		deps:     deps,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/me", s.requireSession(s.handleMe))

	mux.HandleFunc("GET /categories", handleCategories)

	mux.HandleFunc("GET /transactions", s.requireSession(s.handleListTransactions))
	mux.HandleFunc("POST /transactions", s.requireSession(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions/{id}", s.requireSession(s.handleGetTransaction))
	mux.HandleFunc("PUT /transactions/{id}", s.requireSession(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", s.requireSession(s.handleDeleteTransaction))

	mux.HandleFunc("GET /statistics", s.requireSession(s.handleStatistics))

	mux.HandleFunc("POST /chat", s.withOptionalSession(s.handleChat))
	mux.HandleFunc("GET /chat/history", s.requireSession(s.handleChatHistory))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limitWrites := s.limiter.Middleware(detector.ExtractClientIP, nil)

	var h http.Handler = mux
	h = writeOnly(limitWrites, h)
	h = detector.Middleware(h)
	h = headers.Middleware(h)
	h = s.tracer.Middleware(h)
	s.Handler = h
	return s
}

// writeOnly applies mw to state-changing requests only.
func writeOnly(mw func(http.Handler) http.Handler, next http.Handler) http.Handler {
	limited := mw(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

// Shutdown stops the listener and the background rate-limit cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("not ready").Write(w)
			return
		}
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

// writeError maps service errors onto status codes. Unknown errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case core.IsValidation(err):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, core.ErrUnauthenticated):
		UnauthorizedError("authentication required").Write(w)
	case errors.Is(err, store.ErrNotFound):
		NotFoundError("not found").Write(w)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Request failed", err, op, nil)
		InternalServerError("internal error").Write(w)
	}
}
