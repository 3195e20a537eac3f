package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"creditledger/internal/auth"
	"creditledger/internal/core"
	applog "creditledger/internal/log"
	"creditledger/internal/middleware/ratelimit"
	"creditledger/internal/middleware/security"
	"creditledger/internal/middleware/trace"
)

// CreditService is the ledger as the API sees it.
type CreditService interface {
	List(ctx context.Context) ([]core.Credit, error)
	ListByMonth(ctx context.Context, year, month int) ([]core.Credit, error)
	Get(ctx context.Context, id int64) (core.Credit, error)
	Create(ctx context.Context, in core.CreditInput) (core.Credit, error)
	Update(ctx context.Context, id int64, p core.CreditPatch) (core.Credit, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Summary(ctx context.Context, year, month int) (core.MonthSummary, error)
	Compare(ctx context.Context, year, month int, storeTotal core.Money) (core.Comparison, error)
	Ping(ctx context.Context) error
}

// Options wires a Server. Credits and Gate are required.
type Options struct {
	Credits CreditService
	Gate    auth.Gate
	Logger  *applog.Logger

	CookieSecure bool
	// LoginRateLimit is the number of login attempts per client per minute.
	LoginRateLimit int
	// ServiceName labels OpenTelemetry spans.
	ServiceName string
}

type Server struct {
	http.Server
	credits      CreditService
	gate         auth.Gate
	cookieSecure bool
	logger       *applog.Logger
	events       *applog.StructuredLogger
	loginLimiter *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware
	startedAt    time.Time

	shutdownOnce sync.Once
}

func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "creditledger"
	}

	s := &Server{
		credits:      opts.Credits,
		gate:         opts.Gate,
		cookieSecure: opts.CookieSecure,
		logger:       logger,
		events:       applog.NewStructuredLogger(logger),
		loginLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.LoginRateLimit}),
		detector:     security.NewDetector(),
		startedAt:    time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	api := s.routes()
	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("/", api)

	var handler http.Handler = root
	handler = otelhttp.NewHandler(handler, serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.Middleware(logger, func(r *http.Request) string {
		return trace.RequestID(r.Context())
	})(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", methodHandlers{http.MethodGet: s.handleHealth})
	mux.Handle("/readyz", methodHandlers{http.MethodGet: s.handleReady})

	loginLimited := s.loginLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Too many login attempts, try again later").Write(w)
	})
	mux.Handle("/login", methodHandlers{http.MethodPost: loginLimited(http.HandlerFunc(s.handleLogin)).ServeHTTP})
	mux.Handle("/logout", methodHandlers{http.MethodPost: s.handleLogout})
	mux.Handle("/auth/status", methodHandlers{http.MethodGet: s.requireAuth(s.handleAuthStatus)})

	mux.Handle("/credits", methodHandlers{
		http.MethodGet:  s.requireAuth(s.handleListCredits),
		http.MethodPost: s.requireAuth(s.handleCreateCredit),
	})
	mux.Handle("/credits/month/{year}/{month}", methodHandlers{
		http.MethodGet: s.requireAuth(s.handleListMonth),
	})
	mux.Handle("/credits/summary", methodHandlers{
		http.MethodGet: s.requireAuth(s.handleSummary),
	})
	mux.Handle("/credits/compare", methodHandlers{
		http.MethodGet: s.requireAuth(s.handleCompare),
	})
	mux.Handle("/credits/{id}", methodHandlers{
		http.MethodGet:    s.requireAuth(s.handleGetCredit),
		http.MethodPatch:  s.requireAuth(s.handleUpdateCredit),
		http.MethodDelete: s.requireAuth(s.handleDeleteCredit),
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Not found").Write(w)
	})
	return mux
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.loginLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)

		counts := s.tracer.Counts()
		var flagged int64
		for _, n := range s.detector.Hits() {
			flagged += n
		}
		s.logger.Info("HTTP server stopped",
			"requests", counts.Total,
			"client_errors", counts.ClientError,
			"server_errors", counts.ServerError,
			"suspicious_requests", flagged,
			"login_rejections", s.loginLimiter.Rejected())
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the ledger store is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.credits.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "Service unavailable").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
