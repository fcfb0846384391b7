package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"wealthwise/internal/cache"
	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	wlog "wealthwise/internal/log"
	"wealthwise/internal/metrics"
	"wealthwise/internal/middleware/auth"
	"wealthwise/internal/middleware/ratelimit"
	"wealthwise/internal/middleware/security"
	"wealthwise/internal/middleware/trace"
	"wealthwise/internal/services"
)

const cacheCleanupInterval = 10 * time.Minute

// Reconciler runs the monthly ledger reconciliation for one user.
type Reconciler interface {
	Reconcile(ctx context.Context, userID int64, target cycle.Key, now time.Time) (services.Result, error)
}

// Pinger reports whether the ledger store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the application services behind the API.
type Services struct {
	Profiles   *services.ProfileService
	Categories *services.CategoryService
	Entries    *services.EntryService
	Analytics  *services.AnalyticsService
	Reconciler Reconciler
	Store      Pinger
}

// Options tune the middleware chain.
type Options struct {
	Logger             *wlog.Logger
	Location           *time.Location
	RateLimitPerMinute int
	// JWTSecret enables bearer-token auth on /api/users/{id}.
	JWTSecret string
	// BlockSuspicious rejects requests the detector flags.
	BlockSuspicious bool
	// Caches are cleaned periodically while the server runs.
	Caches []cache.Cleaner
}

type Server struct {
	http.Server
	svc      Services
	location *time.Location
	now      func() time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = wlog.FromContext(context.Background())
	}

	detector := security.NewDetector(opts.BlockSuspicious)
	s := &Server{
		svc:      svc,
		location: opts.Location,
		now:      time.Now,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		caches:   cache.NewManager(opts.Caches...),
	}
	s.caches.Start(context.Background(), cacheCleanupInterval)

	var verifier *auth.Verifier
	if opts.JWTSecret != "" {
		verifier = auth.NewVerifier(opts.JWTSecret)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.Logger.WithComponent(wlog.ComponentHTTP), verifier),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// routes builds the router. Middleware runs in this order: trace, request
// logger, security headers, suspicious request detection, rate limit, and
// auth on per-user routes.
func (s *Server) routes(logger *wlog.Logger, verifier *auth.Verifier) http.Handler {
	r := mux.NewRouter()

	chain := []mux.MiddlewareFunc{
		s.tracer.Middleware,
		wlog.Middleware(logger, trace.RequestID),
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		s.detector.Middleware,
		s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
			TooManyRequestsError().Write(w)
		}),
	}
	r.Use(chain...)

	// Router middleware only wraps matched routes.
	wrap := func(h http.Handler) http.Handler {
		for i := len(chain) - 1; i >= 0; i-- {
			h = chain[i](h)
		}
		return h
	}
	r.NotFoundHandler = wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("not found").Write(w)
	}))
	r.MethodNotAllowedHandler = wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		MethodNotAllowedError().Write(w)
	}))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)

	user := api.PathPrefix("/users/{id:[0-9]+}").Subrouter()
	if verifier != nil {
		user.Use(verifier.Middleware)
	}
	user.HandleFunc("", s.handleGetUser).Methods(http.MethodGet)
	user.HandleFunc("", s.handleUpdateUser).Methods(http.MethodPatch)
	user.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	user.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	user.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)

	user.HandleFunc("/transactions", s.handleListEntries).Methods(http.MethodGet)
	user.HandleFunc("/transactions", s.handleCreateEntry).Methods(http.MethodPost)
	user.HandleFunc("/transactions/{txid:[0-9]+}", s.handleGetEntry).Methods(http.MethodGet)
	user.HandleFunc("/transactions/{txid:[0-9]+}", s.handleUpdateEntry).Methods(http.MethodPut)
	user.HandleFunc("/transactions/{txid:[0-9]+}", s.handleDeleteEntry).Methods(http.MethodDelete)

	user.HandleFunc("/analytics/sum-by-category", s.handleSumByCategory).Methods(http.MethodGet)
	user.HandleFunc("/analytics/monthly", s.handleMonthly).Methods(http.MethodGet)

	user.HandleFunc("/reconcile", s.handleReconcile).Methods(http.MethodPost)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

// handleReady pings the ledger store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store == nil {
		NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Store.Ping(ctx); err != nil {
		wlog.FromContext(ctx).ErrorContext(ctx, "Readiness check failed",
			wlog.FieldErrorType, wlog.ErrorTypeDatabase,
			wlog.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ok", "database": "ok"}).Write(w)
}

// today returns the current instant in the configured location.
func (s *Server) today() time.Time {
	return s.now().In(s.location)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// entryInput converts a validated request into the service input.
func entryInput(req entryRequest) (services.EntryInput, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return services.EntryInput{}, err
	}
	return services.EntryInput{
		CategoryID:  req.CategoryID,
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		Date:        date,
		Kind:        core.Kind(req.Kind),
	}, nil
}
