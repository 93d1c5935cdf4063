package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"tablero/internal/amqp"
	"tablero/internal/cache"
	"tablero/internal/core"
	"tablero/internal/log"
	"tablero/internal/middleware/ratelimit"
	"tablero/internal/middleware/security"
	"tablero/internal/middleware/trace"
	"tablero/internal/store"
)

// Repository reads and appends sheet rows.
type Repository interface {
	FetchAll(ctx context.Context) ([][]string, error)
	Append(ctx context.Context, e core.Entry) (string, error)
}

// StateReader is the read side of the aggregation store.
type StateReader interface {
	Transactions() ([]core.Transaction, uint64)
	Status() store.ConnectionStatus
	Version() uint64
	Subscribe(fn func(store.State)) (unsubscribe func())
}

// Refresher triggers an immediate sheet refresh.
type Refresher interface {
	Refresh(ctx context.Context) bool
	Fetching() bool
}

// AppendPublisher announces appended rows to other instances.
type AppendPublisher interface {
	PublishTransactionAppended(ctx context.Context, msg *amqp.TransactionAppendedMessage) error
}

// Config holds the server settings.
type Config struct {
	Addr              string
	ViewCacheSize     int
	ViewCacheTTL      time.Duration
	RequestsPerMinute int
	// InstanceID tags published messages so this instance can skip its own.
	InstanceID string
	// BackendMode is reported by /api/status.
	BackendMode string
	// AfterAppendTimeout bounds the refresh and publish that follow an append.
	AfterAppendTimeout time.Duration
	// TrustedProxies are CIDRs added to the private networks whose
	// forwarding headers name the client.
	TrustedProxies []string
}

// Deps are the collaborators of the server. Publisher may be nil.
type Deps struct {
	Repository Repository
	State      StateReader
	Refresher  Refresher
	Publisher  AppendPublisher
	Logger     *log.Logger
}

type Server struct {
	http.Server
	config    Config
	repo      Repository
	state     StateReader
	refresher Refresher
	publisher AppendPublisher
	logger    *log.Logger
	events    *log.StructuredLogger

	reads singleflight.Group

	viewCache     *cache.LRUCache[[]byte]
	cacheManager  *cache.Manager
	cachedVersion atomic.Uint64
	unsubscribe   func()

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	background   sync.WaitGroup
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.ViewCacheSize <= 0 {
		cfg.ViewCacheSize = 256
	}
	if cfg.ViewCacheTTL <= 0 {
		cfg.ViewCacheTTL = 5 * time.Minute
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = ratelimit.DefaultConfig().RequestsPerMinute
	}
	if cfg.AfterAppendTimeout <= 0 {
		cfg.AfterAppendTimeout = 30 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		config:    cfg,
		repo:      deps.Repository,
		state:     deps.State,
		refresher: deps.Refresher,
		publisher: deps.Publisher,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),

		viewCache:    cache.NewLRUCache[[]byte](cfg.ViewCacheSize, cfg.ViewCacheTTL),
		cacheManager: cache.NewManager(),

		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RequestsPerMinute,
			Methods:           []string{http.MethodPost},
		}),
		detector: security.NewDetector(),
	}
	for _, cidr := range cfg.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	// A new snapshot makes every cached view unreachable; drop them.
	s.unsubscribe = deps.State.Subscribe(func(st store.State) {
		if s.cachedVersion.Swap(st.Version) == st.Version {
			return
		}
		if n := s.viewCache.Purge(); n > 0 {
			s.logger.Debug("View cache purged", log.FieldVersion, st.Version, "entries", n)
		}
	})
	s.cacheManager.Register(s.viewCache)
	s.cacheManager.StartCleanup(cfg.ViewCacheTTL)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit)(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// Proxy
	mux.HandleFunc("GET /sheets/read", s.handleSheetsRead)
	mux.HandleFunc("POST /sheets/append", s.handleSheetsAppend)

	// Dashboard
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/evolution", s.handleEvolution)
	mux.HandleFunc("GET /api/insights", s.handleInsights)
	mux.HandleFunc("GET /api/months", s.handleMonths)
	mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	mux.HandleFunc("GET /api/scenario", s.handleScenario)
}

// Shutdown stops accepting requests, waits for post-append work and stops
// the background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)

		done := make(chan struct{})
		go func() {
			s.background.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn("Shutdown timeout reached with post-append work pending")
		}

		s.unsubscribe()
		s.cacheManager.Stop()
		s.limiter.Stop()
	})

	return shutdownErr
}

// Metrics reports the counters of the middleware and the view cache.
type Metrics struct {
	Requests  trace.Metrics             `json:"requests"`
	RateLimit ratelimit.Metrics         `json:"rateLimit"`
	Security  security.DetectionMetrics `json:"security"`
	ViewCache cache.Stats               `json:"viewCache"`
}

func (s *Server) metrics() Metrics {
	return Metrics{
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
		ViewCache: s.viewCache.Stats(),
	}
}
