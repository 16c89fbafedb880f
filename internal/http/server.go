// Package http serves the web UI and the JSON chart API on top of the
// account service.
package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"stacksight/internal/auth"
	"stacksight/internal/core"
	"stacksight/internal/db"
	applog "stacksight/internal/log"
	"stacksight/internal/middleware/ratelimit"
	"stacksight/internal/middleware/security"
	"stacksight/internal/middleware/trace"
	"stacksight/internal/services"
	appweb "stacksight/web"
)

// AccountService is the application layer the handlers drive;
// *services.AccountService implements it.
type AccountService interface {
	SignUp(ctx context.Context, username, password, email string) error
	Login(ctx context.Context, username, password string) (string, error)
	AddAccount(ctx context.Context, username string, in services.AccountInput) error
	RecordUpdate(ctx context.Context, username string, in services.UpdateInput) (core.BalanceUpdate, error)
	Accounts(ctx context.Context, username string) ([]string, error)
	AccountInfo(ctx context.Context, username, accountNum string) (core.AccountInfo, error)
	LatestBalances(ctx context.Context, username string, accounts []string) ([]core.BalanceRow, error)
	AllBalances(ctx context.Context, username string, accounts []string) ([]core.BalanceRow, error)
	SeparatedChart(ctx context.Context, username string, accounts []string) ([]core.Series, error)
	CombinedChart(ctx context.Context, username string, accounts []string, by string) ([]core.Series, error)
	Lookups(ctx context.Context) (core.Lookups, error)
}

// Pinger reports whether the database is reachable; *db.Engine implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheStatser exposes lookup cache counters for /metrics.
type CacheStatser interface {
	Stats() db.CacheStats
}

// Options configures NewServer.
type Options struct {
	Addr               string
	AllowedOrigins     []string
	TrustedProxies     []string
	RateLimitPerMinute int
	QueryTimeout       time.Duration
	CookieSecure       bool

	// Optional collaborators.
	Ready       Pinger
	LookupCache CacheStatser
}

type Server struct {
	http.Server
	svc       AccountService
	sessions  *auth.SessionManager
	templates *template.Template
	logger    *applog.Logger
	opts      Options

	trace    *trace.Middleware
	detector *security.Detector
	limiter  *ratelimit.Limiter

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options, svc AccountService, sessions *auth.SessionManager, logger *applog.Logger) (*Server, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 10 * time.Second
	}
	if opts.TrustedProxies == nil {
		opts.TrustedProxies = security.DefaultTrustedProxies
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:       svc,
		sessions:  sessions,
		templates: tmpl,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		opts:      opts,
		detector:  detector,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		started:   time.Now(),
	}
	s.trace = trace.NewMiddleware(s.logger, detector.ExtractClientIP)
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.trace.Handler)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware)
	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "HX-Request", "HX-Target", "HX-Current-URL", trace.HeaderRequestID},
			ExposedHeaders:   []string{"HX-Trigger", "HX-Redirect", trace.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		r.With(security.StaticCache(3600)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.withQueryTimeout)
		r.Use(s.loadSession)
		r.Use(security.NoStore)

		r.Get("/", s.handleHome)
		r.Get("/signup", s.handleSignupPage)
		r.Get("/login", s.handleLoginPage)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit))
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.With(s.requireUser).Post("/accounts", s.handleCreateAccount)
			r.With(s.requireUser).Post("/updates", s.handleRecordUpdate)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/tables", s.handleTables)
			r.Get("/charts", s.handleChartsPage)
			r.Get("/insert", s.handleInsertPage)
			r.Get("/api/charts/separated", s.handleSeparatedChart)
			r.Get("/api/charts/combined", s.handleCombinedChart)
			r.Get("/api/accounts/{num}", s.handleAccountInfo)
			r.Get("/api/lookups", s.handleLookups)
		})
	})

	return r
}

// withQueryTimeout bounds every database round trip a handler makes.
func (s *Server) withQueryTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.QueryTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
		WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again later.").
		TriggerErrorNotification("Too many requests").
		Write(w)
}

// Shutdown stops accepting requests and the background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func parseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

var templateFuncs = template.FuncMap{
	"money": func(m core.Money) string { return m.String() },
	"month": func(t time.Time) string { return t.Format("2006-01") },
	"contains": func(list []string, v string) bool {
		for _, s := range list {
			if s == v {
				return true
			}
		}
		return false
	},
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldOperation, applog.OpRender,
			"template", name,
			applog.FieldError, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
