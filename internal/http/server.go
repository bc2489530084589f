// Package http serves the dashboard page, the upload endpoints and the
// chart-ready JSON series.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"findash/internal/auth"
	"findash/internal/log"
	"findash/internal/middleware/ratelimit"
	"findash/internal/middleware/security"
	"findash/internal/middleware/trace"
	"findash/internal/services"
	"findash/internal/session"
	"findash/internal/sheets"
	appweb "findash/web"
)

// Options configure a Server. Zero values pick defaults.
type Options struct {
	Addr               string
	Version            string
	Debug              bool
	Currency           string
	SessionTTL         time.Duration
	RateLimitPerMinute int
	// TrustedProxies are CIDRs whose forwarding headers name the client.
	TrustedProxies []string

	// Gate decides who may use the dashboard; nil admits everyone.
	Gate auth.Gate
	// Sheets is the Google Spreadsheet source; nil when not configured.
	Sheets sheets.WorkbookSource
	// Uploads lists journaled uploads; nil when the journal cannot list.
	Uploads sheets.JournalLister
	// Ready is an optional dependency probe for /readyz.
	Ready func(ctx context.Context) error
	// Now overrides the wall clock.
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	store     *session.Store
	uploads   *services.UploadService
	opts      Options
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	startedAt time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options, store *session.Store, uploads *services.UploadService, logger *log.Logger) *Server {
	if opts.Gate == nil {
		opts.Gate = auth.Open{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Currency == "" {
		opts.Currency = "EUR"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		store:     store,
		uploads:   uploads,
		opts:      opts,
		logger:    logger,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:  security.NewDetector(logger),
		startedAt: opts.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /template.xlsx", s.handleTemplate)

	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /import/sheets", s.handleImportSheets)
	mux.HandleFunc("POST /reset", s.handleReset)

	mux.HandleFunc("GET /api/networth", s.handleNetWorth)
	mux.HandleFunc("GET /api/monthly", s.handleMonthly)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/budget", s.handleBudget)
	mux.HandleFunc("GET /api/insights", s.handleInsights)
	mux.HandleFunc("GET /api/filters", s.handleFilters)
	mux.HandleFunc("GET /api/uploads", s.handleUploads)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, logger, http.MethodPost)(h)
	h = auth.Require(opts.Gate, logger, "/healthz", "/readyz")(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// sessionID returns the caller's session, issuing a new cookie when the
// request carries none or an invalid one.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(session.CookieName); err == nil && session.ValidID(c.Value) {
		return c.Value
	}
	c := &http.Cookie{
		Name:     session.CookieName,
		Value:    session.NewID(),
		Path:     "/",
		MaxAge:   int(s.opts.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, c)
	// later lookups within the same request must see the same session
	others := r.Cookies()
	r.Header.Del("Cookie")
	for _, o := range others {
		if o.Name != session.CookieName {
			r.AddCookie(o)
		}
	}
	r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	return c.Value
}
