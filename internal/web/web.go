package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"venuecal/internal/calendar"
	"venuecal/internal/clock"
	"venuecal/internal/config"
	appLog "venuecal/internal/log"
	"venuecal/internal/metrics"
)

// Server renders venue calendars as HTML pages, JSON and iCalendar.
type Server struct {
	cfg     *config.Config
	svc     *calendar.Service
	clock   clock.Clock
	metrics *metrics.Metrics
	pages   *template.Template
}

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// NewServer constructs a new Server. clk nil means the system clock in the
// service's display zone; m may be nil to disable /metrics.
func NewServer(cfg *config.Config, svc *calendar.Service, clk clock.Clock, m *metrics.Metrics) *Server {
	if clk == nil {
		clk = clock.NewSystem(svc.Location())
	}
	return &Server{
		cfg:     cfg,
		svc:     svc,
		clock:   clk,
		metrics: m,
		pages:   pages,
	}
}

// Handler returns the router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)

	r.Route("/venues/{venue}", func(r chi.Router) {
		r.Get("/", s.handleVenueIndex)
		r.Get("/week", s.handleWeekPage)
		r.Get("/agenda", s.handleAgendaPage)
		r.Get("/logo", s.handleLogo)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/venues", s.handleVenues)
		r.Get("/venues/{venue}/week", s.handleWeekJSON)
		r.Get("/venues/{venue}/agenda", s.handleAgendaJSON)
		r.Get("/venues/{venue}/events.ics", s.handleExport)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Handle("/static/*", s.staticFileServer())

	return r
}

// ListenAndServe serves Handler on cfg.Listen until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards every route except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="venuecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static files not available", http.StatusServiceUnavailable)
		})
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) countRender(view, format string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Renders.WithLabelValues(view, format).Inc()
}
