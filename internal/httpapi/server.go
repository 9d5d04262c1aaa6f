// Package httpapi exposes the dispatcher over HTTP: a JSON API, a WebSocket
// conversation endpoint and a small web form.
package httpapi

import (
	_ "embed"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"home-dispatch/internal/application"
	"home-dispatch/internal/telemetry"
)

//go:embed index.html
var indexHTML []byte

type Options struct {
	// RequestsPerMinute and Burst bound command submissions per client IP.
	// Zero disables rate limiting.
	RequestsPerMinute int
	Burst             int
	MaxAudioBytes     int64
	// HistoryTurns bounds each WebSocket session's history; 0 keeps none.
	HistoryTurns int
}

type Server struct {
	dispatcher *application.Dispatcher
	stt        application.SpeechToText
	limiter    *RateLimiter
	logger     *slog.Logger
	opts       Options
}

func NewServer(dispatcher *application.Dispatcher, stt application.SpeechToText, logger *slog.Logger, opts Options) *Server {
	if stt == nil {
		stt = &application.NoopSTT{}
	}
	if opts.MaxAudioBytes <= 0 {
		opts.MaxAudioBytes = 10 << 20
	}

	s := &Server{
		dispatcher: dispatcher,
		stt:        stt,
		logger:     logger,
		opts:       opts,
	}
	if opts.RequestsPerMinute > 0 {
		s.limiter = NewRateLimiter(opts.RequestsPerMinute, opts.Burst)
	}
	return s
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", telemetry.MetricsHandler())

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/catalog", s.handleCatalog)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Post("/api/command", s.handleCommand)
		r.Post("/api/audio", s.handleAudio)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// NewHTTPServer wraps the router with the timeouts used in production.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		telemetry.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		s.logger.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
