/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind the kiosk proxy
  3. Logger:     zap request logging (logger.HTTPMiddleware)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the board frontend

ROUTE GROUPS:
  /api/*          JSON API (see handlers.go)
  /metrics        Prometheus metrics
  /healthz        Liveness probe
  /*              Static board frontend

STATIC FILE SERVING:
  Serves the board frontend from ./static when present, otherwise a
  minimal index of the API.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/backorder-board/logger"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	Metrics        http.Handler
	StaticDir      string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.HTTPMiddleware(log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/pending-orders", h.PendingOrders)
		r.Get("/stats", h.Stats)
		r.Get("/refresh", h.Refresh)

		r.Post("/complete-order", h.CompleteOrder)
		r.Post("/delete-order", h.DeleteOrder)

		r.Get("/completed", h.CompletedReport)
		r.Route("/reports", func(r chi.Router) {
			r.Get("/dates", h.ReportDates)
			r.Get("/export", h.ExportReport)
		})

		r.Route("/tracking", func(r chi.Router) {
			r.Get("/status", h.TrackingStatus)
			r.Post("/rebuild", h.RebuildTracking)
		})

		r.Route("/connection", func(r chi.Router) {
			r.Get("/status", h.ConnectionStatus)
			r.Get("/test", h.TestConnection)
			r.Post("/toggle-offline", h.ToggleOffline)
		})
	})

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	r.Get("/healthz", h.Health)

	staticDir := opts.StaticDir
	if staticDir == "" {
		staticDir = "./static"
	}
	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			fullPath := filepath.Join(staticDir, filepath.Clean(r.URL.Path))
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	} else {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Backorder Board</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Backorder Board API</h1>
<p>The board frontend is not installed. Put it in <code>./static</code>.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/pending-orders">/api/pending-orders</a> - Pending orders by product</li>
<li><a href="/api/stats">/api/stats</a> - Client counts per product</li>
<li><a href="/api/completed">/api/completed</a> - Today's completions by employee</li>
<li><a href="/api/reports/dates">/api/reports/dates</a> - Days with completions</li>
<li><a href="/api/tracking/status">/api/tracking/status</a> - Tracking index</li>
</ul>
</body>
</html>`))
		})
	}

	return r
}
