// Package api serves the dashboard view of the tracker over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/parent-watch/internal/geo"
	"github.com/sells-group/parent-watch/internal/store"
	"github.com/sells-group/parent-watch/internal/tracker"
)

// Tracker is the read side of the polling harness.
type Tracker interface {
	Snapshot() []tracker.SubjectStatus
	Subject(name string) (tracker.SubjectStatus, bool)
	Zones() []geo.Zone
}

// History lists persisted alerts.
type History interface {
	ListAlerts(ctx context.Context, filter store.AlertFilter) ([]store.AlertRecord, error)
}

// Options configures the router.
type Options struct {
	// History is optional; without it /api/alerts answers 503.
	History        History
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

type handler struct {
	tracker Tracker
	history History
}

// NewRouter builds the dashboard routes.
func NewRouter(t Tracker, opts Options) http.Handler {
	h := &handler{tracker: t, history: opts.History}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/subjects", h.listSubjects)
		r.Get("/subjects/{name}", h.getSubject)
		r.Get("/zones", h.zones)
		r.Get("/map", h.mapView)
		r.Get("/alerts", h.listAlerts)
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listSubjects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

func (h *handler) getSubject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s, ok := h.tracker.Subject(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown subject "+name)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handler) zones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, geo.ZoneCollection(h.tracker.Zones()))
}

// mapView returns zones and subjects with a known position as one
// FeatureCollection.
func (h *handler) mapView(w http.ResponseWriter, _ *http.Request) {
	fc := geo.ZoneCollection(h.tracker.Zones())
	for _, s := range h.tracker.Snapshot() {
		if s.Position == nil {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       "subject:" + s.Name,
			Geometry: s.Position.Point(),
			Properties: map[string]any{
				"name":   s.Name,
				"status": s.Status,
				"stale":  s.Stale,
				"alert":  s.Alert != nil,
			},
		})
	}
	writeJSON(w, http.StatusOK, fc)
}

func (h *handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "alert history is disabled")
		return
	}

	q := r.URL.Query()
	filter := store.AlertFilter{Subject: q.Get("subject")}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		filter.ActiveOnly = active
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	records, err := h.history.ListAlerts(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list alerts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if records == nil {
		records = []store.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
