// Package api serves the latest snapshot over HTTP alongside /metrics.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doridoridoriand/wifiwatch/internal/log"
	"github.com/doridoridoriand/wifiwatch/internal/plot"
	"github.com/doridoridoriand/wifiwatch/internal/signal"
	"github.com/doridoridoriand/wifiwatch/internal/state"
)

// SnapshotSource returns the most recent snapshot, if one exists yet.
type SnapshotSource interface {
	Latest() (state.Snapshot, bool)
}

// NetworkView is the JSON shape of one tracked network.
type NetworkView struct {
	Identifier string         `json:"identifier"`
	Channel    int            `json:"channel,omitempty"`
	Level      float64        `json:"level"`
	Unit       signal.Unit    `json:"unit"`
	Quality    signal.Quality `json:"quality"`
	Mean       *float64       `json:"mean,omitempty"`
	StdDev     *float64       `json:"stddev,omitempty"`
	Samples    int            `json:"samples"`
	LastSeen   time.Time      `json:"last_seen"`
	Connected  bool           `json:"connected"`
}

// ConnectionView is the JSON shape of the associated network.
type ConnectionView struct {
	Connected  bool           `json:"connected"`
	Identifier string         `json:"identifier,omitempty"`
	Level      *float64       `json:"level,omitempty"`
	Unit       signal.Unit    `json:"unit"`
	Quality    signal.Quality `json:"quality,omitempty"`
	Status     string         `json:"status"`
}

// Handler holds the dependencies of the HTTP endpoints.
type Handler struct {
	source    SnapshotSource
	gatherer  prometheus.Gatherer
	logger    *log.Logger
	startTime time.Time
}

// NewHandler creates the endpoint set. A nil gatherer disables /metrics.
func NewHandler(source SnapshotSource, gatherer prometheus.Gatherer, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Discard()
	}
	return &Handler{
		source:    source,
		gatherer:  gatherer,
		logger:    logger.With("api"),
		startTime: time.Now(),
	}
}

// Router wires every endpoint.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	if h.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	router.HandleFunc("/health", h.HealthHandler).Methods("GET")
	router.HandleFunc("/api/snapshot", h.SnapshotHandler).Methods("GET")
	router.HandleFunc("/api/networks", h.NetworksHandler).Methods("GET")
	router.HandleFunc("/api/networks/{identifier}", h.NetworkHandler).Methods("GET")
	router.HandleFunc("/api/connection", h.ConnectionHandler).Methods("GET")
	router.HandleFunc("/chart.png", h.ChartHandler).Methods("GET")
	router.Use(h.loggingMiddleware)
	return router
}

// HealthHandler reports liveness and the age of the latest snapshot.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	}
	if snap, ok := h.source.Latest(); ok {
		body["seq"] = snap.Seq
		body["run_id"] = snap.RunID
		body["last_tick"] = snap.Time
	} else {
		body["status"] = "starting"
	}
	respondJSON(w, body, http.StatusOK)
}

// SnapshotHandler returns the full latest snapshot.
func (h *Handler) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w)
	if !ok {
		return
	}
	respondJSON(w, snap, http.StatusOK)
}

// NetworksHandler returns one summary per tracked network, strongest first.
func (h *Handler) NetworksHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w)
	if !ok {
		return
	}
	views := make([]NetworkView, 0, len(snap.Networks))
	for _, series := range snap.Networks {
		if view, ok := networkView(snap, series); ok {
			views = append(views, view)
		}
	}
	respondJSON(w, views, http.StatusOK)
}

// NetworkHandler returns the full series of one network.
func (h *Handler) NetworkHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w)
	if !ok {
		return
	}
	identifier := mux.Vars(r)["identifier"]
	series, ok := snap.Series(identifier)
	if !ok {
		respondError(w, "unknown network: "+identifier, http.StatusNotFound)
		return
	}
	view, _ := networkView(snap, series)
	respondJSON(w, struct {
		NetworkView
		History []signal.Sample `json:"history"`
	}{view, series.Samples}, http.StatusOK)
}

// ConnectionHandler returns the associated network, if any.
func (h *Handler) ConnectionHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w)
	if !ok {
		return
	}
	view := ConnectionView{
		Connected:  snap.Connection.Connected(),
		Identifier: snap.Connection.Identifier,
		Level:      snap.Connection.Level,
		Unit:       snap.Unit,
		Status:     snap.InterfaceStatus,
	}
	if view.Level != nil {
		view.Quality = signal.QualityOf(snap.Unit, *view.Level)
	}
	respondJSON(w, view, http.StatusOK)
}

// ChartHandler renders the latest snapshot as a PNG. kind selects
// "series" (default) or "gaussian".
func (h *Handler) ChartHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w)
	if !ok {
		return
	}
	query := r.URL.Query()
	opts := plot.Options{
		Width:  queryInt(query.Get("width"), 0, 4000),
		Height: queryInt(query.Get("height"), 0, 4000),
		Limit:  queryInt(query.Get("limit"), 0, 100),
	}

	render := plot.Render
	switch query.Get("kind") {
	case "", "series":
	case "gaussian":
		render = plot.RenderGaussians
	default:
		respondError(w, "unknown chart kind: "+query.Get("kind"), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, snap, opts); err != nil {
		if errors.Is(err, plot.ErrNoData) {
			respondError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		h.logger.LogError("chart", err, map[string]interface{}{"kind": query.Get("kind")})
		respondError(w, "failed to render chart", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) latest(w http.ResponseWriter) (state.Snapshot, bool) {
	snap, ok := h.source.Latest()
	if !ok {
		respondError(w, "no snapshot yet", http.StatusServiceUnavailable)
	}
	return snap, ok
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("request", map[string]interface{}{
			"method":  r.Method,
			"path":    r.URL.Path,
			"elapsed": time.Since(start).String(),
		})
	})
}

func networkView(snap state.Snapshot, series state.NetworkSeries) (NetworkView, bool) {
	latest, ok := series.Latest()
	if !ok {
		return NetworkView{}, false
	}
	view := NetworkView{
		Identifier: series.Identifier,
		Channel:    series.Channel,
		Level:      latest.Level,
		Unit:       snap.Unit,
		Quality:    signal.QualityOf(snap.Unit, latest.Level),
		Samples:    len(series.Samples),
		LastSeen:   series.LastSeen,
		Connected:  snap.Connection.Identifier == series.Identifier,
	}
	if series.Estimated {
		mean, sd := series.Estimate.Mean, series.Estimate.StdDev
		view.Mean, view.StdDev = &mean, &sd
	}
	return view, true
}

func queryInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return context.Canceled
		}
		return err
	}
}
