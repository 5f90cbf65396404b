// Package metrics provides Prometheus instrumentation for the game server.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tycoon_clicks_total",
		Help: "Manual clicks resolved",
	})

	CriticalHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tycoon_critical_hits_total",
		Help: "Clicks that rolled a critical hit",
	})

	LuckyClicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tycoon_lucky_clicks_total",
		Help: "Clicks that rolled a lucky bonus",
	})

	UpgradesPurchased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tycoon_upgrades_purchased_total",
		Help: "Upgrade levels bought, by upgrade",
	}, []string{"upgrade"})

	BossesDefeated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tycoon_bosses_defeated_total",
		Help: "Boss encounters won, by boss",
	}, []string{"boss"})

	Prestiges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tycoon_prestiges_total",
		Help: "Prestige resets performed",
	})

	// ActionRejections counts player actions refused by the rules, by action and reason.
	ActionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tycoon_action_rejections_total",
		Help: "Player actions rejected by game rules",
	}, []string{"action", "reason"})

	Saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tycoon_saves_total",
		Help: "Save attempts, by result",
	}, []string{"result"})

	Loads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tycoon_loads_total",
		Help: "Player loads, by source (main, backup, fresh)",
	}, []string{"source"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tycoon_active_sessions",
		Help: "Players currently held in memory",
	})

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tycoon_websocket_clients",
		Help: "Connected event stream clients",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tycoon_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tycoon_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency, labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack passes through so the event stream can upgrade to a websocket.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
