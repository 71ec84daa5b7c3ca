package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the game server. Each
// Metrics owns its registry so several games can coexist in one process.
type Metrics struct {
	game      *Game
	startTime time.Time
	registry  *prometheus.Registry

	playersConnected prometheus.Gauge
	connectionsTotal *prometheus.CounterVec
	commandsTotal    *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	panicsTotal      prometheus.Counter
	storeFailures    prometheus.Counter
	pathSearches     prometheus.Counter
	pathLength       prometheus.Histogram
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the game.
func NewMetrics(game *Game, startTime time.Time) *Metrics {
	m := &Metrics{
		game:      game,
		startTime: startTime,
		registry:  prometheus.NewRegistry(),
		playersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinymud_players_connected",
			Help: "Number of players with an active session.",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinymud_connections_total",
			Help: "Total connections since server start.",
		}, []string{"transport"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinymud_commands_total",
			Help: "Commands dispatched, by canonical command name.",
		}, []string{"command"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinymud_command_failures_total",
			Help: "Commands that ended with player feedback, by failure kind.",
		}, []string{"kind"}),
		panicsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tinymud_command_panics_total",
			Help: "Command panics recovered by the dispatcher.",
		}),
		storeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tinymud_store_failures_total",
			Help: "Store errors that terminated a connection.",
		}),
		pathSearches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tinymud_path_searches_total",
			Help: "Path searches run by @path.",
		}),
		pathLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tinymud_path_length_rooms",
			Help:    "Rooms on each path found by @path.",
			Buckets: prometheus.LinearBuckets(1, 2, 8),
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinymud_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinymud_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinymud_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.playersConnected,
		m.connectionsTotal,
		m.commandsTotal,
		m.failuresTotal,
		m.panicsTotal,
		m.storeFailures,
		m.pathSearches,
		m.pathLength,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)

	return m
}

// Update refreshes all gauge metrics from current game state.
func (m *Metrics) Update() {
	m.playersConnected.Set(float64(m.game.Sessions.Len()))
	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Registry exposes the underlying registry for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		h.ServeHTTP(w, r)
	})
}
