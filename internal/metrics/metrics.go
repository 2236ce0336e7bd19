package metrics

import (
    "bufio"
    "errors"
    "net"
    "net/http"
    "strconv"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    // Registry is the dedicated Prometheus registry for the service
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )

    // SolverGenerations counts refinement generations by population algorithm
    SolverGenerations = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "solver_generations_total", Help: "Refinement generations run."},
        []string{"population"},
    )
    // SolverImprovements counts generations which found a new best individual
    SolverImprovements = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "solver_improvements_total", Help: "Generations which improved the best known solution."},
        []string{"population"},
    )
    // SolverGenerationDuration records wall time of a generation in seconds
    SolverGenerationDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "solver_generation_duration_seconds", Help: "Generation duration in seconds.", Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10)},
        []string{"population"},
    )
    // SolverBestCost is the best total cost of the latest generation per run
    SolverBestCost = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{Name: "solver_best_cost", Help: "Best known total cost."},
        []string{"run"},
    )
    // SolverPopulationSize is the amount of retained individuals per run
    SolverPopulationSize = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{Name: "solver_population_size", Help: "Individuals retained by the population."},
        []string{"run"},
    )
    // SolverSelectionPhase is 0 initial, 1 exploration, 2 exploitation
    SolverSelectionPhase = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{Name: "solver_selection_phase", Help: "Current selection phase (0 initial, 1 exploration, 2 exploitation)."},
        []string{"run"},
    )
    // SolverOperatorWeight is the adaptive roulette weight of each mutation operator
    SolverOperatorWeight = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{Name: "solver_operator_weight", Help: "Adaptive weight of a mutation operator."},
        []string{"run", "operator"},
    )
    // SolveRuns counts finished runs by status
    SolveRuns = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "solve_runs_total", Help: "Finished solve runs by status."},
        []string{"status"},
    )
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests, HTTPDuration)
        Registry.MustRegister(WebhookDeliveries, WebhookLatency)
        Registry.MustRegister(SolverGenerations, SolverImprovements, SolverGenerationDuration)
        Registry.MustRegister(SolverBestCost, SolverPopulationSize, SolverSelectionPhase, SolverOperatorWeight, SolveRuns)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once

// Handler serves the service registry.
func Handler() http.Handler {
    return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ForgetRun drops per-run gauges once a run is finished.
func ForgetRun(runID string) {
    SolverBestCost.DeleteLabelValues(runID)
    SolverPopulationSize.DeleteLabelValues(runID)
    SolverSelectionPhase.DeleteLabelValues(runID)
    SolverOperatorWeight.DeletePartialMatch(prometheus.Labels{"run": runID})
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(code int) { r.status = code; r.ResponseWriter.WriteHeader(code) }

// Flush keeps SSE streaming working behind the middleware.
func (r *statusRecorder) Flush() {
    if f, ok := r.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

// Hijack lets websocket upgrades pass through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := r.ResponseWriter.(http.Hijacker)
    if !ok { return nil, nil, errors.New("response writer does not support hijacking") }
    r.status = http.StatusSwitchingProtocols
    return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware records request counts and durations. Paths are normalized by the caller's route
// function to keep label cardinality bounded.
func Middleware(route func(*http.Request) string, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        status := strconv.Itoa(rec.status)
        path := route(r)
        HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
        HTTPDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
    })
}
