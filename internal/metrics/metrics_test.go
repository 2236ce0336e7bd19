package metrics

import (
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsRequests(t *testing.T) {
    RegisterDefault()
    h := Middleware(func(*http.Request) string { return "/v1/test" }, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusTeapot)
    }))
    before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/v1/test", "418"))
    h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/test?x=1", nil))
    after := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/v1/test", "418"))
    if after-before != 1 { t.Fatalf("expected one request, got %v", after-before) }
}

func TestHandlerExposesSolverMetrics(t *testing.T) {
    RegisterDefault()
    SolverGenerations.WithLabelValues("greedy").Add(3)
    SolverBestCost.WithLabelValues("run-1").Set(42)
    SolverOperatorWeight.WithLabelValues("run-1", "ruin.neighbour").Set(0.5)
    rr := httptest.NewRecorder()
    Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
    body := rr.Body.String()
    for _, want := range []string{"solver_generations_total", "solver_best_cost{run=\"run-1\"} 42", "operator=\"ruin.neighbour\""} {
        if !strings.Contains(body, want) { t.Fatalf("metrics output misses %q", want) }
    }
    ForgetRun("run-1")
    rr = httptest.NewRecorder()
    Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
    if strings.Contains(rr.Body.String(), "run-1") { t.Fatalf("run gauges were not dropped") }
}
