package api

import (
    "context"
    "errors"
    "io"
    "net/http"
    "strings"

    "k8s.io/klog/v2"

    "vrpcore/internal/config"
    "vrpcore/internal/store"
    "vrpcore/internal/webhooks"
)

const defaultTenant = "t_demo"

type Server struct {
    Store  store.Store
    Pub    *webhooks.Publisher
    Broker EventBroker
    Runs   *Runner
    Config config.ServerConfig
}

// NewServer creates a Server. If DatabaseURL is empty, uses the in-memory store; if RedisURL is
// empty or unreachable, uses the in-process broker.
func NewServer(cfg config.ServerConfig) (*Server, error) {
    var s store.Store
    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil {
            return nil, err
        }
        if cfg.Migrate {
            if err := sp.Migrate(context.Background()); err != nil {
                _ = sp.Close()
                return nil, err
            }
        }
        s = sp
    }
    // Broker selection
    var broker EventBroker
    if cfg.RedisURL != "" {
        rb, err := NewRedisBroker(cfg.RedisURL)
        if err != nil {
            klog.ErrorS(err, "Redis unavailable, using in-process broker")
            broker = NewBroker()
        } else {
            broker = rb
        }
    } else {
        broker = NewBroker()
    }
    pub := webhooks.NewPublisher(s)
    return &Server{
        Store:  s,
        Pub:    pub,
        Broker: broker,
        Runs:   NewRunner(s, broker, pub, cfg.Solver),
        Config: cfg,
    }, nil
}

// Routes registers the HTTP handlers on mux.
func (s *Server) Routes(mux *http.ServeMux) {
    // Runs
    mux.Handle("/v1/solve", RateLimit(s.Config.RateRPS, s.Config.RateBurst, http.HandlerFunc(s.SolveHandler)))
    mux.HandleFunc("/v1/runs", s.RunsHandler)
    mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /events, /snapshots, /chart
    mux.HandleFunc("/v1/runs/ws", s.RunsWSHandler)

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler)

    // Admin
    mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", s.WebhookDeliveryRetryHandler)

    // Health
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)
    mux.HandleFunc("/debug/vars", s.DebugJSON)
}

// RouteLabel maps a request path to its route pattern for metric labels.
func RouteLabel(r *http.Request) string {
    p := r.URL.Path
    switch {
    case p == "/v1/runs/ws":
        return p
    case strings.HasPrefix(p, "/v1/runs/"):
        parts := strings.Split(strings.TrimPrefix(p, "/v1/runs/"), "/")
        if len(parts) > 1 { return "/v1/runs/{id}/" + parts[1] }
        return "/v1/runs/{id}"
    case strings.HasPrefix(p, "/v1/subscriptions/"):
        return "/v1/subscriptions/{id}"
    case strings.HasPrefix(p, "/v1/admin/webhook-deliveries/"):
        return "/v1/admin/webhook-deliveries/{id}/retry"
    }
    switch p {
    case "/v1/solve", "/v1/runs", "/v1/subscriptions", "/v1/admin/webhook-deliveries", "/healthz", "/readyz", "/metrics", "/debug/vars":
        return p
    }
    return "other"
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
    tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
    if tenant == "" { tenant = defaultTenant }
    ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
    return ctx, tenant
}

type ctxKeyTenant struct{}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Config.WebhookMaxAttempts)
}

// Close cancels active runs, waits for their results and releases connections.
func (s *Server) Close(ctx context.Context) error {
    err := s.Runs.Shutdown(ctx)
    if cerr := s.Broker.Close(); cerr != nil { err = errors.Join(err, cerr) }
    if c, ok := s.Store.(io.Closer); ok {
        if cerr := c.Close(); cerr != nil { err = errors.Join(err, cerr) }
    }
    return err
}
