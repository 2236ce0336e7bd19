package store

import (
    "context"
    "encoding/json"
    "errors"
    "time"
)

// Run statuses.
const (
    RunQueued    = "queued"
    RunRunning   = "running"
    RunSucceeded = "succeeded"
    RunFailed    = "failed"
    RunCancelled = "cancelled"
)

// Run is a persisted solve request and its outcome.
type Run struct {
    ID          string          `json:"id"`
    TenantID    string          `json:"tenantId"`
    Status      string          `json:"status"`
    Config      json.RawMessage `json:"config,omitempty"`
    Problem     json.RawMessage `json:"-"`
    Solution    json.RawMessage `json:"solution,omitempty"`
    Cost        float64         `json:"cost"`
    Unassigned  int             `json:"unassigned"`
    Generations int             `json:"generations"`
    Error       string          `json:"error,omitempty"`
    CreatedAt   time.Time       `json:"createdAt"`
    StartedAt   *time.Time      `json:"startedAt,omitempty"`
    FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
}

// Finished reports whether the run reached a terminal status.
func (r Run) Finished() bool {
    return r.Status == RunSucceeded || r.Status == RunFailed || r.Status == RunCancelled
}

// Snapshot is the best cost of a run after a generation.
type Snapshot struct {
    Generation     int     `json:"generation"`
    BestCost       float64 `json:"bestCost"`
    Phase          string  `json:"phase"`
    PopulationSize int     `json:"populationSize"`
    ElapsedMs      int64   `json:"elapsedMs"`
}

// Subscription receives webhooks for the listed event types.
type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}

type WebhookDelivery struct {
    ID             string     `json:"id"`
    TenantID       string     `json:"tenantId"`
    SubscriptionID string     `json:"subscriptionId,omitempty"`
    EventType      string     `json:"eventType"`
    URL            string     `json:"url"`
    Secret         string     `json:"-"`
    Payload        []byte     `json:"-"`
    Status         string     `json:"status"`
    Attempts       int        `json:"attempts"`
    NextAttemptAt  *time.Time `json:"nextAttemptAt,omitempty"`
    LastError      string     `json:"lastError,omitempty"`
    ResponseCode   int        `json:"responseCode,omitempty"`
}

// Store is the persistence interface used by the API server.
type Store interface {
    // Runs
    CreateRun(ctx context.Context, run Run) (Run, error)
    GetRun(ctx context.Context, tenantID, id string) (Run, error)
    ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]Run, string, error)
    UpdateRun(ctx context.Context, run Run) error
    AppendSnapshots(ctx context.Context, runID string, snapshots []Snapshot) error
    ListSnapshots(ctx context.Context, runID string) ([]Snapshot, error)

    // Subscriptions
    CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]WebhookDelivery, string, error)
    RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

    Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

func clampLimit(limit int) int {
    if limit <= 0 || limit > 500 { return 100 }
    return limit
}
