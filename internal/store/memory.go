package store

import (
    "context"
    "slices"
    "sync"
    "time"

    "github.com/google/uuid"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu        sync.Mutex
    runs      map[string]Run                  // id -> run
    runsTen   map[string][]string             // tenant -> run ids, creation order
    snapshots map[string][]Snapshot           // run id -> snapshots
    subs      map[string][]Subscription       // tenant -> subscriptions
    // Webhooks queue state
    deliveries         map[string]*memDelivery // id -> delivery state
    deliveriesByTenant map[string][]string     // tenant -> delivery ids
    deliveryOrder      []string
    dlq                []string                // dead-lettered delivery ids
}

func NewMemory() *Memory {
    return &Memory{
        runs: map[string]Run{},
        runsTen: map[string][]string{},
        snapshots: map[string][]Snapshot{},
        subs: map[string][]Subscription{},
        deliveries: map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    next        time.Time
    LatencyMs   int
    DeliveredAt *time.Time
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) CreateRun(ctx context.Context, run Run) (Run, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if run.ID == "" { run.ID = uuid.New().String() }
    if run.Status == "" { run.Status = RunQueued }
    if run.CreatedAt.IsZero() { run.CreatedAt = time.Now().UTC() }
    m.runs[run.ID] = run
    m.runsTen[run.TenantID] = append(m.runsTen[run.TenantID], run.ID)
    return run, nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, id string) (Run, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[id]
    if !ok || r.TenantID != tenantID { return Run{}, ErrNotFound }
    return r, nil
}

// ListRuns pages runs in creation order. The cursor is the last returned id.
func (m *Memory) ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]Run, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    limit = clampLimit(limit)
    ids := m.runsTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    out := []Run{}
    next := ""
    for _, id := range ids[start:] {
        r := m.runs[id]
        if status != "" && r.Status != status { continue }
        if len(out) == limit { next = out[len(out)-1].ID; break }
        r.Problem = nil
        out = append(out, r)
    }
    return out, next, nil
}

func (m *Memory) UpdateRun(ctx context.Context, run Run) error {
    m.mu.Lock(); defer m.mu.Unlock()
    cur, ok := m.runs[run.ID]
    if !ok || cur.TenantID != run.TenantID { return ErrNotFound }
    run.CreatedAt = cur.CreatedAt
    if run.Problem == nil { run.Problem = cur.Problem }
    m.runs[run.ID] = run
    return nil
}

func (m *Memory) AppendSnapshots(ctx context.Context, runID string, snapshots []Snapshot) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.runs[runID]; !ok { return ErrNotFound }
    m.snapshots[runID] = append(m.snapshots[runID], snapshots...)
    return nil
}

func (m *Memory) ListSnapshots(ctx context.Context, runID string) ([]Snapshot, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.runs[runID]; !ok { return nil, ErrNotFound }
    return slices.Clone(m.snapshots[runID]), nil
}

func (m *Memory) CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    sub.ID = uuid.New().String()
    m.subs[sub.TenantID] = append(m.subs[sub.TenantID], sub)
    return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []Subscription
    for _, s := range m.subs[tenantID] {
        if slices.Contains(s.Events, eventType) { out = append(out, s) }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    limit = clampLimit(limit)
    list := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i, s := range list {
            if s.ID == cursor { start = i + 1; break }
        }
    }
    end := min(start+limit, len(list))
    items := append([]Subscription{}, list[start:end]...)
    next := ""
    if end < len(list) && len(items) > 0 { next = items[len(items)-1].ID }
    return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    arr := m.subs[tenantID]
    out := make([]Subscription, 0, len(arr))
    for _, s := range arr { if s.ID != id { out = append(out, s) } }
    if len(out) == len(arr) { return ErrNotFound }
    m.subs[tenantID] = out
    return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    dk := computeDedupKey(payload)
    for _, id := range m.deliveriesByTenant[tenantID] {
        d := m.deliveries[id]
        if d.EventType == eventType && d.URL == url && computeDedupKey(d.Payload) == dk { return d.ID, nil }
    }
    id := uuid.New().String()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"}, next: time.Now()}
    m.deliveries[id] = d
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    m.deliveryOrder = append(m.deliveryOrder, id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    out := []WebhookDelivery{}
    for _, id := range m.deliveryOrder {
        d := m.deliveries[id]
        if (d.Status == "pending" || d.Status == "retry") && !d.next.After(now) {
            out = append(out, d.WebhookDelivery)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = "delivered"
        now := time.Now()
        d.DeliveredAt = &now
        d.NextAttemptAt = nil
    } else {
        d.Status = "retry"
        d.LastError = lastError
        if nextAttemptAt != nil { d.next = *nextAttemptAt } else { d.next = time.Now().Add(1 * time.Minute) }
        next := d.next
        d.NextAttemptAt = &next
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.Status = "failed"
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    d.NextAttemptAt = nil
    m.dlq = append(m.dlq, id)
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]WebhookDelivery, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    limit = clampLimit(limit)
    ids := m.deliveriesByTenant[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    out := []WebhookDelivery{}
    next := ""
    for _, id := range ids[start:] {
        d := m.deliveries[id]
        if status != "" && d.Status != status { continue }
        if len(out) == limit { next = out[len(out)-1].ID; break }
        out = append(out, d.WebhookDelivery)
    }
    return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil || d.TenantID != tenantID { return ErrNotFound }
    d.Status = "pending"
    d.next = time.Now()
    d.NextAttemptAt = nil
    m.dlq = slices.DeleteFunc(m.dlq, func(v string) bool { return v == id })
    return nil
}
