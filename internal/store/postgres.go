package store

import (
    "context"
    "crypto/sha256"
    "database/sql"
    "encoding/hex"
    "encoding/json"
    "errors"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"
)

// schema is applied by Migrate. Statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS solve_runs (
    id           uuid PRIMARY KEY,
    tenant_id    text NOT NULL,
    status       text NOT NULL,
    config       jsonb,
    problem      jsonb,
    solution     jsonb,
    cost         double precision NOT NULL DEFAULT 0,
    unassigned   integer NOT NULL DEFAULT 0,
    generations  integer NOT NULL DEFAULT 0,
    error        text,
    created_at   timestamptz NOT NULL DEFAULT now(),
    started_at   timestamptz,
    finished_at  timestamptz
);
CREATE INDEX IF NOT EXISTS solve_runs_tenant_idx ON solve_runs (tenant_id, id);

CREATE TABLE IF NOT EXISTS solve_snapshots (
    run_id          uuid NOT NULL REFERENCES solve_runs(id) ON DELETE CASCADE,
    generation      integer NOT NULL,
    best_cost       double precision NOT NULL,
    phase           text NOT NULL,
    population_size integer NOT NULL,
    elapsed_ms      bigint NOT NULL,
    PRIMARY KEY (run_id, generation)
);

CREATE TABLE IF NOT EXISTS subscriptions (
    id         uuid PRIMARY KEY,
    tenant_id  text NOT NULL,
    url        text NOT NULL,
    events     jsonb NOT NULL,
    secret     text,
    created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS webhook_deliveries (
    id              uuid PRIMARY KEY,
    tenant_id       text NOT NULL,
    subscription_id uuid,
    event_type      text NOT NULL,
    url             text NOT NULL,
    secret          text,
    payload         bytea NOT NULL,
    status          text NOT NULL,
    attempts        integer NOT NULL DEFAULT 0,
    next_attempt_at timestamptz,
    last_error      text,
    response_code   integer,
    latency_ms      integer,
    dedup_key       text NOT NULL,
    delivered_at    timestamptz,
    updated_at      timestamptz NOT NULL DEFAULT now(),
    UNIQUE (tenant_id, event_type, url, dedup_key)
);
`

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        _ = db.Close()
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates the tables used by the store.
func (p *Postgres) Migrate(ctx context.Context) error {
    _, err := p.db.ExecContext(ctx, schema)
    return err
}

const runColumns = `id::text, tenant_id, status, COALESCE(config, 'null'::jsonb), COALESCE(solution, 'null'::jsonb), cost, unassigned, generations, COALESCE(error,''), created_at, started_at, finished_at`

type scanner interface{ Scan(dest ...any) error }

func scanRun(row scanner) (Run, error) {
    var r Run
    var cfg, sol []byte
    var started, finished sql.NullTime
    if err := row.Scan(&r.ID, &r.TenantID, &r.Status, &cfg, &sol, &r.Cost, &r.Unassigned, &r.Generations, &r.Error, &r.CreatedAt, &started, &finished); err != nil {
        return Run{}, err
    }
    r.Config = nullableJSON(cfg)
    r.Solution = nullableJSON(sol)
    if started.Valid { t := started.Time; r.StartedAt = &t }
    if finished.Valid { t := finished.Time; r.FinishedAt = &t }
    return r, nil
}

func (p *Postgres) CreateRun(ctx context.Context, run Run) (Run, error) {
    if run.ID == "" { run.ID = uuid.New().String() }
    if run.Status == "" { run.Status = RunQueued }
    if run.CreatedAt.IsZero() { run.CreatedAt = time.Now().UTC() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO solve_runs (id, tenant_id, status, config, problem, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
        run.ID, run.TenantID, run.Status, jsonArg(run.Config), jsonArg(run.Problem), run.CreatedAt)
    if err != nil { return Run{}, err }
    return run, nil
}

func (p *Postgres) GetRun(ctx context.Context, tenantID, id string) (Run, error) {
    if _, err := uuid.Parse(id); err != nil { return Run{}, ErrNotFound }
    row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+`, COALESCE(problem, 'null'::jsonb) FROM solve_runs WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    var r Run
    var cfg, sol, problem []byte
    var started, finished sql.NullTime
    err := row.Scan(&r.ID, &r.TenantID, &r.Status, &cfg, &sol, &r.Cost, &r.Unassigned, &r.Generations, &r.Error, &r.CreatedAt, &started, &finished, &problem)
    if errors.Is(err, sql.ErrNoRows) { return Run{}, ErrNotFound }
    if err != nil { return Run{}, err }
    r.Config, r.Solution, r.Problem = nullableJSON(cfg), nullableJSON(sol), nullableJSON(problem)
    if started.Valid { t := started.Time; r.StartedAt = &t }
    if finished.Valid { t := finished.Time; r.FinishedAt = &t }
    return r, nil
}

func (p *Postgres) ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]Run, string, error) {
    limit = clampLimit(limit)
    q := `SELECT ` + runColumns + ` FROM solve_runs WHERE tenant_id=$1 AND ($2 = '' OR status=$2) AND ($3 = '' OR id::text > $3) ORDER BY id LIMIT $4`
    rows, err := p.db.QueryContext(ctx, q, tenantID, status, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []Run{}
    var last string
    for rows.Next() {
        r, err := scanRun(rows)
        if err != nil { return nil, "", err }
        out = append(out, r)
        last = r.ID
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run Run) error {
    res, err := p.db.ExecContext(ctx, `UPDATE solve_runs SET status=$3, solution=$4, cost=$5, unassigned=$6, generations=$7, error=$8, started_at=$9, finished_at=$10
        WHERE tenant_id=$1 AND id=$2`,
        run.TenantID, run.ID, run.Status, jsonArg(run.Solution), run.Cost, run.Unassigned, run.Generations, nullIfEmpty(run.Error), run.StartedAt, run.FinishedAt)
    if err != nil { return err }
    if n, err := res.RowsAffected(); err == nil && n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) AppendSnapshots(ctx context.Context, runID string, snapshots []Snapshot) error {
    if len(snapshots) == 0 { return nil }
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    for _, s := range snapshots {
        _, err := tx.ExecContext(ctx, `INSERT INTO solve_snapshots (run_id, generation, best_cost, phase, population_size, elapsed_ms) VALUES ($1,$2,$3,$4,$5,$6)
            ON CONFLICT (run_id, generation) DO NOTHING`, runID, s.Generation, s.BestCost, s.Phase, s.PopulationSize, s.ElapsedMs)
        if err != nil { return err }
    }
    return tx.Commit()
}

func (p *Postgres) ListSnapshots(ctx context.Context, runID string) ([]Snapshot, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT generation, best_cost, phase, population_size, elapsed_ms FROM solve_snapshots WHERE run_id=$1 ORDER BY generation`, runID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []Snapshot{}
    for rows.Next() {
        var s Snapshot
        if err := rows.Scan(&s.Generation, &s.BestCost, &s.Phase, &s.PopulationSize, &s.ElapsedMs); err != nil { return nil, err }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
    sub.ID = uuid.New().String()
    ev, _ := json.Marshal(sub.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, sub.ID, sub.TenantID, sub.URL, ev, nullIfEmpty(sub.Secret))
    if err != nil { return Subscription{}, err }
    return sub, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]Subscription, error) {
    ev, _ := json.Marshal([]string{eventType})
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, ev)
    if err != nil { return nil, err }
    defer rows.Close()
    return scanSubscriptions(rows, tenantID)
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]Subscription, string, error) {
    limit = clampLimit(limit)
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND ($2 = '' OR id::text > $2) ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out, err := scanSubscriptions(rows, tenantID)
    if err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = out[len(out)-1].ID }
    return out, next, nil
}

func scanSubscriptions(rows *sql.Rows, tenantID string) ([]Subscription, error) {
    out := []Subscription{}
    for rows.Next() {
        var s Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    if _, err := uuid.Parse(id); err != nil { return ErrNotFound }
    res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, err := res.RowsAffected(); err == nil && n == 0 { return ErrNotFound }
    return nil
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$3`, nullIfEmpty(lastError), *nextAttemptAt, id, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), next_attempt_at=NULL, updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, next_attempt_at=NULL, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]WebhookDelivery, string, error) {
    limit = clampLimit(limit)
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0)
        FROM webhook_deliveries WHERE tenant_id=$1 AND ($2 = '' OR status=$2) AND ($3 = '' OR id::text > $3) ORDER BY id LIMIT $4`, tenantID, status, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        var nextAt sql.NullTime
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Status, &d.Attempts, &nextAt, &d.LastError, &d.ResponseCode); err != nil { return nil, "", err }
        if nextAt.Valid { t := nextAt.Time; d.NextAttemptAt = &t }
        out = append(out, d)
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = out[len(out)-1].ID }
    return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    if _, err := uuid.Parse(id); err != nil { return ErrNotFound }
    res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now(), updated_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, err := res.RowsAffected(); err == nil && n == 0 { return ErrNotFound }
    return nil
}

func computeDedupKey(payload []byte) string {
    // try to parse JSON and use id
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

// jsonArg passes raw JSON as a string so the driver sends it as text for jsonb columns.
func jsonArg(raw json.RawMessage) any {
    if len(raw) == 0 { return nil }
    return string(raw)
}

func nullableJSON(b []byte) json.RawMessage {
    if len(b) == 0 || string(b) == "null" { return nil }
    return json.RawMessage(b)
}
