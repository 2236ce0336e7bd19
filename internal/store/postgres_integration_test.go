//go:build postgres_integration

package store

import (
    "encoding/json"
    "errors"
    "os"
    "testing"
    "time"
)

func TestPostgresRunLifecycle(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    defer p.Close()
    if err := p.Ping(t.Context()); err != nil { t.Fatalf("Ping: %v", err) }
    if err := p.Migrate(t.Context()); err != nil { t.Fatalf("Migrate: %v", err) }

    run, err := p.CreateRun(t.Context(), Run{TenantID: "t_it", Problem: json.RawMessage(`{"jobs":[]}`)})
    if err != nil { t.Fatalf("CreateRun: %v", err) }
    now := time.Now().UTC()
    run.Status, run.FinishedAt, run.Cost, run.Solution = RunSucceeded, &now, 12.5, json.RawMessage(`{"routes":[]}`)
    if err := p.UpdateRun(t.Context(), run); err != nil { t.Fatalf("UpdateRun: %v", err) }
    if err := p.AppendSnapshots(t.Context(), run.ID, []Snapshot{{Generation: 1, BestCost: 12.5, Phase: "exploration"}}); err != nil { t.Fatalf("AppendSnapshots: %v", err) }

    got, err := p.GetRun(t.Context(), "t_it", run.ID)
    if err != nil { t.Fatalf("GetRun: %v", err) }
    if got.Status != RunSucceeded || got.Cost != 12.5 || got.FinishedAt == nil { t.Fatalf("unexpected run: %+v", got) }
    snaps, err := p.ListSnapshots(t.Context(), run.ID)
    if err != nil || len(snaps) != 1 { t.Fatalf("ListSnapshots: %v %+v", err, snaps) }
    if _, err := p.GetRun(t.Context(), "other", run.ID); !errors.Is(err, ErrNotFound) { t.Fatalf("expected ErrNotFound, got %v", err) }
}
