package store

import (
    "context"
    "errors"
    "testing"
    "time"
)

func TestMemoryRunLifecycle(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    run, err := m.CreateRun(ctx, Run{TenantID: "t1", Problem: []byte(`{}`)})
    if err != nil || run.ID == "" || run.Status != RunQueued { t.Fatalf("create: %+v %v", run, err) }

    if _, err := m.GetRun(ctx, "t2", run.ID); !errors.Is(err, ErrNotFound) { t.Fatalf("tenant isolation: %v", err) }

    now := time.Now()
    run.Status, run.FinishedAt, run.Problem = RunSucceeded, &now, nil
    if err := m.UpdateRun(ctx, run); err != nil { t.Fatalf("update: %v", err) }
    got, _ := m.GetRun(ctx, "t1", run.ID)
    if !got.Finished() || string(got.Problem) != "{}" { t.Fatalf("unexpected run: %+v", got) }

    if err := m.AppendSnapshots(ctx, run.ID, []Snapshot{{Generation: 1, BestCost: 3}, {Generation: 2, BestCost: 2}}); err != nil { t.Fatalf("snapshots: %v", err) }
    snaps, _ := m.ListSnapshots(ctx, run.ID)
    if len(snaps) != 2 || snaps[1].BestCost != 2 { t.Fatalf("unexpected snapshots: %+v", snaps) }
    if err := m.AppendSnapshots(ctx, "missing", nil); !errors.Is(err, ErrNotFound) { t.Fatalf("expected ErrNotFound, got %v", err) }
}

func TestMemoryListRunsPaging(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    for i := 0; i < 5; i++ {
        status := RunSucceeded
        if i%2 == 1 { status = RunFailed }
        _, _ = m.CreateRun(ctx, Run{TenantID: "t1", Status: status})
    }
    page, next, _ := m.ListRuns(ctx, "t1", "", "", 2)
    if len(page) != 2 || next == "" { t.Fatalf("first page: %d %q", len(page), next) }
    rest, next2, _ := m.ListRuns(ctx, "t1", "", next, 10)
    if len(rest) != 3 || next2 != "" { t.Fatalf("second page: %d %q", len(rest), next2) }
    failed, _, _ := m.ListRuns(ctx, "t1", RunFailed, "", 10)
    if len(failed) != 2 { t.Fatalf("status filter: %d", len(failed)) }
}

func TestMemorySubscriptionsAndDeliveries(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    sub, _ := m.CreateSubscription(ctx, Subscription{TenantID: "t1", URL: "http://x", Events: []string{"run.completed"}})
    subs, _ := m.GetSubscriptionsForEvent(ctx, "t1", "run.completed")
    if len(subs) != 1 || subs[0].ID != sub.ID { t.Fatalf("subscriptions: %+v", subs) }
    if subs, _ := m.GetSubscriptionsForEvent(ctx, "t1", "run.failed"); len(subs) != 0 { t.Fatalf("unexpected match: %+v", subs) }

    id1, _ := m.EnqueueWebhook(ctx, "t1", sub.ID, "run.completed", "http://x", "", []byte(`{"id":"evt1"}`))
    id2, _ := m.EnqueueWebhook(ctx, "t1", sub.ID, "run.completed", "http://x", "", []byte(`{"id":"evt1"}`))
    if id1 != id2 { t.Fatalf("duplicate event was enqueued twice") }

    due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
    if len(due) != 1 { t.Fatalf("due: %d", len(due)) }
    later := time.Now().Add(time.Hour)
    _ = m.MarkWebhookDelivery(ctx, id1, false, &later, "boom", 500, 3)
    if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 { t.Fatalf("retry scheduled in the future is due") }
    _ = m.FailWebhookDelivery(ctx, id1, "boom", 500, 3)
    failed, _, _ := m.ListWebhookDeliveries(ctx, "t1", "failed", "", 10)
    if len(failed) != 1 || failed[0].Attempts != 2 { t.Fatalf("failed: %+v", failed) }
    if err := m.RetryWebhookDelivery(ctx, "t1", id1); err != nil { t.Fatalf("retry: %v", err) }
    if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 1 { t.Fatalf("retried delivery is not due") }

    if err := m.DeleteSubscription(ctx, "t1", sub.ID); err != nil { t.Fatalf("delete: %v", err) }
    if err := m.DeleteSubscription(ctx, "t1", sub.ID); !errors.Is(err, ErrNotFound) { t.Fatalf("expected ErrNotFound, got %v", err) }
}
