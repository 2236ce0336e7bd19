package api

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "mime"
    "net/http"
    "strings"
    "time"

    "vrpcore/internal/format"
    "vrpcore/internal/report"
    "vrpcore/internal/store"
)

const maxBodyBytes = 16 << 20

// SolveHandler handles POST /v1/solve. The body is a SolveRequest, or a bare problem document
// when sent as application/yaml. With ?wait=true the response is delayed until the run finishes.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    ctx, tenant := s.withTenant(r)
    body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
    if err != nil {
        writeProblem(w, http.StatusRequestEntityTooLarge, "Body too large", err.Error(), r.URL.Path)
        return
    }
    var req SolveRequest
    mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
    if strings.HasSuffix(mt, "yaml") {
        doc, err := format.ParseProblemYAML(body)
        if err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid YAML", err.Error(), r.URL.Path)
            return
        }
        if req.Problem, err = json.Marshal(doc); err != nil {
            writeProblem(w, http.StatusInternalServerError, "Encode problem failed", err.Error(), r.URL.Path)
            return
        }
    } else if err := decodeJSON(bytes.NewReader(body), &req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateSolveRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
        return
    }
    run, err := s.Runs.Start(ctx, tenant, req)
    if err != nil {
        if isInputError(err) {
            writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Start run failed", err.Error(), r.URL.Path)
        return
    }
    w.Header().Set("Location", "/v1/runs/"+run.ID)
    if wait := r.URL.Query().Get("wait"); wait == "true" || wait == "1" {
        if err := s.Runs.Wait(ctx, run.ID); err != nil {
            writeJSON(w, http.StatusAccepted, run)
            return
        }
        done, err := s.Store.GetRun(ctx, tenant, run.ID)
        if err != nil { writeProblem(w, 500, "Load run failed", err.Error(), r.URL.Path); return }
        writeJSON(w, http.StatusOK, done)
        return
    }
    writeJSON(w, http.StatusAccepted, run)
}

// RunsHandler handles GET /v1/runs. Solutions are omitted from the listing.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/runs" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListRuns(r.Context(), tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path); return }
    for i := range items { items[i].Solution = nil }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles GET/DELETE /v1/runs/{id} and GET /v1/runs/{id}/{events,snapshots,chart}.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
    path := r.URL.Path
    rest := strings.TrimPrefix(path, "/v1/runs/")
    if rest == path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    if len(parts) > 1 {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        switch parts[1] {
        case "events":
            s.runEvents(w, r, id)
        case "snapshots":
            s.runSnapshots(w, r, id)
        case "chart":
            s.runChart(w, r, id)
        default:
            writeProblem(w, http.StatusNotFound, "Not Found", "", path)
        }
        return
    }

    ctx, tenant := s.withTenant(r)
    switch r.Method {
    case http.MethodGet:
        run, err := s.Store.GetRun(ctx, tenant, id)
        if err != nil {
            writeStoreError(w, r, "Run not found", err)
            return
        }
        writeJSON(w, http.StatusOK, run)
    case http.MethodDelete:
        err := s.Runs.Cancel(ctx, tenant, id)
        switch {
        case errors.Is(err, errRunFinished):
            writeProblem(w, http.StatusConflict, "Run finished", err.Error(), path)
        case err != nil:
            writeStoreError(w, r, "Cancel run failed", err)
        default:
            writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
        }
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

func writeStoreError(w http.ResponseWriter, r *http.Request, title string, err error) {
    if errors.Is(err, store.ErrNotFound) {
        writeProblem(w, http.StatusNotFound, title, err.Error(), r.URL.Path)
        return
    }
    writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
}

// runEvents streams run.progress events as SSE until the run finishes or the client leaves.
func (s *Server) runEvents(w http.ResponseWriter, r *http.Request, id string) {
    ctx, tenant := s.withTenant(r)
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    // subscribe before loading the run so that a finish in between is not lost
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    run, err := s.Store.GetRun(ctx, tenant, id)
    if err != nil { writeStoreError(w, r, "Run not found", err); return }

    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    if run.Finished() {
        writeSSE(w, SSEEvent{Type: EventRunFinished, Data: map[string]any{
            "runId": run.ID, "status": run.Status, "cost": run.Cost,
            "unassigned": run.Unassigned, "generations": run.Generations,
        }})
        flusher.Flush()
        return
    }
    writeHeartbeat(w, id)
    flusher.Flush()
    heartbeat := time.NewTicker(15 * time.Second)
    defer heartbeat.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case evt, ok := <-ch:
            if !ok { return }
            writeSSE(w, evt)
            flusher.Flush()
            if evt.Type == EventRunFinished { return }
        case <-heartbeat.C:
            writeHeartbeat(w, id)
            flusher.Flush()
        }
    }
}

func writeSSE(w io.Writer, evt SSEEvent) {
    b, _ := json.Marshal(evt.Data)
    fmt.Fprintf(w, "event: %s\n", evt.Type)
    fmt.Fprintf(w, "data: %s\n\n", string(b))
}

func writeHeartbeat(w io.Writer, id string) {
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
}

func (s *Server) runSnapshots(w http.ResponseWriter, r *http.Request, id string) {
    ctx, tenant := s.withTenant(r)
    if _, err := s.Store.GetRun(ctx, tenant, id); err != nil { writeStoreError(w, r, "Run not found", err); return }
    snaps, err := s.Store.ListSnapshots(ctx, id)
    if err != nil { writeProblem(w, 500, "List snapshots failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": snaps})
}

// runChart renders the convergence chart of a run as HTML.
func (s *Server) runChart(w http.ResponseWriter, r *http.Request, id string) {
    ctx, tenant := s.withTenant(r)
    if _, err := s.Store.GetRun(ctx, tenant, id); err != nil { writeStoreError(w, r, "Run not found", err); return }
    snaps, err := s.Store.ListSnapshots(ctx, id)
    if err != nil { writeProblem(w, 500, "List snapshots failed", err.Error(), r.URL.Path); return }
    if len(snaps) == 0 { writeProblem(w, 404, "No progress recorded", report.ErrNoData.Error(), r.URL.Path); return }
    w.Header().Set("Content-Type", "text/html; charset=utf-8")
    if err := report.RenderConvergence(w, id, snaps); err != nil {
        writeProblem(w, 500, "Render chart failed", err.Error(), r.URL.Path)
    }
}

type subscriptionRequest struct {
    URL    string   `json:"url"`
    Events []string `json:"events"`
    Secret string   `json:"secret"`
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    ctx, tenant := s.withTenant(r)
    switch r.Method {
    case http.MethodPost:
        var req subscriptionRequest
        if err := decodeJSON(r.Body, &req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateSubscription(req.URL, req.Events); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
            return
        }
        events := make([]string, len(req.Events))
        for i, e := range req.Events { events[i] = strings.ToLower(e) }
        sub, err := s.Store.CreateSubscription(ctx, store.Subscription{TenantID: tenant, URL: req.URL, Events: events, Secret: req.Secret})
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        sub.Secret = ""
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(ctx, tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        for i := range items { items[i].Secret = "" }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Subscription delete
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    ctx, tenant := s.withTenant(r)
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(ctx, tenant, id); err != nil { writeStoreError(w, r, "Delete subscription failed", err); return }
    w.WriteHeader(204)
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    ctx, tenant := s.withTenant(r)
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(ctx, tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    ctx, tenant := s.withTenant(r)
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(ctx, tenant, id); err != nil { writeStoreError(w, r, "Retry delivery failed", err); return }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
    defer cancel()
    if err := s.Store.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
