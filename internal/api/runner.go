package api

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    "k8s.io/klog/v2"

    "vrpcore/internal/config"
    "vrpcore/internal/construction"
    "vrpcore/internal/engine"
    "vrpcore/internal/format"
    "vrpcore/internal/metrics"
    "vrpcore/internal/solver/population"
    "vrpcore/internal/store"
    "vrpcore/internal/webhooks"
)

const (
    snapshotEvery = 10
    snapshotBatch = 50
)

var errRunFinished = errors.New("run already finished")

// SolveRequest is the body of POST /v1/solve. Config is decoded over the server defaults.
type SolveRequest struct {
    Problem     json.RawMessage `json:"problem"`
    Config      json.RawMessage `json:"config,omitempty"`
    TimeLimitMs int64           `json:"timeLimitMs,omitempty"`
}

// isInputError reports whether err was caused by the request rather than the server.
func isInputError(err error) bool {
    return errors.Is(err, format.ErrInvalidProblem) ||
        errors.Is(err, config.ErrInvalidConfig) ||
        errors.Is(err, population.ErrInvalidConfig) ||
        errors.Is(err, engine.ErrInvalidSettings)
}

type activeRun struct {
    cancel context.CancelFunc
    done   chan struct{}
}

// Runner owns the solver goroutines of the runs started by this process.
type Runner struct {
    Store    store.Store
    Broker   EventBroker
    Pub      *webhooks.Publisher
    Defaults config.SolverConfig

    mu     sync.Mutex
    active map[string]*activeRun
    wg     sync.WaitGroup
}

func NewRunner(s store.Store, broker EventBroker, pub *webhooks.Publisher, defaults config.SolverConfig) *Runner {
    return &Runner{Store: s, Broker: broker, Pub: pub, Defaults: defaults, active: map[string]*activeRun{}}
}

func (r *Runner) prepare(req SolveRequest) (*construction.Problem, config.SolverConfig, error) {
    cfg := r.Defaults
    if len(req.Config) > 0 && string(req.Config) != "null" {
        if err := decodeJSON(bytes.NewReader(req.Config), &cfg); err != nil {
            return nil, cfg, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
        }
    }
    if req.TimeLimitMs > 0 { cfg.TimeLimit = time.Duration(req.TimeLimitMs) * time.Millisecond }
    if err := cfg.Validate(); err != nil { return nil, cfg, err }

    doc, err := format.ParseProblemJSON(req.Problem)
    if err != nil { return nil, cfg, err }
    if err := validateJobCount(len(doc.Jobs)); err != nil {
        return nil, cfg, fmt.Errorf("%w: %v", format.ErrInvalidProblem, err)
    }
    if doc.UnassignedPenalty == 0 { doc.UnassignedPenalty = cfg.UnassignedPenalty }
    problem, err := format.BuildProblem(doc)
    if err != nil { return nil, cfg, err }
    return problem, cfg, nil
}

// Start validates the request, persists a queued run and solves it in the background.
func (r *Runner) Start(ctx context.Context, tenantID string, req SolveRequest) (store.Run, error) {
    problem, cfg, err := r.prepare(req)
    if err != nil { return store.Run{}, err }

    id := uuid.NewString()
    sink := &progressSink{runner: r, runID: id}
    solver, err := engine.FromConfig(problem, cfg, id, sink.observe)
    if err != nil { return store.Run{}, err }

    cfgJSON, err := json.Marshal(cfg)
    if err != nil { return store.Run{}, err }
    run, err := r.Store.CreateRun(ctx, store.Run{
        ID:        id,
        TenantID:  tenantID,
        Status:    store.RunQueued,
        Config:    cfgJSON,
        Problem:   req.Problem,
        CreatedAt: time.Now().UTC(),
    })
    if err != nil { return store.Run{}, fmt.Errorf("create run: %w", err) }

    runCtx, cancel := context.WithCancel(klog.NewContext(context.Background(), klog.FromContext(ctx).WithValues("run", id)))
    ar := &activeRun{cancel: cancel, done: make(chan struct{})}
    r.mu.Lock()
    r.active[id] = ar
    r.mu.Unlock()

    r.wg.Add(1)
    go r.execute(runCtx, ar, run, solver, problem, sink)
    return run, nil
}

func (r *Runner) execute(ctx context.Context, ar *activeRun, run store.Run, solver *engine.Solver, problem *construction.Problem, sink *progressSink) {
    defer r.wg.Done()
    defer func() {
        ar.cancel()
        r.mu.Lock()
        delete(r.active, run.ID)
        r.mu.Unlock()
        close(ar.done)
    }()
    logger := klog.FromContext(ctx)

    started := time.Now().UTC()
    run.Status = store.RunRunning
    run.StartedAt = &started
    r.updateRun(run)

    sol, err := solver.Solve(ctx)
    sink.flush()

    finished := time.Now().UTC()
    run.FinishedAt = &finished
    if stats := solver.Statistics(); stats != nil { run.Generations = stats.Generation }
    switch {
    case err != nil:
        run.Status = store.RunFailed
        run.Error = err.Error()
        logger.Error(err, "Solve failed")
    default:
        doc := format.FromSolution(sol, problem.Transport)
        if b, err := json.Marshal(doc); err == nil { run.Solution = b }
        run.Cost = sol.Cost.Total()
        run.Unassigned = len(sol.Unassigned)
        run.Status = store.RunSucceeded
        if ctx.Err() != nil { run.Status = store.RunCancelled }
    }
    r.updateRun(run)

    metrics.SolveRuns.WithLabelValues(run.Status).Inc()
    metrics.ForgetRun(run.ID)

    summary := map[string]any{
        "runId":       run.ID,
        "status":      run.Status,
        "cost":        run.Cost,
        "unassigned":  run.Unassigned,
        "generations": run.Generations,
    }
    r.Broker.Publish(run.ID, SSEEvent{Type: EventRunFinished, Data: summary})
    if r.Pub != nil {
        emitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        r.Pub.Emit(emitCtx, run.TenantID, webhooks.RunEvent(run.Status), summary)
        cancel()
    }
    logger.Info("Run finished", "status", run.Status, "cost", run.Cost, "unassigned", run.Unassigned,
        "generations", run.Generations, "elapsed", finished.Sub(started))
}

func (r *Runner) updateRun(run store.Run) {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := r.Store.UpdateRun(ctx, run); err != nil {
        klog.ErrorS(err, "Cannot update run", "run", run.ID, "status", run.Status)
    }
}

// Cancel stops an active run. The best solution found so far is kept.
func (r *Runner) Cancel(ctx context.Context, tenantID, id string) error {
    run, err := r.Store.GetRun(ctx, tenantID, id)
    if err != nil { return err }
    if run.Finished() { return errRunFinished }
    r.mu.Lock()
    ar := r.active[id]
    r.mu.Unlock()
    if ar != nil {
        ar.cancel()
        return nil
    }
    // owned by a process which is gone
    now := time.Now().UTC()
    run.Status = store.RunCancelled
    run.FinishedAt = &now
    return r.Store.UpdateRun(ctx, run)
}

// Wait blocks until the run finishes or ctx is done. Runs not owned by this process return at once.
func (r *Runner) Wait(ctx context.Context, id string) error {
    r.mu.Lock()
    ar := r.active[id]
    r.mu.Unlock()
    if ar == nil { return nil }
    select {
    case <-ar.done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

// Active returns the number of runs being solved.
func (r *Runner) Active() int {
    r.mu.Lock()
    defer r.mu.Unlock()
    return len(r.active)
}

// Shutdown cancels all runs and waits for their results to be stored.
func (r *Runner) Shutdown(ctx context.Context) error {
    r.mu.Lock()
    for _, ar := range r.active { ar.cancel() }
    r.mu.Unlock()
    done := make(chan struct{})
    go func() { r.wg.Wait(); close(done) }()
    select {
    case <-done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

// progressSink turns solver progress into stored snapshots and stream events. It is called
// by the coordinating goroutine of one run only.
type progressSink struct {
    runner  *Runner
    runID   string
    pending []store.Snapshot
}

func (p *progressSink) observe(pr engine.Progress) {
    if !pr.Improved && pr.Generation%snapshotEvery != 0 && pr.Generation != 1 { return }
    snap := store.Snapshot{
        Generation:     pr.Generation,
        BestCost:       pr.BestCost.Total(),
        Phase:          pr.Phase.String(),
        PopulationSize: pr.PopulationSize,
        ElapsedMs:      pr.Elapsed.Milliseconds(),
    }
    p.pending = append(p.pending, snap)
    p.runner.Broker.Publish(p.runID, SSEEvent{Type: EventRunProgress, Data: map[string]any{
        "runId":               p.runID,
        "generation":          snap.Generation,
        "bestCost":            snap.BestCost,
        "phase":               snap.Phase,
        "populationSize":      snap.PopulationSize,
        "terminationEstimate": pr.TerminationEstimate,
        "elapsedMs":           snap.ElapsedMs,
        "operatorWeights":     pr.OperatorWeights,
    }})
    if len(p.pending) >= snapshotBatch { p.flush() }
}

func (p *progressSink) flush() {
    if len(p.pending) == 0 { return }
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := p.runner.Store.AppendSnapshots(ctx, p.runID, p.pending); err != nil {
        klog.ErrorS(err, "Cannot store snapshots", "run", p.runID, "count", len(p.pending))
    }
    p.pending = nil
}
