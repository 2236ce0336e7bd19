package main

import (
    "context"
    "flag"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "k8s.io/klog/v2"

    "vrpcore/internal/api"
    "vrpcore/internal/config"
    "vrpcore/internal/metrics"
)

func main() {
    klog.InitFlags(nil)
    flag.Parse()
    defer klog.Flush()

    cfg, err := config.LoadServerConfig(os.Getenv)
    if err != nil {
        klog.ErrorS(err, "Invalid configuration")
        os.Exit(1)
    }
    srvDeps, err := api.NewServer(cfg)
    if err != nil {
        klog.ErrorS(err, "Failed to init server")
        os.Exit(1)
    }

    metrics.RegisterDefault()
    mux := http.NewServeMux()
    srvDeps.Routes(mux)
    mux.Handle("/metrics", metrics.Handler())

    addr := ":" + cfg.Port
    srv := &http.Server{
        Addr:              addr,
        Handler:           logMiddleware(metrics.Middleware(api.RouteLabel, mux)),
        ReadHeaderTimeout: 5 * time.Second,
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    // Start webhook worker
    worker := srvDeps.NewWebhookWorker()
    worker.Start()

    go func() {
        klog.InfoS("API listening", "addr", addr, "population", cfg.Solver.Population)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            klog.ErrorS(err, "Server error")
            stop()
        }
    }()

    <-ctx.Done()
    klog.InfoS("Shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()
    if err := srv.Shutdown(shutdownCtx); err != nil {
        klog.ErrorS(err, "HTTP shutdown")
    }
    close(worker.Stop)
    if err := srvDeps.Close(shutdownCtx); err != nil {
        klog.ErrorS(err, "Server close")
    }
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        next.ServeHTTP(w, r)
        klog.V(1).InfoS("HTTP request", "remote", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
    })
}
