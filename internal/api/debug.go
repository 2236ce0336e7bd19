package api

import (
    "net/http"
    "time"

    "vrpcore/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    cfg := s.Config
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "activeRuns": s.Runs.Active(),
        "config": map[string]any{
            "PORT": cfg.Port,
            "RATE_RPS": cfg.RateRPS,
            "RATE_BURST": cfg.RateBurst,
            "WEBHOOK_MAX_ATTEMPTS": cfg.WebhookMaxAttempts,
            "SOLVER_CONFIG": cfg.SolverConfigPath,
            "HAS_DATABASE_URL": cfg.DatabaseURL != "",
            "HAS_REDIS_URL": cfg.RedisURL != "",
            "solver": cfg.Solver,
        },
    }
    writeJSON(w, http.StatusOK, info)
}
