package config

import (
    "errors"
    "os"
    "path/filepath"
    "testing"
    "time"
)

func env(values map[string]string) func(string) string {
    return func(k string) string { return values[k] }
}

func TestParseSolverConfigKeepsDefaults(t *testing.T) {
    cfg, err := ParseSolverConfig([]byte("population: elitism\ntime_limit: 30s\nperturbation:\n  probability: 0.1\n"))
    if err != nil { t.Fatalf("parse: %v", err) }
    if cfg.Population != PopulationElitism || cfg.TimeLimit != 30*time.Second {
        t.Fatalf("unexpected config: %+v", cfg)
    }
    if cfg.Perturbation.Probability != 0.1 { t.Fatalf("probability not decoded: %+v", cfg.Perturbation) }
    // nested fields which are absent keep their defaults
    if cfg.Perturbation.Min != 0.75 || cfg.Perturbation.Max != 1.25 { t.Fatalf("perturbation defaults lost: %+v", cfg.Perturbation) }
    if cfg.MaxGenerations != DefaultMaxGenerations || cfg.ElitismMaxSize != 4 { t.Fatalf("defaults lost: %+v", cfg) }
}

func TestValidateRejects(t *testing.T) {
    cases := map[string]func(*SolverConfig){
        "population":  func(c *SolverConfig) { c.Population = "tabu" },
        "probability": func(c *SolverConfig) { c.Perturbation.Probability = 1.5 },
        "range":       func(c *SolverConfig) { c.Perturbation.Min = 2 },
        "parallelism": func(c *SolverConfig) { c.Parallelism = 0 },
        "initial":     func(c *SolverConfig) { c.InitialSize = 0 },
        "generations": func(c *SolverConfig) { c.MaxGenerations = -1 },
        "elitism":     func(c *SolverConfig) { c.Population = PopulationElitism; c.ElitismMaxSize = 0 },
    }
    for name, mutate := range cases {
        cfg := DefaultSolverConfig()
        mutate(&cfg)
        if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
            t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
        }
    }
    if err := DefaultSolverConfig().Validate(); err != nil { t.Fatalf("defaults invalid: %v", err) }
}

func TestLoadSolverConfigFileAndEnv(t *testing.T) {
    path := filepath.Join(t.TempDir(), "solver.yaml")
    if err := os.WriteFile(path, []byte("population: greedy\nmax_generations: 50\nseed: 7\n"), 0o600); err != nil {
        t.Fatalf("write: %v", err)
    }
    cfg, err := LoadSolverConfig(path, env(map[string]string{"SOLVER_MAX_GENERATIONS": "10", "SOLVER_TIME_LIMIT": "2s"}))
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.Population != PopulationGreedy || cfg.MaxGenerations != 10 || cfg.Seed != 7 || cfg.TimeLimit != 2*time.Second {
        t.Fatalf("unexpected config: %+v", cfg)
    }
    if _, err := LoadSolverConfig("", env(map[string]string{"SOLVER_SEED": "x"})); !errors.Is(err, ErrInvalidConfig) {
        t.Fatalf("expected ErrInvalidConfig for bad seed, got %v", err)
    }
    if _, err := LoadSolverConfig(filepath.Join(t.TempDir(), "missing.yaml"), env(nil)); err == nil {
        t.Fatalf("expected error for missing file")
    }
}

func TestLoadServerConfig(t *testing.T) {
    cfg, err := LoadServerConfig(env(map[string]string{"PORT": "9090", "RATE_RPS": "2.5", "REDIS_URL": " redis://x:6379/0 ", "DB_MIGRATE": "false"}))
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.Port != "9090" || cfg.RateRPS != 2.5 || cfg.RateBurst != 10 || cfg.RedisURL != "redis://x:6379/0" || cfg.Migrate {
        t.Fatalf("unexpected config: %+v", cfg)
    }
    if cfg.Solver.Population != PopulationRosomaxa { t.Fatalf("solver defaults missing: %+v", cfg.Solver) }
    if _, err := LoadServerConfig(env(map[string]string{"WEBHOOK_MAX_ATTEMPTS": "0"})); !errors.Is(err, ErrInvalidConfig) {
        t.Fatalf("expected ErrInvalidConfig, got %v", err)
    }
}
