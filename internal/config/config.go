// Package config loads solver and server settings from YAML files and the environment.
package config

import (
    "errors"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate and Load for unusable settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Population algorithms.
const (
    // PopulationDefault is greedy for a single worker and rosomaxa otherwise.
    PopulationDefault  = "default"
    PopulationGreedy   = "greedy"
    PopulationElitism  = "elitism"
    PopulationRosomaxa = "rosomaxa"
)

// DefaultMaxGenerations bounds a run when neither a generation nor a time limit is set.
const DefaultMaxGenerations = 3000

// RosomaxaConfig mirrors the tunables of the Rosomaxa population. Zero values keep defaults.
type RosomaxaConfig struct {
    EliteSize            int     `yaml:"elite_size" json:"eliteSize,omitempty"`
    NodeSize             int     `yaml:"node_size" json:"nodeSize,omitempty"`
    SpreadFactor         float64 `yaml:"spread_factor" json:"spreadFactor,omitempty"`
    DistributionFactor   float64 `yaml:"distribution_factor" json:"distributionFactor,omitempty"`
    LearningRate         float64 `yaml:"learning_rate" json:"learningRate,omitempty"`
    RebalanceMemory      int     `yaml:"rebalance_memory" json:"rebalanceMemory,omitempty"`
    MaxNodes             int     `yaml:"max_nodes" json:"maxNodes,omitempty"`
    ExplorationRatio     float64 `yaml:"exploration_ratio" json:"explorationRatio,omitempty"`
    AllowPhaseRegression bool    `yaml:"allow_phase_regression" json:"allowPhaseRegression,omitempty"`
}

// PerturbationConfig configures the cost perturbation recreate.
type PerturbationConfig struct {
    Probability float64 `yaml:"probability" json:"probability"`
    Min         float64 `yaml:"min" json:"min"`
    Max         float64 `yaml:"max" json:"max"`
}

// SolverConfig describes one solver run.
type SolverConfig struct {
    Population        string             `yaml:"population" json:"population,omitempty"`
    SelectionSize     int                `yaml:"selection_size" json:"selectionSize,omitempty"`
    ElitismMaxSize    int                `yaml:"elitism_max_size" json:"elitismMaxSize,omitempty"`
    Rosomaxa          RosomaxaConfig     `yaml:"rosomaxa" json:"rosomaxa"`
    Perturbation      PerturbationConfig `yaml:"perturbation" json:"perturbation"`
    MaxGenerations    int                `yaml:"max_generations" json:"maxGenerations,omitempty"`
    TimeLimit         time.Duration      `yaml:"time_limit" json:"timeLimit,omitempty"`
    Parallelism       int                `yaml:"parallelism" json:"parallelism,omitempty"`
    InitialSize       int                `yaml:"initial_size" json:"initialSize,omitempty"`
    Seed              int64              `yaml:"seed" json:"seed,omitempty"`
    UnassignedPenalty float64            `yaml:"unassigned_penalty" json:"unassignedPenalty,omitempty"`
}

// DefaultSolverConfig returns the settings used when nothing is configured.
func DefaultSolverConfig() SolverConfig {
    return SolverConfig{
        Population:     PopulationRosomaxa,
        ElitismMaxSize: 4,
        Perturbation:   PerturbationConfig{Probability: 0.05, Min: 0.75, Max: 1.25},
        MaxGenerations: DefaultMaxGenerations,
        Parallelism:    1,
        InitialSize:    1,
    }
}

// Validate checks the configuration. SelectionSize 0 means derive it from Parallelism.
func (c SolverConfig) Validate() error {
    switch c.Population {
    case PopulationDefault, PopulationGreedy, PopulationElitism, PopulationRosomaxa:
    default:
        return fmt.Errorf("%w: unknown population %q", ErrInvalidConfig, c.Population)
    }
    if c.SelectionSize < 0 { return fmt.Errorf("%w: selection size must not be negative", ErrInvalidConfig) }
    if c.Population == PopulationElitism && c.ElitismMaxSize < 1 {
        return fmt.Errorf("%w: elitism max size must be positive", ErrInvalidConfig)
    }
    p := c.Perturbation
    if p.Probability < 0 || p.Probability > 1 {
        return fmt.Errorf("%w: perturbation probability must be in [0, 1], got %g", ErrInvalidConfig, p.Probability)
    }
    if p.Min <= 0 || p.Max < p.Min {
        return fmt.Errorf("%w: perturbation range [%g, %g] is invalid", ErrInvalidConfig, p.Min, p.Max)
    }
    if c.MaxGenerations < 0 { return fmt.Errorf("%w: max generations must not be negative", ErrInvalidConfig) }
    if c.TimeLimit < 0 { return fmt.Errorf("%w: time limit must not be negative", ErrInvalidConfig) }
    if c.Parallelism < 1 { return fmt.Errorf("%w: parallelism must be positive", ErrInvalidConfig) }
    if c.InitialSize < 1 { return fmt.Errorf("%w: initial size must be positive", ErrInvalidConfig) }
    if c.UnassignedPenalty < 0 { return fmt.Errorf("%w: unassigned penalty must not be negative", ErrInvalidConfig) }
    return nil
}

// ParseSolverConfig decodes YAML over the defaults and validates the result.
func ParseSolverConfig(data []byte) (SolverConfig, error) {
    cfg := DefaultSolverConfig()
    if err := yaml.Unmarshal(data, &cfg); err != nil {
        return SolverConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
    }
    return cfg, cfg.Validate()
}

// LoadSolverConfig reads a YAML file (optional, empty path skips it) and overlays SOLVER_* variables.
func LoadSolverConfig(path string, getenv func(string) string) (SolverConfig, error) {
    cfg := DefaultSolverConfig()
    if strings.TrimSpace(path) != "" {
        data, err := os.ReadFile(path)
        if err != nil {
            return SolverConfig{}, fmt.Errorf("read solver config: %w", err)
        }
        if err := yaml.Unmarshal(data, &cfg); err != nil {
            return SolverConfig{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
        }
    }
    if err := cfg.applyEnv(getenv); err != nil {
        return SolverConfig{}, err
    }
    return cfg, cfg.Validate()
}

func (c *SolverConfig) applyEnv(getenv func(string) string) error {
    if getenv == nil { getenv = os.Getenv }
    e := envReader{getenv: getenv}
    if v := getenv("SOLVER_POPULATION"); v != "" { c.Population = strings.ToLower(strings.TrimSpace(v)) }
    e.int("SOLVER_SELECTION_SIZE", &c.SelectionSize)
    e.int("SOLVER_MAX_GENERATIONS", &c.MaxGenerations)
    e.duration("SOLVER_TIME_LIMIT", &c.TimeLimit)
    e.int("SOLVER_PARALLELISM", &c.Parallelism)
    e.int("SOLVER_INITIAL_SIZE", &c.InitialSize)
    e.int64("SOLVER_SEED", &c.Seed)
    e.float("SOLVER_UNASSIGNED_PENALTY", &c.UnassignedPenalty)
    e.float("SOLVER_PERTURBATION_PROBABILITY", &c.Perturbation.Probability)
    return e.err
}

// ServerConfig holds the API server settings.
type ServerConfig struct {
    Port               string
    DatabaseURL        string
    Migrate            bool
    RedisURL           string
    RateRPS            float64
    RateBurst          int
    WebhookMaxAttempts int
    SolverConfigPath   string
    Solver             SolverConfig
}

// LoadServerConfig reads the server settings from the environment.
func LoadServerConfig(getenv func(string) string) (ServerConfig, error) {
    if getenv == nil { getenv = os.Getenv }
    cfg := ServerConfig{
        Port:               "8080",
        DatabaseURL:        strings.TrimSpace(getenv("DATABASE_URL")),
        Migrate:            getenv("DB_MIGRATE") != "false",
        RedisURL:           strings.TrimSpace(getenv("REDIS_URL")),
        RateRPS:            5,
        RateBurst:          10,
        WebhookMaxAttempts: 8,
        SolverConfigPath:   getenv("SOLVER_CONFIG"),
    }
    if v := getenv("PORT"); v != "" { cfg.Port = v }
    e := envReader{getenv: getenv}
    e.float("RATE_RPS", &cfg.RateRPS)
    e.int("RATE_BURST", &cfg.RateBurst)
    e.int("WEBHOOK_MAX_ATTEMPTS", &cfg.WebhookMaxAttempts)
    if e.err != nil {
        return ServerConfig{}, e.err
    }
    if cfg.RateRPS < 0 || cfg.RateBurst < 0 {
        return ServerConfig{}, fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
    }
    if cfg.WebhookMaxAttempts < 1 {
        return ServerConfig{}, fmt.Errorf("%w: WEBHOOK_MAX_ATTEMPTS must be positive", ErrInvalidConfig)
    }
    solver, err := LoadSolverConfig(cfg.SolverConfigPath, getenv)
    if err != nil {
        return ServerConfig{}, err
    }
    cfg.Solver = solver
    return cfg, nil
}

// envReader parses variables and keeps the first error.
type envReader struct {
    getenv func(string) string
    err    error
}

func (e *envReader) lookup(key string) (string, bool) {
    if e.err != nil { return "", false }
    v := strings.TrimSpace(e.getenv(key))
    return v, v != ""
}

func (e *envReader) fail(key, v string, err error) {
    e.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
}

func (e *envReader) int(key string, dst *int) {
    if v, ok := e.lookup(key); ok {
        n, err := strconv.Atoi(v)
        if err != nil { e.fail(key, v, err); return }
        *dst = n
    }
}

func (e *envReader) int64(key string, dst *int64) {
    if v, ok := e.lookup(key); ok {
        n, err := strconv.ParseInt(v, 10, 64)
        if err != nil { e.fail(key, v, err); return }
        *dst = n
    }
}

func (e *envReader) float(key string, dst *float64) {
    if v, ok := e.lookup(key); ok {
        f, err := strconv.ParseFloat(v, 64)
        if err != nil { e.fail(key, v, err); return }
        *dst = f
    }
}

func (e *envReader) duration(key string, dst *time.Duration) {
    if v, ok := e.lookup(key); ok {
        d, err := time.ParseDuration(v)
        if err != nil { e.fail(key, v, err); return }
        *dst = d
    }
}
