package solver

import (
	"context"
	"sync/atomic"
	"time"

	"vrpcore/internal/construction"
)

// Estimator reports the consumed share of a quota in [0, 1].
type Estimator interface {
	Estimate() float64
}

// GenerationObserver is told about finished generations.
type GenerationObserver interface {
	OnGeneration(generation int)
}

// TimeQuota is reached after a fixed duration from its creation.
type TimeQuota struct {
	start time.Time
	limit time.Duration
	now   func() time.Time
}

func NewTimeQuota(limit time.Duration) *TimeQuota {
	return &TimeQuota{start: time.Now(), limit: limit, now: time.Now}
}

func (q *TimeQuota) IsReached() bool {
	return q.now().Sub(q.start) >= q.limit
}

func (q *TimeQuota) Estimate() float64 {
	if q.limit <= 0 {
		return 1
	}
	return clamp01(float64(q.now().Sub(q.start)) / float64(q.limit))
}

// GenerationQuota is reached after a fixed amount of generations.
type GenerationQuota struct {
	limit      int64
	generation atomic.Int64
}

func NewGenerationQuota(limit int) *GenerationQuota {
	return &GenerationQuota{limit: int64(limit)}
}

func (q *GenerationQuota) IsReached() bool {
	return q.generation.Load() >= q.limit
}

func (q *GenerationQuota) OnGeneration(generation int) {
	q.generation.Store(int64(generation))
}

func (q *GenerationQuota) Estimate() float64 {
	if q.limit <= 0 {
		return 1
	}
	return clamp01(float64(q.generation.Load()) / float64(q.limit))
}

// ContextQuota is reached when the context is done.
type ContextQuota struct {
	ctx context.Context
}

func NewContextQuota(ctx context.Context) *ContextQuota {
	return &ContextQuota{ctx: ctx}
}

func (q *ContextQuota) IsReached() bool {
	return q.ctx.Err() != nil
}

// CompositeQuota is reached when any of its quotas is reached.
type CompositeQuota struct {
	quotas []construction.Quota
}

// NewCompositeQuota combines quotas, skipping nil ones.
func NewCompositeQuota(quotas ...construction.Quota) *CompositeQuota {
	c := &CompositeQuota{}
	for _, q := range quotas {
		if q != nil {
			c.quotas = append(c.quotas, q)
		}
	}
	return c
}

func (c *CompositeQuota) IsReached() bool {
	for _, q := range c.quotas {
		if q.IsReached() {
			return true
		}
	}
	return false
}

// Estimate returns the largest estimate of the nested estimators.
func (c *CompositeQuota) Estimate() float64 {
	estimate := 0.0
	for _, q := range c.quotas {
		if e, ok := q.(Estimator); ok {
			estimate = max(estimate, e.Estimate())
		}
	}
	return estimate
}

func (c *CompositeQuota) OnGeneration(generation int) {
	for _, q := range c.quotas {
		if o, ok := q.(GenerationObserver); ok {
			o.OnGeneration(generation)
		}
	}
}
