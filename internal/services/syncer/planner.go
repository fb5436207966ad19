package syncer

import (
	"math/rand"
	"time"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	Interval time.Duration // default: 30 seconds

	Backoff1 time.Duration // default: 5 seconds
	Backoff2 time.Duration // default: 15 seconds
	Backoff3 time.Duration // default: 30 seconds
	Backoff4 time.Duration // default: 60 seconds

	// Jitter добавляет к задержке случайные 0..Jitter, чтобы водители не синхронизировались разом.
	Jitter time.Duration
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Interval: 30 * time.Second,
		Backoff1: 5 * time.Second,
		Backoff2: 15 * time.Second,
		Backoff3: 30 * time.Second,
		Backoff4: 60 * time.Second,
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

// NextDelay: пауза до следующей синхронизации после failures неудач подряд.
func (p *Planner) NextDelay(failures int) time.Duration {
	var d time.Duration
	switch {
	case failures <= 0:
		d = p.cfg.Interval
	case failures == 1:
		d = p.cfg.Backoff1
	case failures == 2:
		d = p.cfg.Backoff2
	case failures == 3:
		d = p.cfg.Backoff3
	default:
		d = p.cfg.Backoff4
	}
	if p.cfg.Jitter > 0 {
		d += time.Duration(p.r.Intn(int(p.cfg.Jitter/time.Millisecond)+1)) * time.Millisecond
	}
	return d
}
