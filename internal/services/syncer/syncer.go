package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pukhraj-kanwal/Dispatch-hub/internal/broker/messages"
)

// Fetcher умеет полностью пересинхронизировать грузы (loads.Registry).
type Fetcher interface {
	FetchLoads(ctx context.Context) error
}

// Syncer периодически пересинхронизирует реестр и делает это немедленно по Trigger
// (например, когда диспетчерская сообщила об изменении назначений).
type Syncer struct {
	fetcher Fetcher
	planner *Planner

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastSyncUnixNano    atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalSyncs          atomic.Int64
	totalErrors         atomic.Int64
	totalTriggers       atomic.Int64
	failures            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(fetcher Fetcher) *Syncer {
	return &Syncer{
		fetcher:           fetcher,
		planner:           NewPlanner(DefaultPlannerConfig(), nil),
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Syncer) WithPlanner(cfg PlannerConfig) *Syncer {
	s.planner = NewPlanner(cfg, nil)
	return s
}

// Trigger запрашивает внеочередную синхронизацию. Не блокирует: повторные
// триггеры до начала синхронизации схлопываются в один.
func (s *Syncer) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	s.totalTriggers.Add(1)
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// HandleDispatchUpdate: обработчик сообщений dispatch.updated из Kafka.
func (s *Syncer) HandleDispatchUpdate(_ context.Context, msg messages.DispatchUpdated) error {
	slog.Info("dispatch updated", "driver_id", msg.DriverID, "loads", len(msg.LoadIDs), "reason", msg.Reason)
	s.Trigger()
	return nil
}

type Stats struct {
	StartedAt           time.Time  `json:"startedAt"`
	LastSyncAt          *time.Time `json:"lastSyncAt,omitempty"`
	LastTriggerAt       *time.Time `json:"lastTriggerAt,omitempty"`
	TotalSyncs          int64      `json:"totalSyncs"`
	TotalErrors         int64      `json:"totalErrors"`
	TotalTriggers       int64      `json:"totalTriggers"`
	ConsecutiveFailures int64      `json:"consecutiveFailures"`
	LastError           string     `json:"lastError,omitempty"`
}

func (s *Syncer) Stats() Stats {
	st := Stats{
		StartedAt:           time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalSyncs:          s.totalSyncs.Load(),
		TotalErrors:         s.totalErrors.Load(),
		TotalTriggers:       s.totalTriggers.Load(),
		ConsecutiveFailures: s.failures.Load(),
	}
	if n := s.lastSyncUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastSyncAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

// Run синхронизирует сразу при старте, затем по расписанию планировщика до отмены ctx.
func (s *Syncer) Run(ctx context.Context) error {
	s.runOnce(ctx)

	t := time.NewTimer(s.planner.NextDelay(int(s.failures.Load())))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
		}
		t.Reset(s.planner.NextDelay(int(s.failures.Load())))
	}
}

func (s *Syncer) runOnce(ctx context.Context) {
	s.lastSyncUnixNano.Store(time.Now().UTC().UnixNano())
	s.totalSyncs.Add(1)

	if err := s.fetcher.FetchLoads(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		n := s.failures.Add(1)
		s.totalErrors.Add(1)
		s.lastErrorMu.Lock()
		s.lastError = err.Error()
		s.lastErrorMu.Unlock()
		slog.Warn("sync loads", "failures", n, "error", err.Error())
		return
	}
	s.failures.Store(0)
}
