package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/pukhraj-kanwal/Dispatch-hub/config"
	loadsapi "github.com/pukhraj-kanwal/Dispatch-hub/internal/api/loads_api"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/broker/kafka"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/cache"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/cache/rediscache"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/integrations/dispatch/fake"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/integrations/dispatch/httpapi"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/services/loads"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/services/pinguard"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/services/syncer"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/storage/pgloads"
)

const (
	backendMock     = "mock"
	backendPostgres = "postgres"
	backendHTTP     = "http"
)

// backendParts: коллабораторы реестра, собранные под выбранный бэкенд.
type backendParts struct {
	src    loads.DataSource
	pins   loads.PinValidator
	gw     loads.ActionGateway
	events loadsapi.EventLister
	close  func()
}

type apiFactories struct {
	newBackend     func(cfg *config.Config) (backendParts, error)
	newCache       func(cfg *config.Config) (cache.BytesCache, func())
	newRateLimiter func(cfg *config.Config) (pinguard.RateLimiter, func())
	newPublisher   func(cfg *config.Config) (loads.Publisher, func())
	newConsumer    func(cfg *config.Config, topic, group string) (dispatchConsumer, func())
}

func defaultAPIFactories() apiFactories {
	return apiFactories{
		newBackend: newBackend,
		newCache: func(cfg *config.Config) (cache.BytesCache, func()) {
			rc := rediscache.New(redisAddr(cfg))
			return rc, func() { _ = rc.Close() }
		},
		newRateLimiter: func(cfg *config.Config) (pinguard.RateLimiter, func()) {
			rl := rediscache.NewRateLimiter(redisAddr(cfg))
			return rl, func() { _ = rl.Close() }
		},
		newPublisher: func(cfg *config.Config) (loads.Publisher, func()) {
			p := kafka.NewProducer(brokers(cfg))
			return p, func() { _ = p.Close() }
		},
		newConsumer: func(cfg *config.Config, topic, group string) (dispatchConsumer, func()) {
			c := kafka.NewConsumer(brokers(cfg), topic, group)
			return c, func() { _ = c.Close() }
		},
	}
}

func newBackend(cfg *config.Config) (backendParts, error) {
	d := cfg.Dispatch
	switch d.Backend {
	case "", backendMock:
		b := fake.New().
			WithPin(d.PinCode).
			WithDelayScale(d.MockDelayScale)
		if d.MockFailureRate > 0 {
			b.WithFaults(fake.NewRandomFaults(d.MockFailureRate, rand.New(rand.NewSource(time.Now().UnixNano()))))
		}
		return backendParts{src: b, pins: b, gw: b}, nil

	case backendPostgres:
		st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
		if d.SeedSampleLoads {
			if err := seedSampleLoads(context.Background(), st); err != nil {
				st.Close()
				return backendParts{}, err
			}
		}
		pin := d.PinCode
		if pin == "" {
			pin = fake.DefaultPin
		}
		return backendParts{src: st, pins: pinguard.NewStatic(pin), gw: st, events: st, close: st.Close}, nil

	case backendHTTP:
		if d.APIBaseURL == "" {
			return backendParts{}, errors.New("dispatch.api_base_url is required for the http backend")
		}
		c := httpapi.New(d.APIBaseURL, d.APIKey, d.DriverID)
		return backendParts{src: c, pins: c, gw: c}, nil

	default:
		return backendParts{}, errors.Errorf("unknown dispatch backend %q", d.Backend)
	}
}

func seedSampleLoads(ctx context.Context, st *pgloads.Storage) error {
	n, err := st.CountLoads(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	items := fake.SampleLoads(time.Now())
	for _, l := range items {
		l.Detail = fake.SampleDetail(l)
	}
	slog.Info("seeding sample loads", "count", len(items))
	return st.UpsertLoads(ctx, items)
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgloads.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgloads.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

type dispatchAPIApp struct {
	opts    dispatchAPIOpts
	deps    dispatchDeps
	closers []func()
}

func buildDispatchAPI(cfg *config.Config, swaggerPath string, f apiFactories) (*dispatchAPIApp, error) {
	d := cfg.Dispatch

	httpAddr := d.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := d.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "dispatch-api"
	}
	eventsTopic := cfg.Kafka.LoadEventsTopicName
	if eventsTopic == "" {
		eventsTopic = "load.events"
	}
	dispatchTopic := cfg.Kafka.DispatchUpdatedTopicName
	if dispatchTopic == "" {
		dispatchTopic = "dispatch.updated"
	}
	driverID := d.DriverID
	if driverID == "" {
		driverID = "driver"
	}
	cacheTTL := time.Duration(d.DetailCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	pinWindow := time.Duration(d.PinWindowSeconds) * time.Second

	app := &dispatchAPIApp{}

	parts, err := f.newBackend(cfg)
	if err != nil {
		return nil, err
	}
	if parts.close != nil {
		app.closers = append(app.closers, parts.close)
	}

	c, closeCache := f.newCache(cfg)
	app.addCloser(closeCache)
	rl, closeRL := f.newRateLimiter(cfg)
	app.addCloser(closeRL)
	pub, closePub := f.newPublisher(cfg)
	app.addCloser(closePub)
	cons, closeCons := f.newConsumer(cfg, dispatchTopic, consumerGroup)
	app.addCloser(closeCons)

	src := loads.NewCachedSource(parts.src, c, cacheTTL)
	pins := pinguard.New(parts.pins, rl, driverID).WithSettings(int64(d.PinAttemptsPerWindow), pinWindow)

	reg := loads.New(src, pins, parts.gw)
	if pub != nil {
		reg.WithPublisher(pub, eventsTopic)
	}

	plan := syncer.DefaultPlannerConfig()
	if d.SyncIntervalSeconds > 0 {
		plan.Interval = time.Duration(d.SyncIntervalSeconds) * time.Second
	}
	if d.SyncJitterSeconds > 0 {
		plan.Jitter = time.Duration(d.SyncJitterSeconds) * time.Second
	}
	sy := syncer.New(reg).WithPlanner(plan)

	backend := d.Backend
	if backend == "" {
		backend = backendMock
	}

	app.opts = dispatchAPIOpts{
		httpAddr:      httpAddr,
		swaggerPath:   swaggerPath,
		dispatchTopic: dispatchTopic,
		consumerGroup: consumerGroup,
		settings: map[string]any{
			"backend":               backend,
			"driverId":              driverID,
			"detailCacheTTLSeconds": int(cacheTTL / time.Second),
			"pinAttemptsPerWindow":  d.PinAttemptsPerWindow,
			"pinWindowSeconds":      d.PinWindowSeconds,
			"syncIntervalSeconds":   int(plan.Interval / time.Second),
			"syncJitterSeconds":     int(plan.Jitter / time.Second),
			"loadEventsTopic":       eventsTopic,
			"dispatchUpdatedTopic":  dispatchTopic,
		},
	}
	app.deps = dispatchDeps{
		registry: reg,
		syncer:   sy,
		events:   parts.events,
		consumer: cons,
	}
	return app, nil
}

func (a *dispatchAPIApp) addCloser(fn func()) {
	if fn != nil {
		a.closers = append(a.closers, fn)
	}
}

func (a *dispatchAPIApp) Run(ctx context.Context) error {
	return runDispatchAPI(ctx, a.opts, a.deps)
}

func (a *dispatchAPIApp) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func redisAddr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
}

func brokers(cfg *config.Config) []string {
	return []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
}
