package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/pukhraj-kanwal/Dispatch-hub/config"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/broker/messages"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/cache"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/cache/rediscache"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/integrations/dispatch/httpapi"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/services/loads"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/services/pinguard"
	"github.com/stretchr/testify/require"
)

type fakeConsumer struct {
	delivered atomic.Bool
}

func (c *fakeConsumer) ConsumeDispatchUpdates(ctx context.Context, handler func(ctx context.Context, msg messages.DispatchUpdated) error) error {
	if err := handler(ctx, messages.DispatchUpdated{DriverID: "driver", Reason: "assigned", At: time.Now()}); err != nil {
		return err
	}
	c.delivered.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func testFactories(mr *miniredis.Miniredis, cons dispatchConsumer) apiFactories {
	f := defaultAPIFactories()
	f.newCache = func(*config.Config) (cache.BytesCache, func()) {
		if mr == nil {
			return nil, nil
		}
		c := rediscache.New(mr.Addr())
		return c, func() { _ = c.Close() }
	}
	f.newRateLimiter = func(*config.Config) (pinguard.RateLimiter, func()) {
		if mr == nil {
			return nil, nil
		}
		rl := rediscache.NewRateLimiter(mr.Addr())
		return rl, func() { _ = rl.Close() }
	}
	f.newPublisher = func(*config.Config) (loads.Publisher, func()) { return nil, nil }
	f.newConsumer = func(*config.Config, string, string) (dispatchConsumer, func()) { return cons, nil }
	return f
}

func startApp(t *testing.T, cfg *config.Config, f apiFactories) (string, context.CancelFunc, chan error) {
	t.Helper()
	app, err := buildDispatchAPI(cfg, writeSwagger(t), f)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	addrCh := make(chan string, 1)
	app.opts.httpAddr = "127.0.0.1:0"
	app.opts.onListen = func(addr string) { addrCh <- addr }

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	select {
	case addr := <-addrCh:
		return "http://" + addr, cancel, errCh
	case err := <-errCh:
		cancel()
		t.Fatalf("app exited early: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("timeout waiting for listener")
	}
	return "", cancel, errCh
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRunDispatchAPI_ServesLoadsAndSwagger(t *testing.T) {
	cons := &fakeConsumer{}
	base, cancel, errCh := startApp(t, &config.Config{}, testFactories(nil, cons))

	resp, err := http.Get(base + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"swagger"`)

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, cons.delivered.Load, 2*time.Second, 10*time.Millisecond)

	resp, err = http.Get(base + "/loads")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "DR-4586")

	resp = post(t, base+"/sync/trigger", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Get(base + "/config")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Contains(t, string(body), `"backend":"mock"`)
	require.NotContains(t, string(body), "1234")

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting app to stop")
	}
}

func TestRunDispatchAPI_PinLockout(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{Dispatch: config.DispatchConfig{PinAttemptsPerWindow: 2, PinWindowSeconds: 60}}
	base, cancel, errCh := startApp(t, cfg, testFactories(mr, nil))
	defer func() {
		cancel()
		<-errCh
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusForbidden, post(t, base+"/loads/DR-4586/confirm", `{"pin":"0000"}`).StatusCode)
	require.Equal(t, http.StatusForbidden, post(t, base+"/loads/DR-4586/confirm", `{"pin":"0000"}`).StatusCode)
	require.Equal(t, http.StatusTooManyRequests, post(t, base+"/loads/DR-4586/confirm", `{"pin":"1234"}`).StatusCode)

	mr.FastForward(61 * time.Second)
	require.Equal(t, http.StatusOK, post(t, base+"/loads/DR-4586/confirm", `{"pin":"1234"}`).StatusCode)

	// карточка кэшируется в redis
	resp, err := http.Get(base + "/loads/DR-4583")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, mr.Exists("load:DR-4583:detail"))
}

func TestRunDispatchAPI_SwaggerRequired(t *testing.T) {
	app, err := buildDispatchAPI(&config.Config{}, "", testFactories(nil, nil))
	require.NoError(t, err)
	defer app.Close()
	require.Error(t, app.Run(context.Background()))

	app.opts.swaggerPath = filepath.Join(t.TempDir(), "missing.json")
	require.Error(t, app.Run(context.Background()))
}

func TestBuildDispatchAPI_UnknownBackend(t *testing.T) {
	cfg := &config.Config{Dispatch: config.DispatchConfig{Backend: "oracle"}}
	_, err := buildDispatchAPI(cfg, "", testFactories(nil, nil))
	require.Error(t, err)
}

func TestNewBackend_HTTP(t *testing.T) {
	_, err := newBackend(&config.Config{Dispatch: config.DispatchConfig{Backend: backendHTTP}})
	require.Error(t, err)

	parts, err := newBackend(&config.Config{Dispatch: config.DispatchConfig{
		Backend:    backendHTTP,
		APIBaseURL: "http://dispatch.local",
		DriverID:   "driver-001",
	}})
	require.NoError(t, err)
	_, ok := parts.src.(*httpapi.Client)
	require.True(t, ok)
	require.Nil(t, parts.events)
}

func TestBuildDispatchAPI_Defaults(t *testing.T) {
	app, err := buildDispatchAPI(&config.Config{}, "sw.json", testFactories(nil, nil))
	require.NoError(t, err)
	defer app.Close()

	require.Equal(t, ":8080", app.opts.httpAddr)
	require.Equal(t, "dispatch.updated", app.opts.dispatchTopic)
	require.Equal(t, "dispatch-api", app.opts.consumerGroup)
	require.Equal(t, 30, app.opts.settings["syncIntervalSeconds"])
	require.Nil(t, app.deps.events)
	require.Nil(t, app.deps.consumer)
}

func TestDefaultAPIFactories_NonNil(t *testing.T) {
	f := defaultAPIFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	c, closeCache := f.newCache(cfg)
	require.NotNil(t, c)
	closeCache()
	rl, closeRL := f.newRateLimiter(cfg)
	require.NotNil(t, rl)
	closeRL()
	p, closePub := f.newPublisher(cfg)
	require.NotNil(t, p)
	closePub()
}
