package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	loadsapi "github.com/pukhraj-kanwal/Dispatch-hub/internal/api/loads_api"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/broker/messages"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/services/loads"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/services/syncer"
	"golang.org/x/sync/errgroup"
)

type dispatchAPIOpts struct {
	httpAddr    string
	swaggerPath string

	dispatchTopic string
	consumerGroup string

	// settings отдаются в /config как есть; секреты сюда не кладём.
	settings map[string]any

	onListen func(httpAddr string)
}

type dispatchConsumer interface {
	ConsumeDispatchUpdates(ctx context.Context, handler func(ctx context.Context, msg messages.DispatchUpdated) error) error
}

type dispatchDeps struct {
	registry *loads.Registry
	syncer   *syncer.Syncer
	events   loadsapi.EventLister
	consumer dispatchConsumer
}

func runDispatchAPI(ctx context.Context, opts dispatchAPIOpts, deps dispatchDeps) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHTTPServer(gctx, lis, newRouter(opts, deps))
	})

	g.Go(func() error {
		return deps.syncer.Run(gctx)
	})

	if deps.consumer != nil {
		g.Go(func() error {
			slog.Info("kafka consumer started", "topic", opts.dispatchTopic, "group", opts.consumerGroup)
			err := deps.consumer.ConsumeDispatchUpdates(gctx, deps.syncer.HandleDispatchUpdate)
			if err != nil && gctx.Err() == nil {
				// без консьюмера остаётся периодическая синхронизация, сервис не роняем
				slog.Error("kafka consumer stopped", "error", err.Error())
			}
			return nil
		})
	}

	return g.Wait()
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	err := srv.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}
