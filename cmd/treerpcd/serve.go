// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/luxfi/treerpc"
	"github.com/luxfi/treerpc/bridge"
	"github.com/luxfi/treerpc/internal/config"
	"github.com/luxfi/treerpc/internal/history"
	"github.com/luxfi/treerpc/internal/metrics"
	"github.com/luxfi/treerpc/internal/notify"
	"github.com/luxfi/treerpc/tree"
)

var listenSpec string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the demo power supply on the configured listeners",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("listen") {
			cfg.Listeners = config.ParseListeners(listenSpec)
		}
		if len(cfg.Listeners) == 0 {
			return errors.New("no listeners configured")
		}
		return cfg.Validate()
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, slog.Default())
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&listenSpec, "listen", "", `listeners as "zap=:9400,json=:9401"`)
	f.BoolVar(&cfg.MethodParameters, "method-parameters", cfg.MethodParameters, "describe method parameter types")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	f.StringVar(&cfg.MQTT.Broker, "mqtt-broker", cfg.MQTT.Broker, "publish changes to this MQTT broker")
	f.StringVar(&cfg.Influx.URL, "influx-url", cfg.Influx.URL, "record changes in this InfluxDB")

	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	root := newPowerSupply()
	state := tree.NewStateManager(root)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	iface := bridge.New(state,
		bridge.WithMethodParameters(cfg.MethodParameters),
		bridge.WithLogger(log.With("component", "bridge")),
		bridge.WithObserver(m),
		bridge.WithInfo(map[string]any{
			"service":    root.TypeName(),
			"transports": keys(cfg.Listeners),
		}),
	)
	iface.Watch(state)

	if cfg.MQTT.Broker != "" {
		pub, err := notify.Connect(ctx, cfg.MQTT, log.With("component", "mqtt"))
		if err != nil {
			return err
		}
		defer pub.Close()
		sink := notify.NewSink(pub, notify.Settings{
			TopicPrefix: cfg.MQTT.TopicPrefix,
			BreakerTrip: cfg.MQTT.BreakerTrip,
			BreakerOpen: cfg.MQTT.BreakerOpen,
			OnResult:    func(err error) { m.ObserveNotification("mqtt", err) },
			Logger:      log.With("component", "mqtt"),
		})
		go sink.Run(ctx)
		iface.Subscribe(state, sink.Deliver)
	}

	if cfg.Influx.URL != "" {
		rec, closeInflux := history.Open(cfg.Influx, log.With("component", "history"))
		defer closeInflux()
		iface.Subscribe(state, func(n bridge.Notification) {
			rec.Record(n)
			m.ObserveNotification("influx", nil)
		})
	}

	var (
		wg   sync.WaitGroup
		errs = make(chan error, len(cfg.Listeners)+1)
	)
	for transport, addr := range cfg.Listeners {
		srv, err := treerpc.Listen(addr, treerpc.WithServerTransport(transport))
		if err != nil {
			return fmt.Errorf("listen %s on %s: %w", transport, addr, err)
		}
		defer srv.Close()
		if err := treerpc.RegisterBridge(srv, iface); err != nil {
			return err
		}
		log.Info("serving", "transport", transport, "addr", srv.Addr(), "service", root.TypeName())

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ctx); err != nil {
				errs <- fmt.Errorf("%s: %w", transport, err)
			}
		}()
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		hs := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		context.AfterFunc(ctx, func() { _ = hs.Close() })
		go func() {
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("metrics: %w", err)
			}
		}()
		log.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errs:
		return err
	}
	wg.Wait()
	return nil
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
