package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"actionmap/input"
)

const meterName = "actionmap/actiond"

// daemonMetrics holds the daemon's instruments. Without a configured meter
// provider the global no-op provider makes every call free.
type daemonMetrics struct {
	phases       metric.Int64Counter
	requests     metric.Int64Counter
	tickErrors   metric.Int64Counter
	registration metric.Registration
}

func newDaemonMetrics(meter metric.Meter, failures func() uint64) (*daemonMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	var (
		m   daemonMetrics
		err error
	)

	m.phases, err = meter.Int64Counter("actiond.phase.changes",
		metric.WithDescription("Action phase changes delivered to listeners"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create phase counter: %w", err)
	}

	m.requests, err = meter.Int64Counter("actiond.ipc.requests",
		metric.WithDescription("IPC requests handled by the daemon loop"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}

	m.tickErrors, err = meter.Int64Counter("actiond.tick.errors",
		metric.WithDescription("Engine ticks that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tick error counter: %w", err)
	}

	if failures != nil {
		lf, err := meter.Int64ObservableCounter("actiond.listener.failures",
			metric.WithDescription("Phase listeners that returned an error or panicked"),
			metric.WithUnit("{failure}"),
		)
		if err != nil {
			return nil, fmt.Errorf("create listener failure counter: %w", err)
		}
		m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(lf, int64(failures()))
			return nil
		}, lf)
		if err != nil {
			return nil, fmt.Errorf("register listener failure callback: %w", err)
		}
	}

	return &m, nil
}

func (m *daemonMetrics) recordPhase(ctx context.Context, ev input.PhaseEvent) {
	m.phases.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", ev.Action),
		attribute.String("phase", ev.Phase.String()),
	))
}

func (m *daemonMetrics) recordRequest(ctx context.Context, kind string, ok bool) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", kind),
		attribute.Bool("ok", ok),
	))
}

func (m *daemonMetrics) recordTickError(ctx context.Context) {
	m.tickErrors.Add(ctx, 1)
}

func (m *daemonMetrics) close() {
	if m.registration != nil {
		_ = m.registration.Unregister()
	}
}
