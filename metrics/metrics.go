// Package metrics instruments connection factories with prometheus
// collectors. Wrap a factory and every dial, failure, cancellation and open
// connection shows up under the fluxdbc namespace, labeled by driver.
package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fluxdbc"
)

// Metrics holds the collectors shared by all wrapped factories.
type Metrics struct {
	created     *prometheus.CounterVec
	failed      *prometheus.CounterVec
	canceled    *prometheus.CounterVec
	open        *prometheus.GaugeVec
	dialSeconds *prometheus.HistogramVec
}

// New registers the connection collectors with reg and returns them. It
// panics if a collector with the same name is already registered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fluxdbc",
				Name:      "connections_created_total",
				Help:      "Connections successfully established",
			},
			[]string{"driver"},
		),
		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fluxdbc",
				Name:      "connections_failed_total",
				Help:      "Connection attempts that failed",
			},
			[]string{"driver"},
		),
		canceled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fluxdbc",
				Name:      "connections_canceled_total",
				Help:      "Connection attempts canceled or timed out before completing",
			},
			[]string{"driver"},
		),
		open: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "fluxdbc",
				Name:      "connections_open",
				Help:      "Connections currently open",
			},
			[]string{"driver"},
		),
		dialSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fluxdbc",
				Name:      "dial_duration_seconds",
				Help:      "Time from demand to connection outcome",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"driver"},
		),
	}
	reg.MustRegister(m.created, m.failed, m.canceled, m.open, m.dialSeconds)
	return m
}

// Wrap decorates inner so its connection lifecycle is recorded.
func (m *Metrics) Wrap(inner fluxdbc.ConnectionFactory) *Factory {
	if inner == nil {
		panic("metrics: Wrap called with nil factory")
	}
	return &Factory{inner: inner, m: m}
}

// Factory is a metrics-recording decorator around a connection factory.
type Factory struct {
	inner fluxdbc.ConnectionFactory
	m     *Metrics
}

func (f *Factory) Metadata() *fluxdbc.FactoryMetadata { return f.inner.Metadata() }

// Unwrap exposes the inner factory.
func (f *Factory) Unwrap() fluxdbc.ConnectionFactory { return f.inner }

func (f *Factory) Create() *fluxdbc.ConnectionRequest {
	return fluxdbc.NewConnectionRequest(f.dial)
}

func (f *Factory) dial(ctx context.Context) (fluxdbc.Connection, error) {
	driver := f.inner.Metadata().Name()
	start := time.Now()
	conn, err := f.inner.Create().Await(ctx)
	f.m.dialSeconds.WithLabelValues(driver).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			f.m.canceled.WithLabelValues(driver).Inc()
		} else {
			f.m.failed.WithLabelValues(driver).Inc()
		}
		return nil, err
	}
	f.m.created.WithLabelValues(driver).Inc()
	f.m.open.WithLabelValues(driver).Inc()
	return &measuredConn{Connection: conn, m: f.m, driver: driver}, nil
}

// measuredConn decrements the open gauge exactly once, on the first Close.
type measuredConn struct {
	fluxdbc.Connection
	m       *Metrics
	driver  string
	counted atomic.Bool
}

func (c *measuredConn) Close(ctx context.Context) error {
	err := c.Connection.Close(ctx)
	if c.counted.CompareAndSwap(false, true) {
		c.m.open.WithLabelValues(c.driver).Dec()
	}
	return err
}
