package otel

import (
	"context"
	"errors"
	"fmt"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is satisfied by *goAuthClient.Manager.
type MetricsSource interface {
	MetricsSnapshot() goAuthClient.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         goAuthClient.MetricID
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      goAuthClient.MetricID
	buckets [internaldefs.BucketCount]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes manager metrics as observable instruments on a
// caller-supplied meter. Values are read once per collection.
type OTelExporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments for manager on meter.
func NewOTelExporter(meter metric.Meter, manager *goAuthClient.Manager) (*OTelExporter, error) {
	if manager == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, manager)
}

// NewOTelExporterFromSource registers instruments reading from source.
func NewOTelExporterFromSource(meter metric.Meter, source MetricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*(internaldefs.BucketCount+1)+1)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		ins, err := meter.Int64ObservableGauge(countName, metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = ins
		observables = append(observables, ins)
		e.histograms = append(e.histograms, h)
	}

	dropped, err := meter.Int64ObservableCounter(
		"goauthclient_audit_dropped_total",
		metric.WithDescription("Audit events dropped by dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.Cumulative(raw)
		for i := range cumulative {
			observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(h.count, int64(cumulative[internaldefs.BucketCount-1]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. The instruments stay on the meter.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
