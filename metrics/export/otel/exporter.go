package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
	"github.com/ghost-in-the-sushi/efficio-webapp/metrics/export/internaldefs"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no snapshot source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() efficio.MetricsSnapshot
	AuditDroppedByKind() map[efficio.AuditKind]uint64
}

// reading is what one collection cycle sees.
type reading struct {
	snapshot efficio.MetricsSnapshot
	dropped  map[efficio.AuditKind]uint64
}

type observeFunc func(metric.Observer, reading)

// OTelExporter publishes engine snapshots through observable instruments.
// Values are read on every collection; nothing is pushed between cycles.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	instruments []metric.Observable
	observers   []observeFunc
}

// NewOTelExporter registers instruments for engine on meter.
func NewOTelExporter(meter metric.Meter, engine *efficio.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments for any snapshot source.
//
// Each engine counter becomes an Int64ObservableCounter. The hash latency
// histogram becomes one cumulative gauge per bucket, a count gauge and a
// sum gauge in seconds. Audit drops are one counter with a kind attribute.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}

	for _, def := range internaldefs.CounterDefs {
		if err := e.counter(meter, def); err != nil {
			return nil, err
		}
	}
	for _, def := range internaldefs.HistogramDefs {
		if err := e.histogram(meter, def); err != nil {
			return nil, err
		}
	}
	if err := e.auditDrops(meter); err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		r := reading{
			snapshot: e.source.MetricsSnapshot(),
			dropped:  e.source.AuditDroppedByKind(),
		}
		for _, observe := range e.observers {
			observe(o, r)
		}
		return nil
	}, e.instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	e.registration = registration
	return e, nil
}

func (e *OTelExporter) add(ins metric.Observable, fn observeFunc) {
	e.instruments = append(e.instruments, ins)
	e.observers = append(e.observers, fn)
}

func (e *OTelExporter) counter(meter metric.Meter, def internaldefs.CounterDef) error {
	ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
	if err != nil {
		return fmt.Errorf("create observable counter %s: %w", def.Name, err)
	}
	e.add(ins, func(o metric.Observer, r reading) {
		o.ObserveInt64(ins, int64(r.snapshot.Counters[def.ID]))
	})
	return nil
}

func (e *OTelExporter) histogram(meter metric.Meter, def internaldefs.HistogramDef) error {
	for i := 0; i <= len(def.Bounds); i++ {
		name := def.Name + "_bucket_le_" + internaldefs.NameSuffix(def.Bounds, i)
		ins, err := meter.Int64ObservableGauge(name,
			metric.WithDescription("Samples at or below "+internaldefs.LeLabel(def.Bounds, i)+"s."))
		if err != nil {
			return fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
		}
		bucket := i
		e.add(ins, func(o metric.Observer, r reading) {
			cumulative := internaldefs.Cumulative(r.snapshot.Histograms[def.ID], def.Bounds)
			o.ObserveInt64(ins, int64(cumulative[bucket]))
		})
	}

	countName := def.Name + "_count"
	count, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
	if err != nil {
		return fmt.Errorf("create histogram count gauge %s: %w", countName, err)
	}
	e.add(count, func(o metric.Observer, r reading) {
		o.ObserveInt64(count, int64(r.snapshot.Histograms[def.ID].Count()))
	})

	sumName := def.Name + "_sum"
	sum, err := meter.Float64ObservableGauge(sumName,
		metric.WithDescription("Histogram total of observed values."),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("create histogram sum gauge %s: %w", sumName, err)
	}
	e.add(sum, func(o metric.Observer, r reading) {
		o.ObserveFloat64(sum, r.snapshot.Histograms[def.ID].Sum.Seconds())
	})

	return nil
}

func (e *OTelExporter) auditDrops(meter metric.Meter) error {
	ins, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return fmt.Errorf("create audit dropped counter: %w", err)
	}

	kinds := efficio.AuditKinds()
	attrs := make([]metric.ObserveOption, len(kinds))
	for i, kind := range kinds {
		attrs[i] = metric.WithAttributes(attribute.String("kind", kind.String()))
	}

	e.add(ins, func(o metric.Observer, r reading) {
		for i, kind := range kinds {
			o.ObserveInt64(ins, int64(r.dropped[kind]), attrs[i])
		}
	})
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
