package xmlidx

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "xmlidx"

// indexMetrics holds the collectors of one ValueIndex. They are registered
// only when Options.Registerer is set, but always updated.
type indexMetrics struct {
	EntriesWritten *prometheus.CounterVec
	EntriesSkipped *prometheus.CounterVec
	ScansTotal     *prometheus.CounterVec
	ScanDuration   *prometheus.HistogramVec
}

func newIndexMetrics(reg prometheus.Registerer) (*indexMetrics, error) {
	m := &indexMetrics{
		EntriesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "entries_written_total",
				Help:      "Index keys written by flush, reindex, remove and drop operations.",
			},
			[]string{"op"},
		),
		EntriesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "entries_skipped_total",
				Help:      "Index entries skipped because of a collision, an unsupported value or a failed write.",
			},
			[]string{"op"},
		),
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "scans_total",
				Help:      "Index scans by kind (find, match, keys).",
			},
			[]string{"kind"},
		),
		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "scan_duration_seconds",
				Help:      "Index scan latency in seconds.",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		var err error
		if m.EntriesWritten, err = register(reg, m.EntriesWritten); err != nil {
			return nil, err
		}
		if m.EntriesSkipped, err = register(reg, m.EntriesSkipped); err != nil {
			return nil, err
		}
		if m.ScansTotal, err = register(reg, m.ScansTotal); err != nil {
			return nil, err
		}
		if m.ScanDuration, err = register(reg, m.ScanDuration); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// register adds c to reg. When an identical collector is already there,
// e.g. from an index opened earlier in the same process, that one is
// shared instead.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

func (m *indexMetrics) written(op string) {
	m.EntriesWritten.WithLabelValues(op).Inc()
}

func (m *indexMetrics) skipped(op string) {
	m.EntriesSkipped.WithLabelValues(op).Inc()
}

func (m *indexMetrics) scanned(kind string, start time.Time) {
	m.ScansTotal.WithLabelValues(kind).Inc()
	m.ScanDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
