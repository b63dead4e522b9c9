package domfile

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type fileMetrics struct {
	NodesIterated prometheus.Counter
	PagesRead     *prometheus.CounterVec
}

func newFileMetrics(reg prometheus.Registerer) (*fileMetrics, error) {
	m := &fileMetrics{
		NodesIterated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmlidx",
			Subsystem: "domfile",
			Name:      "nodes_iterated_total",
			Help:      "Node records returned by page file iterators.",
		}),
		PagesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xmlidx",
			Subsystem: "domfile",
			Name:      "pages_read_total",
			Help:      "Page file pages decoded, by page type.",
		}, []string{"type"}),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	if m.NodesIterated, err = register(reg, m.NodesIterated); err != nil {
		return nil, err
	}
	if m.PagesRead, err = register(reg, m.PagesRead); err != nil {
		return nil, err
	}
	return m, nil
}

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
