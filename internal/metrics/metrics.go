package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/docsync/internal/core"
)

// Collector counts fetch outcomes and mutations per collection.
type Collector struct {
	fetches   *prometheus.CounterVec
	records   *prometheus.CounterVec
	mutations *prometheus.CounterVec
}

var (
	_ core.MutationHook  = (*Collector)(nil)
	_ core.FetchObserver = (*Collector)(nil)
)

// NewCollector creates the counters and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docsync_fetch_total",
			Help: "One-shot fetches by collection and outcome",
		}, []string{"collection", "outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docsync_fetched_records_total",
			Help: "Records returned by successful fetches",
		}, []string{"collection"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docsync_mutations_total",
			Help: "Successful creates and deletes",
		}, []string{"collection", "op"}),
	}
	for _, col := range []prometheus.Collector{c.fetches, c.records, c.mutations} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Outcome labels a fetch result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrNoData):
		return "no_data"
	case errors.Is(err, core.ErrUnsupportedOperation):
		return "unsupported"
	default:
		return "error"
	}
}

func (c *Collector) FetchCompleted(collection string, records int, err error) {
	c.fetches.WithLabelValues(collection, Outcome(err)).Inc()
	if err == nil {
		c.records.WithLabelValues(collection).Add(float64(records))
	}
}

func (c *Collector) RecordCreated(_ context.Context, collection, _ string, _ map[string]any) error {
	c.mutations.WithLabelValues(collection, "create").Inc()
	return nil
}

func (c *Collector) RecordDeleted(_ context.Context, collection, _ string) error {
	c.mutations.WithLabelValues(collection, "delete").Inc()
	return nil
}
