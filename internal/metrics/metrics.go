// Package metrics exposes ingestion and store counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/steplogs/viewer/internal/models"
	"github.com/steplogs/viewer/internal/store"
)

const namespace = "sfnlogs"

// Collector records the outcome of ingestion runs.
// It implements ingest.Observer.
type Collector struct {
	runs         *prometheus.CounterVec
	lines        prometheus.Counter
	accepted     prometheus.Counter
	inserted     prometheus.Counter
	decodeErrors prometheus.Counter
	duration     prometheus.Histogram
	lastSuccess  prometheus.Gauge
}

// NewCollector creates the collectors and registers them, together with a
// gauge reporting the store size, on reg.
func NewCollector(reg prometheus.Registerer, st *store.LogStore) (*Collector, error) {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by final status.",
		}, []string{"status"}),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_lines_total",
			Help:      "Decoded stdout lines read from the container.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_accepted_total",
			Help:      "Lines accepted as state machine records.",
		}),
		inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_inserted_total",
			Help:      "Accepted records stored under a new date key.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_decode_errors_total",
			Help:      "Chunks skipped because they could not be decoded.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Wall time of ingestion runs that opened a stream.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_last_success_timestamp_seconds",
			Help:      "Unix time of the last run that completed.",
		}),
	}

	size := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "store_records",
		Help:      "Records currently held in memory.",
	}, func() float64 { return float64(st.Len()) })

	for _, col := range []prometheus.Collector{
		c.runs, c.lines, c.accepted, c.inserted, c.decodeErrors, c.duration, c.lastSuccess, size,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveRun implements ingest.Observer.
func (c *Collector) ObserveRun(run models.IngestRun) {
	c.runs.WithLabelValues(string(run.Status)).Inc()
	if run.Status == models.RunStatusSkipped {
		return
	}
	c.lines.Add(float64(run.Lines))
	c.accepted.Add(float64(run.Accepted))
	c.inserted.Add(float64(run.Inserted))
	c.decodeErrors.Add(float64(run.DecodeErrors))
	c.duration.Observe(run.Duration().Seconds())
	if run.Status == models.RunStatusComplete {
		c.lastSuccess.Set(float64(run.EndedAt.Unix()))
	}
}
