// Package metrics exposes double buffer and stress harness counters to
// Prometheus.
package metrics

import (
	"github.com/momentics/hioload-dbuf/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dbuf"

// StatsSource is anything that reports double buffer counters.
type StatsSource interface {
	Stats() api.DoubleBufferStats
}

// BufferCollector reads a StatsSource on every scrape.
type BufferCollector struct {
	src StatsSource

	puts       *prometheus.Desc
	clears     *prometheus.Desc
	rejected   *prometheus.Desc
	generation *prometheus.Desc
	size       *prometheus.Desc
	current    *prometheus.Desc
}

// NewBufferCollector builds a collector over src.
func NewBufferCollector(src StatsSource) *BufferCollector {
	return &BufferCollector{
		src:        src,
		puts:       prometheus.NewDesc(namespace+"_puts_total", "Total number of successful puts", nil, nil),
		clears:     prometheus.NewDesc(namespace+"_clears_total", "Total number of clears", nil, nil),
		rejected:   prometheus.NewDesc(namespace+"_rejected_total", "Total number of puts rejected for a length mismatch", nil, nil),
		generation: prometheus.NewDesc(namespace+"_generation", "Number of publications so far", nil, nil),
		size:       prometheus.NewDesc(namespace+"_size_bytes", "Fixed slot size", []string{"mapped"}, nil),
		current:    prometheus.NewDesc(namespace+"_current_slot", "Index of the reader-visible slot", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *BufferCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.puts
	ch <- c.clears
	ch <- c.rejected
	ch <- c.generation
	ch <- c.size
	ch <- c.current
}

// Collect implements prometheus.Collector.
func (c *BufferCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	mapped := "false"
	if st.Mapped {
		mapped = "true"
	}
	ch <- prometheus.MustNewConstMetric(c.puts, prometheus.CounterValue, float64(st.Puts))
	ch <- prometheus.MustNewConstMetric(c.clears, prometheus.CounterValue, float64(st.Clears))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(st.Rejected))
	ch <- prometheus.MustNewConstMetric(c.generation, prometheus.GaugeValue, float64(st.Generation))
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(st.Size), mapped)
	ch <- prometheus.MustNewConstMetric(c.current, prometheus.GaugeValue, float64(st.Current))
}

// Metrics holds the stress harness metrics.
type Metrics struct {
	Reads       *prometheus.CounterVec // by outcome: ok, torn, overrun
	PublishRate prometheus.Gauge
	ReadRate    prometheus.Gauge
}

// NewMetrics creates and registers the harness metrics and a collector over
// src on registry.
func NewMetrics(registry prometheus.Registerer, src StatsSource) *Metrics {
	factory := promauto.With(registry)
	registry.MustRegister(NewBufferCollector(src))

	return &Metrics{
		Reads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stress_reads_total",
				Help:      "Total number of reads by outcome",
			},
			[]string{"outcome"},
		),
		PublishRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stress_publish_rate",
			Help:      "Moving average of publications per second",
		}),
		ReadRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stress_read_rate",
			Help:      "Moving average of reads per second",
		}),
	}
}

// AddReads records n reads with the given outcome.
func (m *Metrics) AddReads(outcome string, n uint64) {
	if n == 0 {
		return
	}
	m.Reads.WithLabelValues(outcome).Add(float64(n))
}

// Read outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeTorn    = "torn"
	OutcomeOverrun = "overrun"
)
