package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure PrometheusFactory implements MetricFactory.
var _ MetricFactory = (*PrometheusFactory)(nil)

// PrometheusFactory is a MetricFactory that registers collectors with a
// Prometheus registry. Dotted names become underscored, and counters gain
// the _total suffix. Asking twice for the same name returns the same
// collector.
type PrometheusFactory struct {
	namespace string
	factory   promauto.Factory

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusFactory creates a factory registering with registry. A nil
// registry uses prometheus.DefaultRegisterer.
func NewPrometheusFactory(namespace string, registry prometheus.Registerer) *PrometheusFactory {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &PrometheusFactory{
		namespace:  namespace,
		factory:    promauto.With(registry),
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter implements MetricFactory.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := f.factory.NewCounter(prometheus.CounterOpts{
		Namespace: f.namespace,
		Name:      metricName(name) + "_total",
		Help:      "Total " + strings.ReplaceAll(name, ".", " "),
	})
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := f.factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: f.namespace,
		Name:      metricName(name),
		Help:      "Distribution of " + strings.ReplaceAll(name, ".", " "),
		Buckets:   prometheus.ExponentialBuckets(1, 4, 12), // 1 to ~4M tokens
	})
	f.histograms[name] = h
	return h
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
