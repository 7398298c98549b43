package stats

import "github.com/prometheus/client_golang/prometheus"

// PrometheusObserver exports operation outcomes as Prometheus counters,
// labelled by operation and outcome.
type PrometheusObserver struct {
	operations *prometheus.CounterVec
	bulk       *prometheus.CounterVec
}

// NewPrometheusObserver creates the counters under the given namespace and
// registers them with reg.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Cache operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		bulk: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_bulk_entries_total",
			Help:      "Entries touched by bulk cache operations",
		}, []string{"op"}),
	}
	reg.MustRegister(o.operations, o.bulk)
	return o
}

func (o *PrometheusObserver) Get(outcome GetOutcome) {
	o.operations.WithLabelValues("get", string(outcome)).Inc()
}

func (o *PrometheusObserver) Put(outcome PutOutcome) {
	o.operations.WithLabelValues("put", string(outcome)).Inc()
}

func (o *PrometheusObserver) Remove(outcome RemoveOutcome) {
	o.operations.WithLabelValues("remove", string(outcome)).Inc()
}

func (o *PrometheusObserver) Replace(outcome ReplaceOutcome) {
	o.operations.WithLabelValues("replace", string(outcome)).Inc()
}

func (o *PrometheusObserver) ConditionalRemove(outcome ConditionalRemoveOutcome) {
	o.operations.WithLabelValues("conditional_remove", string(outcome)).Inc()
}

func (o *PrometheusObserver) Bulk(op BulkOp, count int) {
	o.bulk.WithLabelValues(string(op)).Add(float64(count))
}
