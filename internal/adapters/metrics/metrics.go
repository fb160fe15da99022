package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Xean001/tubedrop/internal/core/domain"
	"github.com/Xean001/tubedrop/internal/core/ports"
)

const namespace = "tubedrop"

// Recorder implements ports.Observer on top of a Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	items      *prometheus.CounterVec
	runs       *prometheus.HistogramVec
	bytes      prometheus.Counter
	deliveries *prometheus.CounterVec
}

var _ ports.Observer = (*Recorder)(nil)

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Processed media items by workflow, status and error kind.",
		}, []string{"workflow", "status", "kind"}),
		runs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of orchestration runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"workflow", "link_kind"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieved_bytes_total",
			Help:      "Bytes copied from the provider.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "On-demand file responses by result.",
		}, []string{"result"}),
	}
	r.registry.MustRegister(
		r.items, r.runs, r.bytes, r.deliveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ItemFinished(workflow domain.Workflow, status domain.ResultStatus, kind domain.Kind) {
	r.items.WithLabelValues(string(workflow), string(status), string(kind)).Inc()
}

func (r *Recorder) RunFinished(workflow domain.Workflow, kind domain.LinkKind, took time.Duration) {
	r.runs.WithLabelValues(string(workflow), kind.String()).Observe(took.Seconds())
}

func (r *Recorder) BytesRetrieved(n int64) {
	r.bytes.Add(float64(n))
}

// Delivered counts one on-demand response ("served", "failed", "aborted").
func (r *Recorder) Delivered(result string) {
	r.deliveries.WithLabelValues(result).Inc()
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
