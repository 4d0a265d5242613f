package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Sink backed by a dedicated registry. Each run (or each
// caller sharing one Admission) typically owns one instance; HTTP
// exposition of the registry is a CLI/bootstrap concern (spec §1,
// explicitly out of scope here).
type Prometheus struct {
	registry *prometheus.Registry

	chunksIn      prometheus.Counter
	chunksOut     prometheus.Counter
	bytesIn       prometheus.Counter
	bytesOut      prometheus.Counter
	errors        prometheus.Counter
	chunkDuration prometheus.Histogram
	stageDuration *prometheus.HistogramVec
}

// NewPrometheus builds a Prometheus sink registered against a fresh
// registry, returned alongside the sink so a caller can expose it.
func NewPrometheus(namespace string) (*Prometheus, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		chunksIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "chunks_in_total",
			Help: "Chunks read from the input stream.",
		}),
		chunksOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "chunks_out_total",
			Help: "Chunks written to the output stream.",
		}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_in_total",
			Help: "Plaintext bytes read from the input stream.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_out_total",
			Help: "Bytes written to the output stream.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total",
			Help: "Fatal errors observed by the pipeline.",
		}),
		chunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "chunk_duration_seconds",
			Help:    "Wall time spent processing one chunk end to end.",
			Buckets: prometheus.DefBuckets,
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_duration_seconds",
			Help:    "Wall time spent in one stage kind/algorithm.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "algorithm"}),
	}
	reg.MustRegister(p.chunksIn, p.chunksOut, p.bytesIn, p.bytesOut, p.errors, p.chunkDuration, p.stageDuration)
	return p, reg
}

func (p *Prometheus) ChunksIn(n uint64)  { p.chunksIn.Add(float64(n)) }
func (p *Prometheus) ChunksOut(n uint64) { p.chunksOut.Add(float64(n)) }
func (p *Prometheus) BytesIn(n uint64)   { p.bytesIn.Add(float64(n)) }
func (p *Prometheus) BytesOut(n uint64)  { p.bytesOut.Add(float64(n)) }
func (p *Prometheus) Errors(n uint64)    { p.errors.Add(float64(n)) }

func (p *Prometheus) ChunkDuration(d time.Duration) {
	p.chunkDuration.Observe(d.Seconds())
}

func (p *Prometheus) StageDuration(kind, algorithm string, d time.Duration) {
	p.stageDuration.WithLabelValues(kind, algorithm).Observe(d.Seconds())
}
