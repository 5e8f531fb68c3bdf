// Package metrics exposes research and ingestion counters in Prometheus
// format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/docresearch/internal/research"
)

const namespace = "docresearch"

// Research outcomes.
const (
	OutcomeConverged = "converged"
	OutcomeExhausted = "exhausted"
)

// Recorder owns a private registry. It implements research.Observer.
type Recorder struct {
	registry *prom.Registry

	research    *prom.CounterVec
	iterations  prom.Histogram
	sufficiency prom.Histogram
	evidence    prom.Histogram
	parsed      *prom.CounterVec
	requests    *prom.CounterVec
	latency     *prom.HistogramVec
}

// New registers every collector, plus Go runtime and process collectors, on
// a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prom.NewRegistry(),
		research: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "research_total",
			Help:      "Completed research runs by outcome.",
		}, []string{"outcome"}),
		iterations: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "research_iterations",
			Help:      "Search/refine iterations per research run.",
			Buckets:   prom.LinearBuckets(1, 1, 10),
		}),
		sufficiency: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "research_sufficiency",
			Help:      "Final sufficiency score per research run.",
			Buckets:   prom.LinearBuckets(0.1, 0.1, 10),
		}),
		evidence: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "research_evidence",
			Help:      "Evidence pool size per research run.",
			Buckets:   prom.ExponentialBuckets(1, 2, 8),
		}),
		parsed: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "documents_parsed_total",
			Help:      "Documents parsed by status.",
		}, []string{"status"}),
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prom.DefBuckets,
		}, []string{"route"}),
	}
	r.registry.MustRegister(
		r.research, r.iterations, r.sufficiency, r.evidence,
		r.parsed, r.requests, r.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) DocumentParsed(docID string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	r.parsed.WithLabelValues(status).Inc()
}

func (r *Recorder) ResearchCompleted(o *research.Outcome) {
	outcome := OutcomeExhausted
	if o.Converged {
		outcome = OutcomeConverged
	}
	r.research.WithLabelValues(outcome).Inc()
	r.iterations.Observe(float64(o.Iterations))
	r.sufficiency.Observe(o.Sufficiency)
	r.evidence.Observe(float64(len(o.Evidence)))
}

// ObserveRequest records one served HTTP request.
func (r *Recorder) ObserveRequest(method, route string, code int, d time.Duration) {
	r.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.latency.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prom.Registry { return r.registry }
