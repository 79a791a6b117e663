// Package metrics holds the Prometheus collectors of the emotion-check backend.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "emotion_check"

// Frame analysis outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics owns a registry so tests and multiple servers do not collide.
type Metrics struct {
	registry *prometheus.Registry

	sessionsCreated  prometheus.Counter
	framesUploaded   prometheus.Counter
	framesSkipped    prometheus.Counter
	framesAnalyzed   *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them together with the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of analysis sessions created",
		}),
		framesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_uploaded_total",
			Help:      "Total number of frames stored",
		}),
		framesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_skipped_total",
			Help:      "Total number of uploaded frames that could not be decoded",
		}),
		framesAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_analyzed_total",
			Help:      "Total number of frames sent to the classifier",
		}, []string{"classifier", "outcome"}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a whole session analysis in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"classifier"}),
	}

	m.registry.MustRegister(
		m.sessionsCreated,
		m.framesUploaded,
		m.framesSkipped,
		m.framesAnalyzed,
		m.analysisDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) SessionCreated() {
	m.sessionsCreated.Inc()
}

// FramesUploaded records stored and skipped frames of one upload.
func (m *Metrics) FramesUploaded(saved, skipped int) {
	m.framesUploaded.Add(float64(saved))
	m.framesSkipped.Add(float64(skipped))
}

func (m *Metrics) FrameAnalyzed(classifier, outcome string) {
	m.framesAnalyzed.WithLabelValues(classifier, outcome).Inc()
}

func (m *Metrics) AnalysisDuration(classifier string, d time.Duration) {
	m.analysisDuration.WithLabelValues(classifier).Observe(d.Seconds())
}
