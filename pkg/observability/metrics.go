package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Save outcomes recorded by ObserveCheckpointSave.
const (
	SaveOK     = "ok"
	SaveForced = "forced"
	SaveFailed = "failed"
)

// Metrics groups all Prometheus instruments used by the engine.
type Metrics struct {
	Turns           *prometheus.CounterVec
	ModelCalls      *prometheus.CounterVec
	ModelLatency    *prometheus.HistogramVec
	CheckpointSaves *prometheus.CounterVec
	QuizzesDone     prometheus.Counter
	FidelitySamples *prometheus.CounterVec
	FidelityScore   prometheus.Histogram
}

// NewMetrics registers the instruments on reg. Pass prometheus.DefaultRegisterer
// to expose them through the default handler.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by resolved route.",
		}, []string{"route"}),
		ModelCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Generation model calls by workflow, purpose and outcome.",
		}, []string{"workflow", "purpose", "outcome"}),
		ModelLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_seconds",
			Help:      "Generation model latency by workflow.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"workflow"}),
		CheckpointSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_saves_total",
			Help:      "Checkpoint saves by workflow and outcome (ok, forced, failed).",
		}, []string{"workflow", "outcome"}),
		QuizzesDone: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quizzes_completed_total",
			Help:      "Quizzes that reached completion.",
		}),
		FidelitySamples: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fidelity_samples_total",
			Help:      "Fidelity checks by outcome (scored, unparsed, error).",
		}, []string{"outcome"}),
		FidelityScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fidelity_score",
			Help:      "Distribution of sampled fidelity scores.",
			Buckets:   []float64{0.2, 0.4, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		}),
	}
}

func (m *Metrics) ObserveTurn(route string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(route).Inc()
}

// ObserveModelCall records one generation call.
func (m *Metrics) ObserveModelCall(workflow, purpose string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ModelCalls.WithLabelValues(workflow, purpose, outcome).Inc()
	m.ModelLatency.WithLabelValues(workflow).Observe(d.Seconds())
}

func (m *Metrics) ObserveCheckpointSave(workflow, outcome string) {
	if m == nil {
		return
	}
	m.CheckpointSaves.WithLabelValues(workflow, outcome).Inc()
}

func (m *Metrics) ObserveQuizCompleted() {
	if m == nil {
		return
	}
	m.QuizzesDone.Inc()
}

// ObserveFidelity records a fidelity check. score is nil when none was produced.
func (m *Metrics) ObserveFidelity(score *float64, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.FidelitySamples.WithLabelValues("error").Inc()
	case score == nil:
		m.FidelitySamples.WithLabelValues("unparsed").Inc()
	default:
		m.FidelitySamples.WithLabelValues("scored").Inc()
		m.FidelityScore.Observe(*score)
	}
}
