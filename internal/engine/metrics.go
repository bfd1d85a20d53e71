package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports engine activity as Prometheus series. It is an Observer;
// Track additionally exposes an engine's inbox depth.
type Metrics struct {
	reg         prometheus.Registerer
	transitions *prometheus.CounterVec
	discards    *prometheus.CounterVec
	displays    *prometheus.CounterVec
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsmrt_transitions_total",
				Help: "Committed transitions per engine.",
			},
			[]string{"engine", "from", "to"},
		),
		discards: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsmrt_discards_total",
				Help: "Events that matched no transition.",
			},
			[]string{"engine", "event"},
		),
		displays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsmrt_displays_total",
				Help: "Display control events handled.",
			},
			[]string{"engine"},
		),
	}
}

// Track exposes e's inbox length as fsmrt_queue_depth{engine=...}.
func (m *Metrics) Track(e *Engine) {
	promauto.With(m.reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "fsmrt_queue_depth",
			Help:        "Events waiting in an engine inbox.",
			ConstLabels: prometheus.Labels{"engine": e.Name()},
		},
		func() float64 { return float64(e.QueueLen()) },
	)
}

// Transitioned, Displayed and Discarded implement Observer.
func (m *Metrics) Transitioned(r TransitionRecord) {
	m.transitions.WithLabelValues(r.Engine, string(r.From), string(r.To)).Inc()
}

func (m *Metrics) Displayed(r DisplayRecord) {
	m.displays.WithLabelValues(r.Engine).Inc()
}

func (m *Metrics) Discarded(r DiscardRecord) {
	m.discards.WithLabelValues(r.Engine, string(r.Event)).Inc()
}

// TrackOneShots exposes the number of pending one-shot deliveries as
// fsmrt_oneshots_pending.
func (m *Metrics) TrackOneShots(pending func() int64) {
	promauto.With(m.reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "fsmrt_oneshots_pending",
			Help: "One-shot delayed events scheduled but not yet delivered.",
		},
		func() float64 { return float64(pending()) },
	)
}
