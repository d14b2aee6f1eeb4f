package sequencer

import (
	"github.com/prometheus/client_golang/prometheus"

	"modelboot/pkg/types"
)

var allPhases = []types.Phase{
	types.PhaseStartingDaemon,
	types.PhaseWaitingReady,
	types.PhaseCheckingModel,
	types.PhasePullingModel,
	types.PhaseServing,
	types.PhaseFailed,
}

// Metrics instruments a run. Only meaningful while the sequencer process is
// alive, i.e. before an exec hand-off or for the whole life of a spawn one.
type Metrics struct {
	probes       *prometheus.CounterVec
	pulls        *prometheus.CounterVec
	phase        *prometheus.GaugeVec
	readySeconds prometheus.Gauge
}

// NewMetrics registers the sequencer collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "modelboot",
				Subsystem: "readiness",
				Name:      "probes_total",
				Help:      "Readiness probes issued against the model daemon",
			},
			[]string{"result"},
		),
		pulls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "modelboot",
				Subsystem: "model",
				Name:      "pulls_total",
				Help:      "Model pulls attempted",
			},
			[]string{"result"},
		),
		phase: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "modelboot",
				Name:      "phase",
				Help:      "1 for the current startup phase, 0 otherwise",
			},
			[]string{"phase"},
		),
		readySeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "modelboot",
				Subsystem: "readiness",
				Name:      "wait_seconds",
				Help:      "Time spent waiting for the model daemon to become ready",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.probes, m.pulls, m.phase, m.readySeconds)
	}
	return m
}

func (m *Metrics) setPhase(p types.Phase) {
	if m == nil {
		return
	}
	for _, ph := range allPhases {
		v := 0.0
		if ph == p {
			v = 1
		}
		m.phase.WithLabelValues(string(ph)).Set(v)
	}
}

func (m *Metrics) probe(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.probes.WithLabelValues("fail").Inc()
		return
	}
	m.probes.WithLabelValues("ok").Inc()
}

func (m *Metrics) pull(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.pulls.WithLabelValues("fail").Inc()
		return
	}
	m.pulls.WithLabelValues("ok").Inc()
}

func (m *Metrics) readyAfter(seconds float64) {
	if m == nil {
		return
	}
	m.readySeconds.Set(seconds)
}
