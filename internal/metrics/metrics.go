// Package metrics exposes controller state in the Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/status"
)

const namespace = "traffic_light"

var modes = []logic.Mode{logic.ModeOff, logic.ModeEmergency, logic.ModeBlinking, logic.ModeNormal}

// Metrics owns a private registry. State gauges and activity counters
// read the tracker at scrape time; publish results are counted as they
// happen.
type Metrics struct {
	registry *prometheus.Registry
	publish  *prometheus.CounterVec
	reads    *prometheus.CounterVec
}

// New registers collectors backed by tracker.
func New(tracker *status.Tracker) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		publish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Outbound messages by sink and result.",
		}, []string{"sink", "result"}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hardware_read_errors_total",
			Help:      "Failed hardware reads by device.",
		}, []string{"device"}),
	}

	light := func(f func(status.Light) float64) func() float64 {
		return func() float64 { return f(tracker.Snapshot().Light) }
	}
	counter := func(name, help string, f func(status.Light) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: name, Help: help,
		}, light(f))
	}
	gauge := func(name, help string, f func(status.Light) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: name, Help: help,
		}, light(f))
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.publish,
		m.reads,
		gauge("phase", "Current traffic phase index.", func(l status.Light) float64 {
			return float64(l.Phase)
		}),
		gauge("brightness", "Brightness scaled from the dial, 0-255.", func(l status.Light) float64 {
			return float64(l.Brightness)
		}),
		counter("phase_advances_total", "Traffic phase transitions.", func(l status.Light) float64 {
			return float64(l.Counters.PhaseAdvances)
		}),
		counter("cycles_total", "Completed traffic cycles.", func(l status.Light) float64 {
			return float64(l.Counters.Cycles)
		}),
		counter("mode_changes_total", "Effective mode changes.", func(l status.Light) float64 {
			return float64(l.Counters.ModeChanges)
		}),
		counter("commands_total", "Recognised inbound commands.", func(l status.Light) float64 {
			return float64(l.Counters.Commands)
		}),
		counter("button_presses_total", "Accepted button presses.", func(l status.Light) float64 {
			return float64(l.Counters.ButtonPresses)
		}),
	)

	for _, mode := range modes {
		mode := mode
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "mode",
			Help:        "1 for the active operating mode.",
			ConstLabels: prometheus.Labels{"mode": string(mode)},
		}, light(func(l status.Light) float64 {
			if l.Flags.Mode() == mode {
				return 1
			}
			return 0
		})))
	}

	return m
}

// Published counts one outbound message to sink.
func (m *Metrics) Published(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.publish.WithLabelValues(sink, result).Inc()
}

// ReadFailed counts a failed read from device.
func (m *Metrics) ReadFailed(device string) {
	m.reads.WithLabelValues(device).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
