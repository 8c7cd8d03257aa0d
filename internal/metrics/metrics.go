// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set bundles every metric the subsystem records. A nil *Set is valid and
// drops all observations, so components never need to nil-check.
type Set struct {
	registry *prometheus.Registry

	commands     *prometheus.CounterVec
	interrupts   prometheus.Counter
	busyRestarts prometheus.Counter
	backlight    prometheus.Gauge
	mode         *prometheus.GaugeVec
}

// NewSet creates and registers the metric set on a fresh registry.
func NewSet() *Set {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Set{
		registry: registry,
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dpstd_commands_total",
			Help: "Dispatched DPST commands by kind and result.",
		}, []string{"command", "result"}),
		interrupts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dpstd_histogram_interrupts_total",
			Help: "Histogram interrupts delivered to the notification bus.",
		}),
		busyRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dpstd_histogram_busy_restarts_total",
			Help: "Histogram readout scans restarted because the engine reported busy.",
		}),
		backlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dpstd_backlight_level",
			Help: "Raw backlight level last written to hardware.",
		}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dpstd_mode",
			Help: "Current enable-arbiter mode (1 for the active mode).",
		}, []string{"mode"}),
	}

	registry.MustRegister(s.commands, s.interrupts, s.busyRestarts, s.backlight, s.mode)
	return s
}

// Handler returns the HTTP handler serving the registry.
func (s *Set) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// ObserveCommand counts one dispatched command.
func (s *Set) ObserveCommand(command string, err error) {
	if s == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.commands.WithLabelValues(command, result).Inc()
}

// InterruptDelivered counts one histogram interrupt notification.
func (s *Set) InterruptDelivered() {
	if s == nil {
		return
	}
	s.interrupts.Inc()
}

// HistogramBusyRestart counts one busy-triggered scan restart.
func (s *Set) HistogramBusyRestart() {
	if s == nil {
		return
	}
	s.busyRestarts.Inc()
}

// SetBacklightLevel records the raw level last written to hardware.
func (s *Set) SetBacklightLevel(level uint32) {
	if s == nil {
		return
	}
	s.backlight.Set(float64(level))
}

// SetMode marks the active arbiter mode.
func (s *Set) SetMode(active string, all []string) {
	if s == nil {
		return
	}
	for _, m := range all {
		v := 0.0
		if m == active {
			v = 1.0
		}
		s.mode.WithLabelValues(m).Set(v)
	}
}
