package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type commandMetrics struct {
	commands *prometheus.CounterVec
	failures *prometheus.CounterVec
}

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	commandMetricsOnce sync.Once
	commandRegistry    *commandMetrics

	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Commands returns the lazily-initialised metrics registry used to record
// marketplace and campaign command activity.
func Commands() *commandMetrics {
	commandMetricsOnce.Do(func() {
		commandRegistry = &commandMetrics{
			commands: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "admarket",
				Subsystem: "module",
				Name:      "commands_total",
				Help:      "Total commands processed segmented by module and command.",
			}, []string{"module", "command", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "admarket",
				Subsystem: "module",
				Name:      "command_failures_total",
				Help:      "Total rejected commands segmented by module and failure reason.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(commandRegistry.commands, commandRegistry.failures)
	})
	return commandRegistry
}

// RecordCommand increments the command counter with a success/failure outcome.
func (m *commandMetrics) RecordCommand(module, command string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.failures.WithLabelValues(normalizeLabel(module), normalizeLabel(err.Error())).Inc()
	}
	m.commands.WithLabelValues(normalizeLabel(module), normalizeLabel(command), outcome).Inc()
}

// Events returns the metrics registry tracking journalled events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "admarket",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of journalled events segmented by event type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordEmitted increments the emitted counter for the supplied event type.
func (m *eventMetrics) RecordEmitted(eventType string) {
	if m == nil {
		return
	}
	m.emitted.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	if len(v) > 120 {
		v = v[:120]
	}
	return v
}
