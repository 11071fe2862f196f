package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace for all metrics
	namespace = "robocourier"
	// Subsystem for control plane metrics
	subsystem = "control_plane"
)

// Registry is the global Prometheus registry for all metrics
var Registry *prometheus.Registry

// InitRegistry initializes the Prometheus registry.
// Should be called once at application startup if metrics are enabled.
func InitRegistry() {
	Registry = prometheus.NewRegistry()
}

// GetRegistry returns the global Prometheus registry.
// Returns nil if metrics are not initialized.
func GetRegistry() *prometheus.Registry {
	return Registry
}

// IsEnabled returns true if metrics collection is enabled
func IsEnabled() bool {
	return Registry != nil
}

// FleetMetricsCollector records the control plane's domain events:
// shipment dispatches, notification outcomes, robot move commands and
// token transitions.
type FleetMetricsCollector struct {
	shipmentsTotal     *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	moveCommandsTotal  *prometheus.CounterVec
	tokenEventsTotal   *prometheus.CounterVec
}

// NewFleetMetricsCollector creates the collector and registers its metrics
// with the given registry.
func NewFleetMetricsCollector(registry *prometheus.Registry) *FleetMetricsCollector {
	c := &FleetMetricsCollector{
		shipmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "shipments_total",
				Help:      "Shipment requests by result",
			},
			[]string{"result"},
		),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "notifications_total",
				Help:      "Robot notification elements by outcome",
			},
			[]string{"outcome"},
		),
		moveCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "move_commands_total",
				Help:      "Robot move commands by command and result",
			},
			[]string{"cmd", "result"},
		),
		tokenEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "token_events_total",
				Help:      "Token transitions by mode",
			},
			[]string{"mode"},
		),
	}

	registry.MustRegister(
		c.shipmentsTotal,
		c.notificationsTotal,
		c.moveCommandsTotal,
		c.tokenEventsTotal,
	)
	return c
}

// RecordShipment records one shipment request outcome
func (c *FleetMetricsCollector) RecordShipment(result string) {
	c.shipmentsTotal.WithLabelValues(result).Inc()
}

// RecordNotification records one notification element outcome
func (c *FleetMetricsCollector) RecordNotification(outcome string) {
	c.notificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordMoveCommand records one robot move command and its handshake result
func (c *FleetMetricsCollector) RecordMoveCommand(cmd, result string) {
	c.moveCommandsTotal.WithLabelValues(cmd, result).Inc()
}

// RecordTokenEvent records one token transition
func (c *FleetMetricsCollector) RecordTokenEvent(mode string) {
	c.tokenEventsTotal.WithLabelValues(mode).Inc()
}
