// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servicedesk_tickets_created_total",
			Help: "Tickets created and routed to a technician",
		},
	)
	TicketsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servicedesk_tickets_resolved_total",
			Help: "Tickets moved to Completed",
		},
	)
	RoutingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servicedesk_routing_unresolved_total",
			Help: "Ticket creations rejected because no technician could be resolved",
		},
	)
	EquipmentImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servicedesk_equipment_imported_total",
			Help: "Equipment rows accepted by bulk import",
		},
	)
	ImportsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servicedesk_imports_rejected_total",
			Help: "Bulk imports rolled back by the store",
		},
	)
	ProjectionReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servicedesk_projection_reloads_total",
			Help: "Successful full projection reloads",
		},
	)
	ProjectionReloadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servicedesk_projection_reload_failures_total",
			Help: "Projection reloads that kept the last known good state",
		},
	)
	ConnectedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "servicedesk_ws_sessions",
			Help: "Open realtime sessions",
		},
	)
)
