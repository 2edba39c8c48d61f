package cloudmetrics

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	workflowsFiled    *prometheus.CounterVec
	registrySyncs     *prometheus.CounterVec
	registrySyncFails *prometheus.CounterVec
	activeClients     *prometheus.GaugeVec
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		workflowsFiled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "practicehub_workflows_filed_total",
			Help: "Workflows that reached their filed milestone.",
		}, []string{"workflow_type"}),
		registrySyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "practicehub_registry_syncs_total",
			Help: "Successful Companies House profile refreshes.",
		}, []string{"source"}),
		registrySyncFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "practicehub_registry_sync_failures_total",
			Help: "Companies House refreshes that returned an error.",
		}, []string{"operation"}),
		activeClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "practicehub_active_clients",
			Help: "Active (non soft-deleted) clients by company category.",
		}, []string{"category"}),
	}
	if registry != nil {
		registry.MustRegister(m.workflowsFiled, m.registrySyncs, m.registrySyncFails, m.activeClients)
	}
	return m
}
