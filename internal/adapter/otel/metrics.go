package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agentmux"

// Metrics holds all agentmux metric instruments.
type Metrics struct {
	AgentsRegistered     metric.Int64Counter
	CascadesResolved     metric.Int64Counter
	DispatchesEmitted    metric.Int64Counter
	DispatchesSuppressed metric.Int64Counter
	PermissionDenials    metric.Int64Counter
	ReplayWarnings       metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.AgentsRegistered, err = meter.Int64Counter("agentmux.agents.registered",
		metric.WithDescription("Number of agents registered"))
	if err != nil {
		return nil, err
	}

	m.CascadesResolved, err = meter.Int64Counter("agentmux.cascades.resolved",
		metric.WithDescription("Number of cascading messages resolved"))
	if err != nil {
		return nil, err
	}

	m.DispatchesEmitted, err = meter.Int64Counter("agentmux.dispatches.emitted",
		metric.WithDescription("Number of dispatches emitted"))
	if err != nil {
		return nil, err
	}

	m.DispatchesSuppressed, err = meter.Int64Counter("agentmux.dispatches.suppressed",
		metric.WithDescription("Number of duplicate dispatches suppressed"))
	if err != nil {
		return nil, err
	}

	m.PermissionDenials, err = meter.Int64Counter("agentmux.permissions.denied",
		metric.WithDescription("Number of tool-permission denials"))
	if err != nil {
		return nil, err
	}

	m.ReplayWarnings, err = meter.Int64Counter("agentmux.replay.warnings",
		metric.WithDescription("Number of malformed or unresolvable records encountered during journal replay"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
