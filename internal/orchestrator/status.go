package orchestrator

import "github.com/ramiqadoumi/go-pricing-agents/internal/domain"

// Status aggregates every runtime's status and metrics.
func (o *Orchestrator) Status() domain.SystemStatus {
	st := domain.SystemStatus{
		Timestamp:   o.now(),
		Agents:      make(map[string]domain.AgentView, len(o.order)),
		TotalAgents: len(o.order),
		Pending:     o.Pending(),
	}
	for _, name := range o.order {
		v := o.runtimes[name].View()
		st.Agents[name] = v
		if v.Enabled {
			st.ActiveAgents++
		}
	}
	return st
}

// Snapshot implements telemetry.StatusProvider.
func (o *Orchestrator) Snapshot() any { return o.Status() }

// Agent implements telemetry.StatusProvider.
func (o *Orchestrator) Agent(name string) (any, bool) {
	rt, ok := o.runtimes[name]
	if !ok {
		return nil, false
	}
	return rt.View(), true
}
