package coordinator

import (
	"stock-agents/internal/config"
	"stock-agents/internal/models"
)

// step is one phase of a plan and the agents it runs.
type step struct {
	phase    models.Phase
	agents   []string
	parallel bool
}

// plan is the ordered execution topology of a run.
type plan struct {
	steps     []step
	feedback  bool
	emergency bool
}

// agentPhase is the phase each agent belongs to.
var agentPhase = map[string]models.Phase{
	config.AgentIngestion:       models.PhaseIngesting,
	config.AgentPattern:         models.PhaseAnalyzing,
	config.AgentSegmentation:    models.PhaseAnalyzing,
	config.AgentForecasting:     models.PhaseForecasting,
	config.AgentOptimization:    models.PhaseOptimizing,
	config.AgentAlerts:          models.PhaseAlerting,
	config.AgentRecommendations: models.PhaseRecommending,
	config.AgentKPI:             models.PhaseAggregating,
}

// allowedAgents narrows the agent set by analysis type.
func allowedAgents(t models.AnalysisType) map[string]bool {
	switch t {
	case models.AnalysisPatternDetection:
		return set(config.AgentIngestion, config.AgentPattern)
	case models.AnalysisSegmentation:
		return set(config.AgentIngestion, config.AgentSegmentation)
	case models.AnalysisTrend:
		return set(config.AgentIngestion, config.AgentPattern, config.AgentForecasting)
	default:
		return set(config.AgentNames()...)
	}
}

func set(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// buildPlan derives the topology for a run. INGESTING and AGGREGATING are
// always present; other phases appear only when they have agents to run.
func buildPlan(run models.RunConfig) plan {
	allowed := allowedAgents(run.AnalysisType)
	p := plan{
		feedback:  run.WorkflowPattern == models.WorkflowFeedbackLoop,
		emergency: run.WorkflowPattern == models.WorkflowEmergency,
	}

	full := []step{
		{phase: models.PhaseIngesting, agents: []string{config.AgentIngestion}},
		{phase: models.PhaseAnalyzing, agents: []string{config.AgentPattern, config.AgentSegmentation},
			parallel: run.WorkflowPattern == models.WorkflowParallel},
		{phase: models.PhaseForecasting, agents: []string{config.AgentForecasting}},
		{phase: models.PhaseOptimizing, agents: []string{config.AgentOptimization}},
		{phase: models.PhaseAlerting, agents: []string{config.AgentAlerts}},
		{phase: models.PhaseRecommending, agents: []string{config.AgentRecommendations}},
		{phase: models.PhaseAggregating, agents: []string{config.AgentKPI}},
	}

	for _, s := range full {
		if p.emergency && s.phase == models.PhaseAnalyzing {
			continue
		}
		var agents []string
		for _, a := range s.agents {
			if allowed[a] {
				agents = append(agents, a)
			}
		}
		if len(agents) == 0 && s.phase != models.PhaseIngesting && s.phase != models.PhaseAggregating {
			continue
		}
		s.agents = agents
		s.parallel = s.parallel && len(agents) > 1
		p.steps = append(p.steps, s)
	}
	return p
}

// runs reports whether the plan executes an agent.
func (p plan) runs(agent string) bool {
	for _, s := range p.steps {
		for _, a := range s.agents {
			if a == agent {
				return true
			}
		}
	}
	return false
}

// analysisAgents are the ANALYZING agents of the plan.
func (p plan) analysisAgents() []string {
	for _, s := range p.steps {
		if s.phase == models.PhaseAnalyzing {
			return s.agents
		}
	}
	return nil
}

// analysisParallel reports whether the ANALYZING phase runs concurrently.
func (p plan) analysisParallel() bool {
	for _, s := range p.steps {
		if s.phase == models.PhaseAnalyzing {
			return s.parallel
		}
	}
	return false
}

// phases lists the plan's phases in order.
func (p plan) phases() []models.Phase {
	out := make([]models.Phase, 0, len(p.steps))
	for _, s := range p.steps {
		out = append(out, s.phase)
	}
	return out
}
