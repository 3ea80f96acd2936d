package coordinator

import (
	"fmt"

	apperrors "stock-agents/internal/errors"
	"stock-agents/internal/models"
)

// transitions lists every legal phase change. FAILED is reachable from INGESTING only.
var transitions = map[models.Phase][]models.Phase{
	models.PhaseInit:         {models.PhaseIngesting},
	models.PhaseIngesting:    {models.PhaseAnalyzing, models.PhaseForecasting, models.PhaseAggregating, models.PhaseFailed},
	models.PhaseAnalyzing:    {models.PhaseForecasting, models.PhaseAggregating},
	models.PhaseForecasting:  {models.PhaseOptimizing, models.PhaseAnalyzing, models.PhaseAggregating},
	models.PhaseOptimizing:   {models.PhaseAlerting},
	models.PhaseAlerting:     {models.PhaseRecommending},
	models.PhaseRecommending: {models.PhaseAggregating},
	models.PhaseAggregating:  {models.PhaseDone},
}

// CanTransition reports whether from -> to is declared.
func CanTransition(from, to models.Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// machine tracks the phase of one run.
type machine struct {
	current models.Phase
	history []models.Phase
}

func newMachine() *machine {
	return &machine{current: models.PhaseInit, history: []models.Phase{models.PhaseInit}}
}

// advance moves to the next phase, refusing undeclared transitions.
func (m *machine) advance(to models.Phase) error {
	if !CanTransition(m.current, to) {
		return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, m.current, to)
	}
	m.current = to
	m.history = append(m.history, to)
	return nil
}
