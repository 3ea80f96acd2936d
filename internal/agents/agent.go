// Package agents provides the analysis agents of the stock pipeline.
package agents

import (
	"context"
	"math"

	"github.com/google/uuid"

	"stock-agents/internal/config"
	"stock-agents/internal/models"
)

// Agent defines the interface for pipeline agents.
type Agent interface {
	// Name returns the unique name of the agent.
	Name() string
	// Execute reads the state snapshot and returns the section it owns.
	Execute(ctx context.Context, req Request) (*Result, error)
}

// Request is the immutable input of one agent invocation.
type Request struct {
	State models.StockAnalysisState
	// Widened asks analysis agents for the relaxed feedback-loop parameters.
	Widened bool
}

// Result is an agent's typed partial state plus how sure it is.
type Result struct {
	AgentName  string
	Output     models.StageOutput
	Confidence float64 // 0-1
	Warnings   []string
}

// BaseAgent provides common functionality for all agents.
type BaseAgent struct {
	name string
	cfg  *config.Config
}

// NewBaseAgent creates a new base agent. A nil cfg means built-in defaults.
func NewBaseAgent(name string, cfg *config.Config) BaseAgent {
	if cfg == nil {
		cfg = config.Default()
	}
	return BaseAgent{
		name: name,
		cfg:  cfg,
	}
}

// Name returns the agent's name.
func (b *BaseAgent) Name() string {
	return b.name
}

// CreateResult creates a new Result with common fields populated.
func (b *BaseAgent) CreateResult(out models.StageOutput, confidence float64, warnings []string) *Result {
	return &Result{
		AgentName:  b.name,
		Output:     out,
		Confidence: ClampConfidence(confidence),
		Warnings:   warnings,
	}
}

// ClampConfidence ensures confidence is within [0, 1].
func ClampConfidence(confidence float64) float64 {
	if math.IsNaN(confidence) || confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// sampleFactor scales confidence by history length, reaching 1 at full points.
func sampleFactor(n, full int) float64 {
	if full <= 0 {
		return 1
	}
	return math.Min(float64(n)/float64(full), 1)
}

// stableID derives a name-based id so repeated runs yield the same ids.
func stableID(parts ...string) string {
	var name []byte
	for i, p := range parts {
		if i > 0 {
			name = append(name, '|')
		}
		name = append(name, p...)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, name).String()
}

// checkCancel reports a cancelled or expired context between products.
func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
