package resilience

import (
	"sort"
	"sync"

	"stock-agents/internal/models"
)

// HealthTracker collects the execution record of every agent within one run.
// It is safe for concurrent use by stages running in parallel.
type HealthTracker struct {
	mu      sync.RWMutex
	results map[string]models.AgentExecutionResult
}

// NewHealthTracker creates an empty tracker.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{results: make(map[string]models.AgentExecutionResult)}
}

// StatusFor derives an agent's health from its attempts.
// A clean first attempt is HEALTHY; a retry or warnings make it DEGRADED.
func StatusFor(success bool, attempts int, warnings []string) models.AgentStatus {
	switch {
	case !success:
		return models.AgentError
	case attempts > 1 || len(warnings) > 0:
		return models.AgentDegraded
	default:
		return models.AgentHealthy
	}
}

// Record stores the latest execution record of an agent, replacing earlier ones.
// Durations accumulate across records so feedback iterations are counted.
func (h *HealthTracker) Record(r models.AgentExecutionResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.results[r.AgentName]; ok && prev.Status != models.AgentSkipped {
		r.ExecutionTimeMs += prev.ExecutionTimeMs
		r.Attempts += prev.Attempts
		if !prev.StartedAt.IsZero() {
			r.StartedAt = prev.StartedAt
		}
	}
	h.results[r.AgentName] = r
}

// Skip marks an agent that the topology did not run.
func (h *HealthTracker) Skip(agent string, phase models.Phase) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.results[agent]; ok {
		return
	}
	h.results[agent] = models.AgentExecutionResult{
		AgentName: agent,
		Phase:     phase,
		Status:    models.AgentSkipped,
		Success:   true,
	}
}

// Get returns the record of one agent.
func (h *HealthTracker) Get(agent string) (models.AgentExecutionResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.results[agent]
	return r, ok
}

// Snapshot returns a copy of all records.
func (h *HealthTracker) Snapshot() map[string]models.AgentExecutionResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]models.AgentExecutionResult, len(h.results))
	for k, v := range h.results {
		out[k] = v
	}
	return out
}

// Counts tallies agents per status.
func (h *HealthTracker) Counts() map[models.AgentStatus]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[models.AgentStatus]int)
	for _, r := range h.results {
		out[r.Status]++
	}
	return out
}

// Names returns the tracked agent names, sorted.
func (h *HealthTracker) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.results))
	for k := range h.results {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
