package solver

import (
	"log/slog"
	"math"
)

// StopFunc is an external stopping criterion, evaluated once per completed
// iteration on the solver state. Returning true terminates the run.
type StopFunc func(s *State) bool

// StopAfter stops once n iterations have completed.
func StopAfter(n int) StopFunc {
	return func(s *State) bool {
		return s.Iteration >= n
	}
}

// StopWhenBestBelow stops once the running best cost drops below threshold.
func StopWhenBestBelow(threshold float64) StopFunc {
	return func(s *State) bool {
		return s.BestCost < threshold
	}
}

// StopWhenConverged wraps a ConvergenceTracker as a stopping criterion fed
// by the running best cost.
func StopWhenConverged(config ConvergenceConfig) StopFunc {
	tracker := NewConvergenceTracker(config)
	return func(s *State) bool {
		return tracker.Update(s.BestCost)
	}
}

// Any combines criteria; the run stops when any of them fires.
func Any(criteria ...StopFunc) StopFunc {
	return func(s *State) bool {
		for _, c := range criteria {
			if c != nil && c(s) {
				return true
			}
		}
		return false
	}
}

// ConvergenceConfig defines parameters for detecting solver convergence
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active
	Enabled bool

	// Patience is the number of iterations with no improvement before stopping
	Patience int

	// Threshold is the minimum relative improvement required to count as progress
	// Example: 0.001 = 0.1% improvement required
	// Relative improvement = (oldCost - newCost) / oldCost
	Threshold float64
}

// DefaultConvergenceConfig returns sensible defaults for convergence detection
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  50,
		Threshold: 0.001, // 0.1% improvement
	}
}

// DisabledConvergenceConfig returns a config with convergence detection disabled
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled: false,
	}
}

// ConvergenceTracker tracks cost history and detects when a run has stalled
type ConvergenceTracker struct {
	config          ConvergenceConfig
	costHistory     []float64
	bestCost        float64 // Best cost ever seen
	lastSignificant float64 // Last cost that was a significant improvement
	staleCount      int     // Number of iterations without significant improvement
}

// NewConvergenceTracker creates a new convergence tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		costHistory:     []float64{},
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a new cost value and returns true if convergence is detected
func (c *ConvergenceTracker) Update(cost float64) bool {
	if !c.config.Enabled {
		return false // Never converge if disabled
	}

	c.costHistory = append(c.costHistory, cost)

	if cost < c.bestCost {
		c.bestCost = cost
	}

	// First cost - initialize lastSignificant
	if len(c.costHistory) == 1 {
		c.lastSignificant = cost
		return false
	}

	// Check if this is a significant improvement from last significant point
	relativeImprovement := (c.lastSignificant - cost) / c.lastSignificant

	if relativeImprovement >= c.config.Threshold {
		c.lastSignificant = cost
		c.staleCount = 0
		slog.Debug("Cost improvement detected",
			"cost", cost,
			"relative_improvement", relativeImprovement,
		)
	} else {
		c.staleCount++
		if c.staleCount >= c.config.Patience {
			slog.Debug("Convergence detected - stopping early",
				"stale_count", c.staleCount,
				"patience", c.config.Patience,
				"best_cost", c.bestCost,
			)
			return true
		}
	}

	return false
}

// BestCost returns the best cost seen so far
func (c *ConvergenceTracker) BestCost() float64 {
	return c.bestCost
}

// History returns the full cost history
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.costHistory...) // Return copy
}

// StaleCount returns the current number of iterations without improvement
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker's state
func (c *ConvergenceTracker) Reset() {
	c.costHistory = []float64{}
	c.bestCost = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.staleCount = 0
}
