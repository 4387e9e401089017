package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStopAfter(t *testing.T) {
	stop := StopAfter(10)
	assert.False(t, stop(&State{Iteration: 9}))
	assert.True(t, stop(&State{Iteration: 10}))
	assert.True(t, stop(&State{Iteration: 11}))
}

func TestStopWhenBestBelow(t *testing.T) {
	stop := StopWhenBestBelow(0.5)
	assert.False(t, stop(&State{BestCost: 0.5}))
	assert.True(t, stop(&State{BestCost: 0.49}))
}

func TestAny(t *testing.T) {
	stop := Any(StopAfter(100), StopWhenBestBelow(0.1), nil)
	assert.False(t, stop(&State{Iteration: 5, BestCost: 1}))
	assert.True(t, stop(&State{Iteration: 5, BestCost: 0.05}))
	assert.True(t, stop(&State{Iteration: 100, BestCost: 1}))
}

func TestConvergenceTrackerDetectsStall(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.01,
	})

	// Steady improvement keeps the tracker happy.
	assert.False(t, tracker.Update(100))
	assert.False(t, tracker.Update(90))
	assert.False(t, tracker.Update(80))
	assert.Equal(t, 0, tracker.StaleCount())

	// Stagnation accumulates until patience runs out.
	assert.False(t, tracker.Update(79.99))
	assert.False(t, tracker.Update(79.98))
	assert.True(t, tracker.Update(79.97))
	assert.Equal(t, 3, tracker.StaleCount())
}

func TestConvergenceTrackerDisabled(t *testing.T) {
	tracker := NewConvergenceTracker(DisabledConvergenceConfig())
	for i := 0; i < 100; i++ {
		assert.False(t, tracker.Update(1.0))
	}
}

func TestConvergenceTrackerBestCost(t *testing.T) {
	tracker := NewConvergenceTracker(DefaultConvergenceConfig())
	tracker.Update(10)
	tracker.Update(5)
	tracker.Update(7)
	assert.Equal(t, 5.0, tracker.BestCost())
	assert.Equal(t, []float64{10, 5, 7}, tracker.History())
}

func TestConvergenceTrackerReset(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 2, Threshold: 0.5})
	tracker.Update(10)
	tracker.Update(10)
	tracker.Reset()
	assert.Equal(t, 0, tracker.StaleCount())
	assert.Empty(t, tracker.History())
}

func TestStopWhenConverged(t *testing.T) {
	stop := StopWhenConverged(ConvergenceConfig{
		Enabled:   true,
		Patience:  2,
		Threshold: 0.01,
	})

	assert.False(t, stop(&State{BestCost: 10}))
	assert.False(t, stop(&State{BestCost: 10}))
	assert.True(t, stop(&State{BestCost: 10}))
}
