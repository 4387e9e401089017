package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/manifoldtv/internal/signal"
)

// JobConfig holds configuration for a denoising job (checkpoint copy).
// This avoids import cycles with the server package.
type JobConfig struct {
	InputPath          string  `json:"inputPath"`
	Alpha              float64 `json:"alpha"`  // TV regularization weight
	Lambda             float64 `json:"lambda"` // base proximal step
	Tolerance          float64 `json:"tolerance"`
	MaxIterations      int     `json:"maxIterations"`
	CheckpointInterval int     `json:"checkpointInterval,omitempty"` // Checkpoint every N seconds (0 = disabled)
}

// Checkpoint represents a saved denoising state that can be resumed later.
//
// Unlike population-based optimizers, CPPA's full working state is the
// current signal array itself, so a checkpoint is an exact restart point
// with one caveat: the 1/k step annealing restarts from the recorded
// iteration count, which the resume path passes back in as an offset.
type Checkpoint struct {
	// JobID is the unique identifier for this denoising job
	JobID string `json:"jobId"`

	// Current is the working signal at checkpoint time
	Current *signal.Signal `json:"current"`

	// Objective is the TV functional value at checkpoint time
	Objective float64 `json:"objective"`

	// InitialObjective is the functional value of the raw input, for
	// improvement tracking
	InitialObjective float64 `json:"initialObjective"`

	// Iteration is the CPPA iteration count when this checkpoint was created
	Iteration int `json:"iteration"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation during resume
	Config JobConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the signal
// payload. Used for listing checkpoints efficiently.
type CheckpointInfo struct {
	JobID     string    `json:"jobId"`
	Objective float64   `json:"objective"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
	Alpha     float64   `json:"alpha"`
	Lambda    float64   `json:"lambda"`
	InputPath string    `json:"inputPath"`
	Shape     []int     `json:"shape,omitempty"`
}

// NewCheckpoint creates a checkpoint from job state.
func NewCheckpoint(jobID string, current *signal.Signal, objective, initialObjective float64, iteration int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:            jobID,
		Current:          current,
		Objective:        objective,
		InitialObjective: initialObjective,
		Iteration:        iteration,
		Timestamp:        time.Now(),
		Config:           config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	info := CheckpointInfo{
		JobID:     c.JobID,
		Objective: c.Objective,
		Iteration: c.Iteration,
		Timestamp: c.Timestamp,
		Alpha:     c.Config.Alpha,
		Lambda:    c.Config.Lambda,
		InputPath: c.Config.InputPath,
	}
	if c.Current != nil {
		info.Shape = c.Current.Shape
	}
	return info
}

// Validate checks if the checkpoint has valid data.
// Returns an error if any required field is missing or invalid.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if c.Current == nil {
		return &ValidationError{Field: "Current", Reason: "cannot be nil"}
	}
	if err := c.Current.Validate(); err != nil {
		return &ValidationError{Field: "Current", Reason: err.Error()}
	}
	if c.Objective < 0 {
		return &ValidationError{Field: "Objective", Reason: "cannot be negative"}
	}
	if c.InitialObjective < 0 {
		return &ValidationError{Field: "InitialObjective", Reason: "cannot be negative"}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.Alpha < 0 {
		return &ValidationError{Field: "Config.Alpha", Reason: "cannot be negative"}
	}
	if c.Config.Lambda <= 0 {
		return &ValidationError{Field: "Config.Lambda", Reason: "must be positive"}
	}
	if c.Config.MaxIterations <= 0 {
		return &ValidationError{Field: "Config.MaxIterations", Reason: "must be positive"}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given config.
// Returns an error if the configs are incompatible.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.InputPath != config.InputPath {
		return &CompatibilityError{
			Field:    "InputPath",
			Expected: c.Config.InputPath,
			Actual:   config.InputPath,
		}
	}
	if c.Config.Alpha != config.Alpha {
		return &CompatibilityError{
			Field:    "Alpha",
			Expected: fmt.Sprintf("%g", c.Config.Alpha),
			Actual:   fmt.Sprintf("%g", config.Alpha),
		}
	}
	if c.Config.Lambda != config.Lambda {
		return &CompatibilityError{
			Field:    "Lambda",
			Expected: fmt.Sprintf("%g", c.Config.Lambda),
			Actual:   fmt.Sprintf("%g", config.Lambda),
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
