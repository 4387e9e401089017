package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cwbudde/manifoldtv/internal/manifold"
	"github.com/cwbudde/manifoldtv/internal/prox"
	"github.com/cwbudde/manifoldtv/internal/signal"
	"github.com/cwbudde/manifoldtv/internal/store"
)

// runJob executes a denoising job in the background.
// If checkpointStore is not nil and the job has checkpointInterval > 0,
// periodic checkpoints are saved.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string) error {
	// The worker runs detached from any request handler; a panic here would
	// take the whole process down, so it is converted into a failed job.
	defer func() {
		if r := recover(); r != nil {
			markJobFailed(jm, jobID, fmt.Errorf("worker panic: %v", r))
		}
	}()

	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	// Update state to running
	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "input", job.Config.InputPath)

	// Load input signal
	sig, err := signal.Load(job.Config.InputPath)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load input signal: %w", err))
		return err
	}

	f, sphere, err := sig.Grid()
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to build grid: %w", err))
		return err
	}

	slog.Info("Loaded input signal", "job_id", jobID, "shape", f.Shape(), "manifold", sphere.Name())

	// Objective of the raw input (fidelity term is zero there)
	initialObjective := prox.Objective(sphere, f, f, job.Config.Alpha)

	jm.UpdateJob(jobID, func(j *Job) {
		j.InitialObjective = initialObjective
		j.Objective = initialObjective
		j.Current = sig
	})

	// Check for cancellation before starting expensive operation
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	start := time.Now()

	// Start progress monitoring goroutine
	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	// Start checkpoint monitoring goroutine if enabled
	checkpointDone := make(chan struct{})
	if checkpointStore != nil && job.Config.CheckpointInterval > 0 {
		go monitorCheckpoints(ctx, jm, checkpointStore, jobID, checkpointDone)
	} else {
		close(checkpointDone) // No checkpointing, close immediately
	}

	// Convergence trace, written alongside checkpoints when available
	var trace *store.TraceWriter
	if fs, ok := checkpointStore.(*store.FSStore); ok {
		trace, err = store.NewTraceWriter(fs.BaseDir(), jobID, false)
		if err != nil {
			slog.Warn("Failed to create trace writer", "job_id", jobID, "error", err)
			trace = nil
		} else {
			defer trace.Close()
		}
	}

	opts := prox.Options{
		Alpha:         job.Config.Alpha,
		Lambda:        job.Config.Lambda,
		Tolerance:     job.Config.Tolerance,
		MaxIterations: job.Config.MaxIterations,
		Progress: func(iteration int, change float64, x *manifold.Grid) {
			objective := prox.Objective(sphere, f, x, job.Config.Alpha)
			working, snapErr := signal.FromGrid(x)
			jm.UpdateJob(jobID, func(j *Job) {
				j.Iterations = iteration
				j.Change = change
				j.Objective = objective
				if snapErr == nil {
					j.Current = working
				}
			})
			if trace != nil {
				trace.Write(store.TraceEntry{
					Iteration: iteration,
					Objective: objective,
					Change:    change,
					Timestamp: time.Now(),
				})
			}
		},
	}

	result, err := prox.CyclicProximalPoint(sphere, f, opts)

	close(progressDone)
	close(checkpointDone)
	elapsed := time.Since(start)

	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	// Check for cancellation after the run
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	resultSig, err := signal.FromGrid(result)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	finalObjective := prox.Objective(sphere, f, result, job.Config.Alpha)

	// Update job with results
	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Result = resultSig
		j.Current = resultSig
		j.Objective = finalObjective
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	job, _ = jm.GetJob(jobID)

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"initial_objective", initialObjective,
		"final_objective", finalObjective,
		"iterations", job.Iterations,
	)

	// Persist final checkpoint and result artifact
	if checkpointStore != nil {
		if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
			slog.Warn("Failed to save final checkpoint", "job_id", jobID, "error", err)
		}
		if fs, ok := checkpointStore.(*store.FSStore); ok {
			if err := saveResultArtifact(fs, jobID, resultSig); err != nil {
				slog.Warn("Failed to save result artifact", "job_id", jobID, "error", err)
			}
		}
	}
	if trace != nil {
		trace.Flush()
	}

	// Broadcast final completion event
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:      jobID,
		State:      StateCompleted,
		Iterations: job.Iterations,
		Objective:  finalObjective,
		Change:     job.Change,
		Timestamp:  time.Now(),
	})

	return nil
}

// monitorProgress periodically broadcasts progress events during a run
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:      jobID,
				State:      job.State,
				Iterations: job.Iterations,
				Objective:  job.Objective,
				Change:     job.Change,
				Timestamp:  time.Now(),
			})
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// monitorCheckpoints periodically saves checkpoints during a run
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, done chan struct{}) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	interval := time.Duration(job.Config.CheckpointInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint of the job's current working signal
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if job.Current == nil {
		slog.Debug("Skipping checkpoint, no working signal yet", "job_id", jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(
		jobID,
		job.Current,
		job.Objective,
		job.InitialObjective,
		job.Iterations,
		job.Config,
	)

	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"iteration", job.Iterations,
		"objective", job.Objective,
	)
	return nil
}

// saveResultArtifact writes the final denoised signal as result.json in the
// job's checkpoint directory
func saveResultArtifact(fs *store.FSStore, jobID string, result *signal.Signal) error {
	jobDir := fs.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	path := filepath.Join(jobDir, "result.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	slog.Debug("Result artifact saved", "job_id", jobID, "path", path)
	return nil
}
