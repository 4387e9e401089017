package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/manifoldtv/internal/manifold"
	"github.com/cwbudde/manifoldtv/internal/prox"
	"github.com/cwbudde/manifoldtv/internal/signal"
	"github.com/cwbudde/manifoldtv/internal/store"
)

var (
	resumeDataDir string
	resumeOutPath string
	resumeIters   int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a denoising run from its checkpoint",
	Long: `Loads the checkpoint for the given job and continues the cyclic
proximal-point iteration from the saved signal. The step annealing
continues from the recorded iteration count, so resuming is equivalent
to never having stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	resumeCmd.Flags().StringVar(&resumeOutPath, "out", "", "Output signal path (default: result.json in the job directory)")
	resumeCmd.Flags().IntVar(&resumeIters, "iters", 0, "Additional iteration budget (0 = checkpoint config)")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	checkpoint, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	slog.Info("Loaded checkpoint",
		"job_id", checkpoint.JobID,
		"iteration", checkpoint.Iteration,
		"objective", checkpoint.Objective,
	)

	input, err := signal.Load(checkpoint.Config.InputPath)
	if err != nil {
		return fmt.Errorf("failed to load input signal: %w", err)
	}
	f, sphere, err := input.Grid()
	if err != nil {
		return err
	}

	current, _, err := checkpoint.Current.Grid()
	if err != nil {
		return fmt.Errorf("invalid checkpoint signal: %w", err)
	}

	maxIters := checkpoint.Config.MaxIterations
	if resumeIters > 0 {
		maxIters = resumeIters
	}

	lastIteration := checkpoint.Iteration

	start := time.Now()
	result, err := prox.CyclicProximalPoint(sphere, f, prox.Options{
		Alpha:           checkpoint.Config.Alpha,
		Lambda:          checkpoint.Config.Lambda,
		Tolerance:       checkpoint.Config.Tolerance,
		MaxIterations:   maxIters,
		Initial:         current,
		IterationOffset: checkpoint.Iteration,
		Progress: func(iteration int, change float64, x *manifold.Grid) {
			lastIteration = iteration
			slog.Debug("CPPA iteration", "iteration", iteration, "change", change)
		},
	})
	if err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}
	elapsed := time.Since(start)

	final := prox.Objective(sphere, f, result, checkpoint.Config.Alpha)

	out, err := signal.FromGrid(result)
	if err != nil {
		return err
	}

	outPath := resumeOutPath
	if outPath == "" {
		outPath = filepath.Join(checkpointStore.JobDir(jobID), "result.json")
	}
	if err := out.Save(outPath); err != nil {
		return err
	}

	// Refresh the checkpoint so a further resume continues from here.
	updated := store.NewCheckpoint(jobID, out, final, checkpoint.InitialObjective,
		lastIteration, checkpoint.Config)
	if err := checkpointStore.SaveCheckpoint(jobID, updated); err != nil {
		slog.Warn("Failed to update checkpoint", "job_id", jobID, "error", err)
	}

	slog.Info("Resume complete",
		"elapsed", elapsed,
		"objective", final,
	)

	fmt.Printf("Wrote %s (objective: %.4f -> %.4f)\n", outPath, checkpoint.Objective, final)
	return nil
}
