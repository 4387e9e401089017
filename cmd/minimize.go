package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/manifoldtv/internal/manifold"
	"github.com/cwbudde/manifoldtv/internal/solver"
)

var (
	minDim      int
	minIters    int
	minSeed     int64
	minAlpha    float64
	minGamma    float64
	minRho      float64
	minSigma    float64
	minPatience int
)

var minimizeCmd = &cobra.Command{
	Use:   "minimize",
	Short: "Run the manifold Nelder-Mead solver on a sphere benchmark",
	Long: `Minimizes the squared geodesic distance to a randomly sampled target
point on the unit sphere, as a self-contained benchmark for the
derivative-free manifold Nelder-Mead solver.`,
	RunE: runMinimize,
}

func init() {
	minimizeCmd.Flags().IntVar(&minDim, "dim", 2, "Sphere dimension")
	minimizeCmd.Flags().IntVar(&minIters, "iters", 2000, "Max iterations")
	minimizeCmd.Flags().Int64Var(&minSeed, "seed", 42, "Random seed")
	minimizeCmd.Flags().Float64Var(&minAlpha, "alpha", 1, "Reflection coefficient")
	minimizeCmd.Flags().Float64Var(&minGamma, "gamma", 2, "Expansion coefficient")
	minimizeCmd.Flags().Float64Var(&minRho, "rho", 0.5, "Contraction coefficient")
	minimizeCmd.Flags().Float64Var(&minSigma, "sigma", 0.5, "Shrink coefficient")
	minimizeCmd.Flags().IntVar(&minPatience, "patience", 50, "Stall iterations before convergence stop (0 = disabled)")

	rootCmd.AddCommand(minimizeCmd)
}

func runMinimize(cmd *cobra.Command, args []string) error {
	slog.Info("Starting minimization", "dim", minDim, "iters", minIters, "seed", minSeed)

	sphere := manifold.NewSphere(minDim)
	rng := rand.New(rand.NewSource(minSeed))
	target := sphere.Random(rng)

	cost := func(p manifold.Point) float64 {
		d := sphere.Distance(p, target)
		return d * d
	}

	opts := solver.Options{
		Alpha:         minAlpha,
		Gamma:         minGamma,
		Rho:           minRho,
		Sigma:         minSigma,
		MaxIterations: minIters,
		Rand:          rng,
	}
	if minPatience > 0 {
		opts.Stop = solver.StopWhenConverged(solver.ConvergenceConfig{
			Enabled:   true,
			Patience:  minPatience,
			Threshold: 1e-6,
		})
	}

	start := time.Now()
	state, err := solver.NelderMead(sphere, cost, opts)
	if err != nil {
		return fmt.Errorf("solver failed: %w", err)
	}
	elapsed := time.Since(start)

	finalDist := sphere.Distance(state.Best, target)

	slog.Info("Minimization complete",
		"elapsed", elapsed,
		"iterations", state.Iteration,
		"best_cost", state.BestCost,
		"distance_to_target", finalDist,
	)

	fmt.Printf("Converged after %d iterations (cost %.3e, distance to target %.3e)\n",
		state.Iteration, state.BestCost, finalDist)

	return nil
}
