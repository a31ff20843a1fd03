package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tetsim/tetsim/internal/observability"
	sim "github.com/tetsim/tetsim/sim"
	"github.com/tetsim/tetsim/sim/parallel"
)

var (
	// CLI flags for the simulation run
	modelFile     string  // Path to the YAML model definition
	meshFile      string  // Path to the YAML mesh definition
	initFile      string  // Path to the YAML initial conditions (optional)
	endTime       float64 // Simulated end time (in seconds)
	seed          int64   // Master seed controlling all randomness
	logLevel      string  // Log verbosity level
	numRanks      int     // Number of partitions; 0 or 1 runs the serial engine
	progressEvery uint64  // Progress log interval in events
	checkpointOut string  // Path to write a checkpoint at end of run (optional)
	restoreFrom   string  // Path to restore a checkpoint from before running (optional)
	metricsAddr   string  // Listen address for Prometheus metrics (optional)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "tetsim",
	Short: "Exact stochastic reaction-diffusion simulator on tetrahedral meshes",
}

// runCmd executes a simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		model, err := sim.LoadModel(modelFile)
		if err != nil {
			logrus.Fatalf("Unable to load model: %v", err)
		}
		mesh, err := sim.LoadMesh(meshFile)
		if err != nil {
			logrus.Fatalf("Unable to load mesh: %v", err)
		}

		logrus.Infof("Starting simulation: %d species, %d tets, %d tris, endTime=%gs, seed=%d, ranks=%d",
			model.NumSpecs(), len(mesh.Tets), len(mesh.Tris), endTime, seed, numRanks)

		if numRanks > 1 {
			runPartitioned(model, mesh)
			return
		}
		runSerial(model, mesh)
	},
}

func runSerial(model *sim.ModelDef, mesh *sim.Mesh) {
	s, err := sim.NewSimulator(sim.SimConfig{Seed: seed, ProgressEvery: progressEvery}, model, mesh)
	if err != nil {
		logrus.Fatalf("Unable to build simulator: %v", err)
	}

	if restoreFrom != "" {
		cp, err := sim.LoadCheckpoint(restoreFrom)
		if err != nil {
			logrus.Fatalf("Unable to load checkpoint: %v", err)
		}
		if err := s.Restore(cp); err != nil {
			logrus.Fatalf("Unable to restore checkpoint: %v", err)
		}
		logrus.Infof("Restored checkpoint at t=%gs (%d events)", s.Clock, s.EventCount)
	} else if initFile != "" {
		if err := applyInitialConditions(s, initFile); err != nil {
			logrus.Fatalf("Unable to apply initial conditions: %v", err)
		}
	}

	var collector *observability.SimCollector
	if metricsAddr != "" {
		collector, err = observability.NewSimCollector(nil)
		if err != nil {
			logrus.Fatalf("Unable to register metrics: %v", err)
		}
		s.SetObserver(collector)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", collector.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logrus.Warnf("Metrics server stopped: %v", err)
			}
		}()
		logrus.Infof("Serving Prometheus metrics on %s/metrics", metricsAddr)
	}

	start := time.Now()
	s.Run(endTime)
	if collector != nil {
		collector.ObserveRunRealtime(time.Since(start))
	}
	s.Metrics.Print()

	if checkpointOut != "" {
		if err := sim.SaveCheckpoint(checkpointOut, s.Checkpoint()); err != nil {
			logrus.Fatalf("Unable to write checkpoint: %v", err)
		}
		logrus.Infof("Checkpoint written to %s", checkpointOut)
	}
	logrus.Info("Simulation complete.")
}

func runPartitioned(model *sim.ModelDef, mesh *sim.Mesh) {
	coord, err := parallel.NewCoordinator(parallel.Config{
		Seed:          seed,
		NumRanks:      numRanks,
		ProgressEvery: progressEvery,
	}, model, mesh)
	if err != nil {
		logrus.Fatalf("Unable to build coordinator: %v", err)
	}

	if initFile != "" {
		if err := applyInitialConditionsParallel(coord, initFile); err != nil {
			logrus.Fatalf("Unable to apply initial conditions: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := coord.Run(ctx, endTime); err != nil {
		logrus.Fatalf("Partitioned run failed: %v", err)
	}
	logrus.Infof("Partitioned run complete: t=%gs, %d events across %d ranks",
		coord.Clock, coord.EventCount, numRanks)
}

// versionCmd reports the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tetsim version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("tetsim " + Version)
	},
}

// Version is overridden at build time via -ldflags.
var Version = "dev"

func init() {
	runCmd.Flags().StringVar(&modelFile, "model", "", "path to YAML model definition (required)")
	runCmd.Flags().StringVar(&meshFile, "mesh", "", "path to YAML mesh definition (required)")
	runCmd.Flags().StringVar(&initFile, "init", "", "path to YAML initial conditions")
	runCmd.Flags().Float64Var(&endTime, "end-time", 1.0, "simulated end time in seconds")
	runCmd.Flags().Int64Var(&seed, "seed", 1, "master seed controlling all randomness")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	runCmd.Flags().IntVar(&numRanks, "ranks", 0, "number of partitions (0 or 1 = serial)")
	runCmd.Flags().Uint64Var(&progressEvery, "progress-every", 1000000, "events between progress log lines (0 = off)")
	runCmd.Flags().StringVar(&checkpointOut, "checkpoint-out", "", "write a checkpoint here at end of run")
	runCmd.Flags().StringVar(&restoreFrom, "restore", "", "restore a checkpoint before running")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address for Prometheus metrics, e.g. :9090")
	_ = runCmd.MarkFlagRequired("model")
	_ = runCmd.MarkFlagRequired("mesh")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
