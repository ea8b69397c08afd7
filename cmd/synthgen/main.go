package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dudu/eyegaze/internal/config"
	"github.com/dudu/eyegaze/internal/dataset"
	"github.com/dudu/eyegaze/internal/log"
)

type Flags struct {
	ConfigPath string
	EnvFile    string
	InputDir   string
	OutputPath string
	Workers    int
	Difficulty float64
	Seed       uint64
	Heatmaps   bool
	List       bool
	Dump       string
	Inspect    bool
	RunID      string
}

func main() {
	f := parseFlags()

	cfg, err := config.Load(f.ConfigPath, f.EnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	defer log.Close()

	switch {
	case f.List:
		err = listRuns(cfg)
	case f.Dump != "":
		err = withStore(cfg, func(ctx context.Context, s *dataset.Store) error {
			return dumpRecord(ctx, s, f.Dump, os.Stdout)
		})
	case f.Inspect:
		err = withStore(cfg, func(ctx context.Context, s *dataset.Store) error {
			return inspect(ctx, s, f.RunID, os.Stdout)
		})
	default:
		err = run(cfg)
	}
	if err != nil {
		log.Error("synthgen failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() Flags {
	f := Flags{}

	flag.StringVar(&f.ConfigPath, "config", "", "YAML configuration file")
	flag.StringVar(&f.ConfigPath, "f", "", "YAML configuration file (shorthand)")
	flag.StringVar(&f.EnvFile, "env", ".env", "Environment file")
	flag.StringVar(&f.InputDir, "input", "", "Directory of <stem>.json + <stem>.jpg renders")
	flag.StringVar(&f.InputDir, "i", "", "Input directory (shorthand)")
	flag.StringVar(&f.OutputPath, "output", "", "Dataset sqlite file")
	flag.StringVar(&f.OutputPath, "o", "", "Dataset sqlite file (shorthand)")
	flag.IntVar(&f.Workers, "workers", 0, "Parallel workers (default: config or CPU count)")
	flag.IntVar(&f.Workers, "w", 0, "Parallel workers (shorthand)")
	flag.Float64Var(&f.Difficulty, "difficulty", -1, "Augmentation difficulty in [0, 1]")
	flag.Float64Var(&f.Difficulty, "d", -1, "Augmentation difficulty (shorthand)")
	flag.Uint64Var(&f.Seed, "seed", 0, "Random seed (default: config)")
	flag.BoolVar(&f.Heatmaps, "heatmaps", false, "Store landmark heatmaps")
	flag.BoolVar(&f.List, "list", false, "List previous runs and exit")
	flag.StringVar(&f.Dump, "dump", "", "Print the stored example for a stem and exit")
	flag.BoolVar(&f.Inspect, "inspect", false, "Summarize stored examples and exit")
	flag.StringVar(&f.RunID, "run", "", "Restrict --inspect to one run ID")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "synthgen - Synthetic eye dataset generator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: synthgen [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  synthgen -i renders/ -o eyes.db\n")
		fmt.Fprintf(os.Stderr, "  synthgen -i renders/ -o eyes.db -d 0.5 --heatmaps\n")
		fmt.Fprintf(os.Stderr, "  synthgen -o eyes.db --list\n")
		fmt.Fprintf(os.Stderr, "  synthgen -o eyes.db --dump 0042\n")
		fmt.Fprintf(os.Stderr, "  synthgen -o eyes.db --inspect --run <id>\n")
	}

	flag.Parse()
	return f
}

func applyFlags(cfg *config.Config, f Flags) {
	if f.InputDir != "" {
		cfg.Dataset.InputDir = f.InputDir
	}
	if f.OutputPath != "" {
		cfg.Dataset.Path = f.OutputPath
	}
	if f.Workers > 0 {
		cfg.Dataset.Workers = f.Workers
	}
	if f.Difficulty >= 0 {
		cfg.Augment.Difficulty = f.Difficulty
	}
	if f.Seed != 0 {
		cfg.Augment.Seed = f.Seed
	}
	if f.Heatmaps {
		cfg.Augment.Heatmaps = true
	}
}

func run(cfg *config.Config) error {
	if cfg.Dataset.InputDir == "" {
		return fmt.Errorf("no input directory, use --input or dataset.input_dir")
	}
	gcfg, err := cfg.GeneratorConfig()
	if err != nil {
		return err
	}

	store, err := dataset.Open(cfg.Dataset.Path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen := dataset.NewGenerator(store, gcfg, log.L())
	r, err := gen.Run(ctx)
	if err != nil {
		return err
	}

	total, err := store.Count(ctx, "")
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %d accepted, %d skipped, %d failed (%d examples in %s)\n",
		r.ID, r.Accepted, r.Skipped, r.Failed, total, cfg.Dataset.Path)
	return nil
}

func listRuns(cfg *config.Config) error {
	store, err := dataset.Open(cfg.Dataset.Path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		status := "running"
		if !r.FinishedAt.IsZero() {
			status = r.FinishedAt.Sub(r.StartedAt).String()
		}
		fmt.Printf("%s  %s  difficulty=%.2f  accepted=%d skipped=%d failed=%d  %s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Difficulty,
			r.Accepted, r.Skipped, r.Failed, status)
	}
	return nil
}

func withStore(cfg *config.Config, fn func(context.Context, *dataset.Store) error) error {
	store, err := dataset.Open(cfg.Dataset.Path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer store.Close()
	return fn(context.Background(), store)
}

// dumpRecord prints one stored example's labels
func dumpRecord(ctx context.Context, s *dataset.Store, stem string, w io.Writer) error {
	rec, err := s.Get(ctx, stem)
	if err != nil {
		return fmt.Errorf("stem %s: %w", stem, err)
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	a := rec.Angles()
	fmt.Fprintf(w, "stem:       %s\n", rec.Stem)
	fmt.Fprintf(w, "difficulty: %.2f\n", rec.Difficulty)
	fmt.Fprintf(w, "eye:        %dx%d\n", rec.Width, rec.Height)
	fmt.Fprintf(w, "gaze:       pitch=%.4f yaw=%.4f rad\n", a.Pitch, a.Yaw)
	fmt.Fprintf(w, "radius:     %.2f px\n", rec.Radius)
	if rec.Heatmaps != nil {
		fmt.Fprintf(w, "heatmaps:   %d of %dx%d\n", len(rec.Heatmaps), rec.HeatmapWidth, rec.HeatmapHeight)
	} else {
		fmt.Fprintf(w, "heatmaps:   none\n")
	}
	fmt.Fprintf(w, "landmarks:\n")
	for i, p := range rec.Points() {
		fmt.Fprintf(w, "  %2d  %7.2f %7.2f\n", i, p.X, p.Y)
	}
	return nil
}

// inspect prints aggregate statistics over the stored examples
func inspect(ctx context.Context, s *dataset.Store, runID string, w io.Writer) error {
	sum, err := dataset.Summarize(ctx, s, runID, dataset.DefaultBatchSize)
	if err != nil {
		return err
	}
	scope := "all runs"
	if runID != "" {
		scope = "run " + runID
	}
	fmt.Fprintf(w, "schema v%d, %s: %d examples (%d with heatmaps, %d invalid)\n",
		sum.SchemaVersion, scope, sum.Records, sum.WithHeatmaps, sum.Invalid)
	if sum.Records == sum.Invalid {
		return nil
	}
	fmt.Fprintf(w, "mean gaze: pitch=%.4f yaw=%.4f rad\n", sum.MeanGaze.Pitch, sum.MeanGaze.Yaw)
	fmt.Fprintf(w, "radius:    mean=%.2f min=%.2f max=%.2f px\n", sum.MeanRadius, sum.MinRadius, sum.MaxRadius)
	return nil
}
