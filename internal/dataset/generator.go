package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dudu/eyegaze/internal/augment"
	"github.com/dudu/eyegaze/internal/geometry"
)

// DefaultProgressEvery is how many entries pass between progress logs
const DefaultProgressEvery = 1000

// GeneratorConfig configures a generation run
type GeneratorConfig struct {
	InputDir      string
	Workers       int
	Seed          uint64
	Augment       augment.Config
	ProgressEvery int
}

// Generator augments every annotated render in a directory into the store
type Generator struct {
	store  *Store
	cfg    GeneratorConfig
	logger *slog.Logger
}

// NewGenerator fills in defaults for unset worker and progress settings
func NewGenerator(store *Store, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	return &Generator{store: store, cfg: cfg, logger: logger}
}

type outcome int

const (
	accepted outcome = iota
	skipped
	failed
)

// progress counts outcomes across workers and logs every n entries
type progress struct {
	accepted, skipped, failed atomic.Int64

	mu    sync.Mutex
	done  int
	every int
	last  time.Time
}

func (p *progress) record(o outcome, logger *slog.Logger) {
	switch o {
	case accepted:
		p.accepted.Add(1)
	case skipped:
		p.skipped.Add(1)
	case failed:
		p.failed.Add(1)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if p.done%p.every == 0 {
		logger.Info("preprocessed entries", "count", p.done, "elapsed", time.Since(p.last).Round(time.Millisecond))
		p.last = time.Now()
	}
}

// Run processes every stem in the input directory and returns the finished
// run. Each in-flight entry holds one of Workers engines, so no engine is
// used by two goroutines at once. The engine is reseeded with Seed plus the
// stem's index in the sorted listing before use, so the records written
// depend only on the seed and the input, never on scheduling.
func (g *Generator) Run(ctx context.Context) (*Run, error) {
	stems, err := ListStems(g.cfg.InputDir)
	if err != nil {
		return nil, err
	}

	engines := make(chan *augment.Engine, g.cfg.Workers)
	for i := 0; i < g.cfg.Workers; i++ {
		e, err := augment.NewEngine(g.cfg.Augment, g.cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("augment engine: %w", err)
		}
		engines <- e
	}

	run, err := g.store.BeginRun(ctx, g.cfg.Augment.Difficulty)
	if err != nil {
		return nil, err
	}
	logger := g.logger.With("run_id", run.ID)
	logger.Info("generation started", "entries", len(stems), "workers", g.cfg.Workers,
		"difficulty", g.cfg.Augment.Difficulty)

	prog := &progress{every: g.cfg.ProgressEvery, last: time.Now()}
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.cfg.Workers)

	for i, stem := range stems {
		if gctx.Err() != nil {
			break
		}
		grp.Go(func() error {
			e := <-engines
			defer func() { engines <- e }()
			e.Reseed(g.cfg.Seed + uint64(i))

			o, err := g.processOne(gctx, e, run.ID, stem, logger)
			if err != nil {
				return err
			}
			prog.record(o, logger)
			return nil
		})
	}
	runErr := grp.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	run.Accepted = int(prog.accepted.Load())
	run.Skipped = int(prog.skipped.Load())
	run.Failed = int(prog.failed.Load())
	if err := g.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		return run, errors.Join(runErr, err)
	}

	logger.Info("generation finished", "accepted", run.Accepted, "skipped", run.Skipped,
		"failed", run.Failed, "elapsed", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	return run, runErr
}

// processOne augments one stem. Bad entries are counted, store failures
// abort the run.
func (g *Generator) processOne(ctx context.Context, e *augment.Engine, runID, stem string, logger *slog.Logger) (outcome, error) {
	a, err := LoadAnnotation(g.cfg.InputDir, stem)
	if err != nil {
		logger.Warn("entry unreadable", "stem", stem, "error", err)
		return failed, nil
	}
	defer a.Image.Close()

	ex, err := e.Process(a)
	switch {
	case errors.Is(err, augment.ErrOutOfFrontalRange):
		logger.Debug("entry not frontal", "stem", stem)
		return skipped, nil
	case errors.Is(err, augment.ErrInvalidAnnotation), errors.Is(err, geometry.ErrDegenerateGeometry):
		logger.Warn("entry rejected", "stem", stem, "error", err)
		return failed, nil
	case err != nil:
		return failed, fmt.Errorf("%s: %w", stem, err)
	}

	if err := g.store.Put(ctx, runID, NewRecord(stem, e.Difficulty(), ex)); err != nil {
		return failed, err
	}
	return accepted, nil
}
