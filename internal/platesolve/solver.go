package platesolve

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"log/slog"

	"astropitography/internal/config"
	"astropitography/internal/logging"
	"astropitography/internal/notifications"
	"astropitography/internal/queue"
	"astropitography/internal/services"
	"astropitography/internal/solver"
	"astropitography/internal/stage"
)

// Solver manages the plate-solving stage.
type Solver struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service

	mu     sync.Mutex
	engine *solver.Solver
}

// NewSolver constructs the plate-solving handler using default dependencies.
func NewSolver(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Solver {
	return NewSolverWithDependencies(cfg, store, logger, notifications.NewService(cfg))
}

// NewSolverWithDependencies allows injecting the notifier (used in tests).
func NewSolverWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Solver {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "platesolve"))
	}
	return &Solver{store: store, cfg: cfg, logger: stageLogger, notifier: notifier}
}

func (s *Solver) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	item.InitProgress("Solving", "Starting plate solve")
	logger.Info(
		"starting solve preparation",
		logging.String("target", item.DisplayName()),
		logging.Bool("solver_enabled", s.cfg.Solver.Enabled),
		logging.Int("frames", len(item.FramePaths())),
	)
	return nil
}

func (s *Solver) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	if !s.cfg.Solver.Enabled {
		item.SetProgressComplete("Solved", "Plate solving disabled")
		logger.Info("plate solving disabled, passing through")
		return nil
	}

	frames := item.FramePaths()
	if len(frames) == 0 {
		item.SetProgressComplete("Solved", "No frames to solve")
		logger.Info("no frames to solve, passing through")
		return nil
	}
	frame := frames[0]

	engine, err := s.loadEngine()
	if err != nil {
		return s.skipOrFail(ctx, item, services.Wrap(
			services.ErrConfiguration,
			"platesolve",
			"load pattern database",
			"Pattern database unavailable; run astropitography catalog build",
			err,
		), "Solver database unavailable, skipped")
	}

	img, err := decodeFrame(frame)
	if err != nil {
		return s.skipOrFail(ctx, item, services.Wrap(
			services.ErrValidation,
			"platesolve",
			"decode frame",
			"Could not decode the captured frame for solving",
			err,
		), "Frame unreadable, solve skipped")
	}

	s.applyProgress(ctx, item, 50, fmt.Sprintf("Solving %s", frame))
	solution, err := s.solveWithTimeout(ctx, engine, img)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		if errors.Is(err, solver.ErrNoMatch) {
			return s.skipOrFail(ctx, item, services.Wrap(
				services.ErrValidation,
				"platesolve",
				"match patterns",
				"Could not match the star field; check focus, exposure and field of view",
				err,
			), "No star match found, continuing")
		}
		return s.skipOrFail(ctx, item, err, "Solve failed, continuing")
	}

	item.SetSolution(queue.Solution{
		RADeg:         solution.RADeg,
		DecDeg:        solution.DecDeg,
		RollDeg:       solution.RollDeg,
		FOVDeg:        solution.FOVDeg,
		Matches:       solution.Matches,
		RMSEArcsec:    solution.RMSEArcsec,
		MismatchProb:  solution.Probability,
		SolveMillis:   float64(solution.SolveTime.Microseconds()) / 1000,
		ExtractMillis: float64(solution.ExtractTime.Microseconds()) / 1000,
		SolvedFrame:   frame,
	})
	item.SetProgressComplete("Solved", fmt.Sprintf("RA %.3f°, Dec %.3f°", solution.RADeg, solution.DecDeg))
	logger.Info(
		"plate solve completed",
		logging.Float64("ra_deg", solution.RADeg),
		logging.Float64("dec_deg", solution.DecDeg),
		logging.Float64("fov_deg", solution.FOVDeg),
		logging.Int("matches", solution.Matches),
		logging.Duration("solve_time", solution.SolveTime),
	)
	if s.notifier != nil {
		payload := notifications.Payload{
			"name": item.DisplayName(),
			"ra":   fmt.Sprintf("%.3f", solution.RADeg),
			"dec":  fmt.Sprintf("%.3f", solution.DecDeg),
		}
		if err := s.notifier.Publish(ctx, notifications.EventSolveCompleted, payload); err != nil {
			logger.Warn("solve notification failed", logging.Error(err))
		}
	}
	return nil
}

// skipOrFail returns the failure when solving is required and otherwise
// records a pass-through completion.
func (s *Solver) skipOrFail(ctx context.Context, item *queue.Item, err error, message string) error {
	if s.cfg.Solver.Required {
		return err
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Warn("plate solve skipped", logging.Error(err))
	item.SetProgressComplete("Solved", message)
	return nil
}

func (s *Solver) solveWithTimeout(ctx context.Context, engine *solver.Solver, img image.Image) (*solver.Solution, error) {
	type result struct {
		solution *solver.Solution
		err      error
	}
	results := make(chan result, 1)
	go func() {
		solution, err := engine.SolveImage(img, solver.DefaultExtractOptions(), s.solveOptions())
		results <- result{solution, err}
	}()

	var expired <-chan time.Time
	if s.cfg.Solver.SolveTimeout > 0 {
		timer := time.NewTimer(time.Duration(s.cfg.Solver.SolveTimeout) * time.Second)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case res := <-results:
		return res.solution, res.err
	case <-expired:
		return nil, services.Wrap(
			services.ErrValidation,
			"platesolve",
			"solve frame",
			fmt.Sprintf("Plate solve exceeded %d seconds", s.cfg.Solver.SolveTimeout),
			nil,
		)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Solver) solveOptions() solver.SolveOptions {
	minFOV := s.cfg.Solver.MinFOV
	maxFOV := s.cfg.Solver.MaxFOV
	opts := solver.SolveOptions{
		MatchRadius:    s.cfg.Solver.MatchRadius,
		MatchThreshold: s.cfg.Solver.MatchThreshold,
	}
	if maxFOV > 0 {
		opts.FOVEstimateDeg = (minFOV + maxFOV) / 2
		if maxFOV > minFOV {
			opts.FOVMaxErrorDeg = (maxFOV - minFOV) / 2
		}
	}
	return opts
}

// loadEngine loads the pattern database on first use. Failures are not
// latched so a database built while the daemon runs is picked up.
func (s *Solver) loadEngine() (*solver.Solver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		return s.engine, nil
	}
	db, err := solver.LoadDatabase(s.cfg.Paths.PatternDBPath)
	if err != nil {
		return nil, err
	}
	engine, err := solver.New(db)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return engine, nil
}

// HealthCheck verifies plate-solving dependencies.
func (s *Solver) HealthCheck(ctx context.Context) stage.Health {
	const name = "platesolve"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if !s.cfg.Solver.Enabled {
		return stage.Healthy(name)
	}
	path := strings.TrimSpace(s.cfg.Paths.PatternDBPath)
	if path == "" {
		return stage.Unhealthy(name, "pattern database path not configured")
	}
	if _, err := os.Stat(path); err != nil {
		return stage.Unhealthy(name, "pattern database missing; run astropitography catalog build")
	}
	return stage.Healthy(name)
}

func decodeFrame(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func (s *Solver) applyProgress(ctx context.Context, item *queue.Item, percent float64, message string) {
	logger := logging.WithContext(ctx, s.logger)
	copy := *item
	copy.ProgressStage = "Solving"
	copy.ProgressPercent = percent
	copy.ProgressMessage = message
	if s.store != nil {
		if err := s.store.UpdateProgress(ctx, &copy); err != nil {
			logger.Warn("failed to persist progress", logging.Error(err))
			return
		}
	}
	*item = copy
}
