package platesolve_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"astropitography/internal/config"
	"astropitography/internal/logging"
	"astropitography/internal/notifications"
	"astropitography/internal/platesolve"
	"astropitography/internal/queue"
	"astropitography/internal/services"
	"astropitography/internal/solver"
	"astropitography/internal/testsupport"
)

// clusterStars is a fictional eight star cluster around RA 60, Dec 30,
// matching the fields rendered by renderFrame.
func clusterStars() []solver.Star {
	return []solver.Star{
		solver.NewStar(60.0, 30.0, 1.0),
		solver.NewStar(63.5, 31.5, 1.5),
		solver.NewStar(57.5, 27.6, 2.0),
		solver.NewStar(61.9, 26.9, 2.5),
		solver.NewStar(58.1, 33.0, 3.0),
		solver.NewStar(64.2, 27.5, 3.5),
		solver.NewStar(55.9, 32.4, 4.0),
		solver.NewStar(60.8, 34.6, 4.5),
	}
}

func buildDatabase(t *testing.T, path string) {
	t.Helper()
	opts := solver.DefaultGenerateOptions()
	opts.MaxFOVDeg = 14
	db, err := solver.Generate(clusterStars(), opts)
	if err != nil {
		t.Fatalf("generate database: %v", err)
	}
	if err := db.Save(path); err != nil {
		t.Fatalf("save database: %v", err)
	}
}

func drawSpot(img *image.Gray, cx, cy, sigma, amp float64) {
	for y := 0; y < img.Rect.Dy(); y++ {
		for x := 0; x < img.Rect.Dx(); x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			r2 := dx*dx + dy*dy
			if r2 > 25*sigma*sigma {
				continue
			}
			v := float64(img.GrayAt(x, y).Y) + amp*math.Exp(-r2/(2*sigma*sigma))
			if v > 255 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v + 0.5)})
		}
	}
}

// renderFrame writes a JPEG of the cluster as seen by a north-up camera
// pointed at the given coordinates.
func renderFrame(t *testing.T, path string, raDeg, decDeg, fovDeg float64, size int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = 15
	}
	ra := raDeg * math.Pi / 180
	dec := decDeg * math.Pi / 180
	b := solver.Vec3{
		math.Cos(ra) * math.Cos(dec),
		math.Sin(ra) * math.Cos(dec),
		math.Sin(dec),
	}
	u := solver.Vec3{0, 0, 1}.Sub(b.Scale(math.Sin(dec)))
	u = u.Scale(1 / u.Norm())
	w := b.Cross(u)
	center := float64(size) / 2
	scale := math.Tan(fovDeg*math.Pi/360) / center
	for n, star := range clusterStars() {
		i := b.Dot(star.Vec)
		if i <= 0 {
			continue
		}
		x := center - u.Dot(star.Vec)/i/scale
		y := center - w.Dot(star.Vec)/i/scale
		drawSpot(img, x, y, 1.3, 230-20*float64(n))
	}
	writeJPEG(t, path, img)
}

func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir frame dir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create frame: %v", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func flatFrame(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 128, 128))
	for i := range img.Pix {
		img.Pix[i] = 15
	}
	writeJPEG(t, path, img)
}

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.events = append(r.events, event)
	return nil
}

type solveEnv struct {
	cfg   *config.Config
	store *queue.Store
}

func solveConfig(t *testing.T) solveEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Solver.MinFOV = 10
	cfg.Solver.MaxFOV = 16
	store := testsupport.MustOpenStore(t, cfg)
	return solveEnv{cfg: cfg, store: store}
}

func TestSolverStoresSolution(t *testing.T) {
	bundle := solveConfig(t)
	buildDatabase(t, bundle.cfg.Paths.PatternDBPath)

	item := testsupport.NewSession(t, bundle.store, queue.KindStill, "Pleiades")
	frame := filepath.Join(item.StagingRoot(bundle.cfg.Paths.StagingDir), "Image_no-1.jpeg")
	renderFrame(t, frame, 60, 30, 13, 256)
	item.SetFramePaths([]string{frame})

	notifier := &recordingNotifier{}
	handler := platesolve.NewSolverWithDependencies(bundle.cfg, bundle.store, logging.NewNop(), notifier)
	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	solution, ok := item.Solution()
	if !ok {
		t.Fatal("expected solution on item")
	}
	if math.Abs(solution.RADeg-60) > 0.5 || math.Abs(solution.DecDeg-30) > 0.5 {
		t.Fatalf("solved pointing (%.3f, %.3f), want (60, 30)", solution.RADeg, solution.DecDeg)
	}
	if solution.SolvedFrame != frame {
		t.Fatalf("unexpected solved frame %q", solution.SolvedFrame)
	}
	if solution.Matches < 4 {
		t.Fatalf("expected at least 4 matches, got %d", solution.Matches)
	}
	if item.ProgressStage != "Solved" || item.ProgressPercent != 100 {
		t.Fatalf("unexpected final progress: %s %.0f", item.ProgressStage, item.ProgressPercent)
	}
	if !strings.HasPrefix(item.ProgressMessage, "RA ") {
		t.Fatalf("unexpected progress message: %q", item.ProgressMessage)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventSolveCompleted {
		t.Fatalf("expected solve notification, got %v", notifier.events)
	}
}

func TestSolverPassesThroughWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSolverDisabled())
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewSession(t, store, queue.KindStill, "Orion")

	handler := platesolve.NewSolverWithDependencies(cfg, store, logging.NewNop(), &recordingNotifier{})
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := item.Solution(); ok {
		t.Fatal("expected no solution when solver disabled")
	}
	if item.ProgressMessage != "Plate solving disabled" {
		t.Fatalf("unexpected progress message: %q", item.ProgressMessage)
	}
}

func TestSolverSkipsWhenNoMatch(t *testing.T) {
	bundle := solveConfig(t)
	buildDatabase(t, bundle.cfg.Paths.PatternDBPath)

	item := testsupport.NewSession(t, bundle.store, queue.KindStill, "Clouds")
	frame := filepath.Join(item.StagingRoot(bundle.cfg.Paths.StagingDir), "Image_no-1.jpeg")
	flatFrame(t, frame)
	item.SetFramePaths([]string{frame})

	handler := platesolve.NewSolverWithDependencies(bundle.cfg, bundle.store, logging.NewNop(), &recordingNotifier{})
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := item.Solution(); ok {
		t.Fatal("expected no solution for flat frame")
	}
	if item.ProgressMessage != "No star match found, continuing" {
		t.Fatalf("unexpected progress message: %q", item.ProgressMessage)
	}
}

func TestSolverRequiredRoutesToReview(t *testing.T) {
	bundle := solveConfig(t)
	bundle.cfg.Solver.Required = true
	buildDatabase(t, bundle.cfg.Paths.PatternDBPath)

	item := testsupport.NewSession(t, bundle.store, queue.KindStill, "Clouds")
	frame := filepath.Join(item.StagingRoot(bundle.cfg.Paths.StagingDir), "Image_no-1.jpeg")
	flatFrame(t, frame)
	item.SetFramePaths([]string{frame})

	handler := platesolve.NewSolverWithDependencies(bundle.cfg, bundle.store, logging.NewNop(), &recordingNotifier{})
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if status := services.FailureStatus(err); status != queue.StatusReview {
		t.Fatalf("expected review routing, got %s", status)
	}
}

func TestSolverRequiredMissingDatabase(t *testing.T) {
	bundle := solveConfig(t)
	bundle.cfg.Solver.Required = true

	item := testsupport.NewSession(t, bundle.store, queue.KindStill, "Orion")
	frame := filepath.Join(item.StagingRoot(bundle.cfg.Paths.StagingDir), "Image_no-1.jpeg")
	flatFrame(t, frame)
	item.SetFramePaths([]string{frame})

	handler := platesolve.NewSolverWithDependencies(bundle.cfg, bundle.store, logging.NewNop(), &recordingNotifier{})
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "catalog build") {
		t.Fatalf("expected catalog build hint, got %v", err)
	}
}

func TestSolverMissingDatabaseSkips(t *testing.T) {
	bundle := solveConfig(t)

	item := testsupport.NewSession(t, bundle.store, queue.KindStill, "Orion")
	frame := filepath.Join(item.StagingRoot(bundle.cfg.Paths.StagingDir), "Image_no-1.jpeg")
	flatFrame(t, frame)
	item.SetFramePaths([]string{frame})

	handler := platesolve.NewSolverWithDependencies(bundle.cfg, bundle.store, logging.NewNop(), &recordingNotifier{})
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.ProgressMessage != "Solver database unavailable, skipped" {
		t.Fatalf("unexpected progress message: %q", item.ProgressMessage)
	}
}

func TestSolverSkipsSessionsWithoutFrames(t *testing.T) {
	bundle := solveConfig(t)
	item := testsupport.NewSession(t, bundle.store, queue.KindVideo, "Jupiter")

	handler := platesolve.NewSolverWithDependencies(bundle.cfg, bundle.store, logging.NewNop(), &recordingNotifier{})
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.ProgressMessage != "No frames to solve" {
		t.Fatalf("unexpected progress message: %q", item.ProgressMessage)
	}
}

func TestSolverHealthCheck(t *testing.T) {
	bundle := solveConfig(t)
	handler := platesolve.NewSolverWithDependencies(bundle.cfg, bundle.store, logging.NewNop(), &recordingNotifier{})
	health := handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy stage without pattern database")
	}
	if !strings.Contains(health.Detail, "catalog build") {
		t.Fatalf("unexpected detail: %q", health.Detail)
	}

	buildDatabase(t, bundle.cfg.Paths.PatternDBPath)
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy stage with database, got %q", health.Detail)
	}

	bundle.cfg.Solver.Enabled = false
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatal("expected healthy stage when solver disabled")
	}
}
