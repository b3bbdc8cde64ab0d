package libcamera

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"astropitography/internal/camera"
)

// ProgressUpdate reports camera subprocess activity.
type ProgressUpdate struct {
	FrameIndex int
	FrameCount int
	Percent    float64
	Message    string
}

// Grabber defines the behaviour required by the capture handler.
type Grabber interface {
	StillSequence(ctx context.Context, req SequenceRequest, progress func(ProgressUpdate)) ([]string, error)
	Video(ctx context.Context, req VideoRequest, progress func(ProgressUpdate)) (string, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithClock injects a time source for deterministic filenames in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client wraps the libcamera still and video apps.
type Client struct {
	stillBinary  string
	videoBinary  string
	stillTimeout time.Duration
	videoSlack   time.Duration
	exec         Executor
	now          func() time.Time
}

// New constructs a libcamera client. Timeouts are expressed in seconds;
// stillTimeout bounds a single standard exposure and videoSlack pads the
// recording duration before the subprocess is considered stuck.
func New(stillBinary, videoBinary string, stillTimeoutSeconds, videoSlackSeconds int, opts ...Option) (*Client, error) {
	stillBinary = strings.TrimSpace(stillBinary)
	if stillBinary == "" {
		return nil, errors.New("libcamera still binary required")
	}
	videoBinary = strings.TrimSpace(videoBinary)
	if videoBinary == "" {
		return nil, errors.New("libcamera video binary required")
	}
	client := &Client{
		stillBinary:  stillBinary,
		videoBinary:  videoBinary,
		stillTimeout: time.Duration(stillTimeoutSeconds) * time.Second,
		videoSlack:   time.Duration(videoSlackSeconds) * time.Second,
		exec:         commandExecutor{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SequenceRequest describes a run of still frames.
type SequenceRequest struct {
	DestDir  string
	Settings camera.Settings
}

// VideoRequest describes a single video recording.
type VideoRequest struct {
	DestDir  string
	Width    int
	Height   int
	Settings camera.Settings
}

// Still captures one standard exposure frame to the given path.
func (c *Client) Still(ctx context.Context, outputPath string, settings camera.Settings, onLine func(string)) error {
	args := append(baseStillArgs(outputPath, settings),
		"--timeout", strconv.FormatInt(stillWarmupMillis, 10),
		"--gain", formatScale(float64(settings.ISO)/100),
	)
	return c.captureStill(ctx, outputPath, args, c.stillTimeout, onLine)
}

// LongExposure captures one frame through the manual shutter path: fixed
// shutter time in microseconds, fixed gain, unity white balance gains, and
// an immediate capture so no preview frames burn exposure time.
func (c *Client) LongExposure(ctx context.Context, outputPath string, settings camera.Settings, onLine func(string)) error {
	micros := settings.Exposure().Microseconds()
	args := append(baseStillArgs(outputPath, settings),
		"--shutter", strconv.FormatInt(micros, 10),
		"--gain", formatScale(float64(settings.ISO)/100),
		"--awbgains", "1,1",
		"--immediate",
	)
	return c.captureStill(ctx, outputPath, args, c.stillTimeout+settings.Exposure(), onLine)
}

func (c *Client) captureStill(ctx context.Context, outputPath string, args []string, timeout time.Duration, onLine func(string)) error {
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("output path required")
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := c.exec.Run(runCtx, c.stillBinary, args, nil, onLine); err != nil {
		return fmt.Errorf("libcamera still: %w", err)
	}
	if _, err := os.Stat(outputPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("libcamera produced no output file; check camera connection")
	}
	return nil
}

// StillSequence captures the configured number of frames, sleeping the
// configured interval between them. Returns the paths of all frames written.
// Cancellation between frames keeps already captured frames on disk.
func (c *Client) StillSequence(ctx context.Context, req SequenceRequest, progress func(ProgressUpdate)) ([]string, error) {
	if strings.TrimSpace(req.DestDir) == "" {
		return nil, errors.New("destination directory required")
	}
	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	settings := req.Settings
	settings.Normalize()
	stamp := c.now()

	var paths []string
	for idx := 0; idx < settings.FrameCount; idx++ {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		if idx > 0 && settings.Interval() > 0 {
			if err := sleepContext(ctx, settings.Interval()); err != nil {
				return paths, err
			}
		}

		outputPath := filepath.Join(req.DestDir, StillFilename(stamp, idx, settings))
		if progress != nil {
			progress(ProgressUpdate{
				FrameIndex: idx,
				FrameCount: settings.FrameCount,
				Percent:    float64(idx) / float64(settings.FrameCount) * 100,
				Message:    fmt.Sprintf("Capturing frame %d of %d", idx+1, settings.FrameCount),
			})
		}

		capture := c.Still
		if settings.LongExposure() {
			capture = c.LongExposure
		}
		err := capture(ctx, outputPath, settings, func(line string) {
			if progress == nil {
				return
			}
			if msg, ok := parseFrameLine(line); ok {
				progress(ProgressUpdate{
					FrameIndex: idx,
					FrameCount: settings.FrameCount,
					Percent:    float64(idx) / float64(settings.FrameCount) * 100,
					Message:    msg,
				})
			}
		})
		if err != nil {
			return paths, fmt.Errorf("frame %d: %w", idx, err)
		}
		paths = append(paths, outputPath)

		if progress != nil {
			progress(ProgressUpdate{
				FrameIndex: idx,
				FrameCount: settings.FrameCount,
				Percent:    float64(idx+1) / float64(settings.FrameCount) * 100,
				Message:    fmt.Sprintf("Captured frame %d of %d", idx+1, settings.FrameCount),
			})
		}
	}
	return paths, nil
}

// Video records a YUV clip of the configured duration.
func (c *Client) Video(ctx context.Context, req VideoRequest, progress func(ProgressUpdate)) (string, error) {
	if strings.TrimSpace(req.DestDir) == "" {
		return "", errors.New("destination directory required")
	}
	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}

	settings := req.Settings
	settings.Normalize()
	outputPath := filepath.Join(req.DestDir, VideoFilename(c.now(), settings.VideoSeconds))

	timeout := settings.VideoDuration() + c.videoSlack
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := videoArgs(outputPath, req.Width, req.Height, settings)
	err := c.exec.Run(runCtx, c.videoBinary, args, nil, func(line string) {
		if progress == nil {
			return
		}
		if msg, ok := parseFrameLine(line); ok {
			progress(ProgressUpdate{Message: msg})
		}
	})
	if err != nil {
		return "", fmt.Errorf("libcamera video: %w", err)
	}
	if _, err := os.Stat(outputPath); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("libcamera produced no video file; check camera connection")
	}
	return outputPath, nil
}

// baseStillArgs maps settings onto libcamera-still flags. Slider ranges
// carry over from the interactive app: brightness 0..100 maps onto -1..1,
// contrast and saturation -100..100 onto 0..2, sharpness 0..100 onto 0..2.
func baseStillArgs(outputPath string, settings camera.Settings) []string {
	args := []string{
		"--output", outputPath,
		"--nopreview",
		"--brightness", formatScale(float64(settings.Brightness-50) / 50),
		"--contrast", formatScale(1 + float64(settings.Contrast)/100),
		"--saturation", formatScale(1 + float64(settings.Saturation)/100),
		"--sharpness", formatScale(float64(settings.Sharpness) / 50),
	}
	if settings.Raw {
		args = append(args, "--raw")
	}
	return args
}

func videoArgs(outputPath string, width, height int, settings camera.Settings) []string {
	return []string{
		"--codec", "yuv420",
		"--width", strconv.Itoa(width),
		"--height", strconv.Itoa(height),
		"--timeout", strconv.FormatInt(settings.VideoDuration().Milliseconds(), 10),
		"--nopreview",
		"-o", outputPath,
	}
}

// stillWarmupMillis gives the sensor time to settle gains before a
// standard exposure fires.
const stillWarmupMillis = 5000

// StillFilename formats the frame filename the way the capture pipeline
// has always named frames: Image_DD_MM_YYYY_HH_MM_SS_no-N with an _LE_Ns
// suffix for long exposures.
func StillFilename(ts time.Time, index int, settings camera.Settings) string {
	stamp := ts.Format("02_01_2006_15_04_05")
	if settings.LongExposure() {
		exposure := strconv.FormatFloat(settings.ExposureSeconds, 'f', -1, 64)
		return fmt.Sprintf("Image_%s_no-%d_LE_%ss.jpeg", stamp, index, exposure)
	}
	return fmt.Sprintf("Image_%s_no-%d.jpeg", stamp, index)
}

// VideoFilename formats the video filename: Video_DD_MM_YYYY_HH_MM_SS_DURs.yuv.
func VideoFilename(ts time.Time, seconds int) string {
	return fmt.Sprintf("Video_%s_%ds.yuv", ts.Format("02_01_2006_15_04_05"), seconds)
}

// parseFrameLine extracts frame announcements from libcamera stderr output.
// The apps print lines like "#42 (12.00 fps) exp 32000.00 ag 8.00 dg 1.00".
func parseFrameLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	rest := strings.TrimPrefix(line, "#")
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	if _, err := strconv.Atoi(fields[0]); err != nil {
		return "", false
	}
	return line, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if forward != nil {
				forward(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout, onStdout)
	go scan(stderr, onStderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

func formatScale(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
