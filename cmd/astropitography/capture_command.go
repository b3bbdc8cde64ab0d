package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"astropitography/internal/api"
	"astropitography/internal/camera"
	"astropitography/internal/config"
	"astropitography/internal/ipc"
	"astropitography/internal/logging"
	"astropitography/internal/queue"
)

type captureFlags struct {
	target     string
	preset     string
	count      int
	interval   float64
	exposure   float64
	iso        int
	brightness int
	contrast   int
	saturation int
	sharpness  int
	greyscale  bool
	raw        bool
	duration   int
}

func (f *captureFlags) register(cmd *cobra.Command, video bool) {
	cmd.Flags().StringVarP(&f.target, "target", "t", "", "Target name recorded on the session")
	cmd.Flags().StringVarP(&f.preset, "preset", "p", "", "Apply a saved settings preset")
	cmd.Flags().Float64Var(&f.exposure, "exposure", 0, "Exposure time in seconds")
	cmd.Flags().IntVar(&f.iso, "iso", 0, "Sensor gain as an ISO value")
	cmd.Flags().IntVar(&f.brightness, "brightness", 0, "Brightness (0 to 100)")
	cmd.Flags().IntVar(&f.contrast, "contrast", 0, "Contrast (-100 to 100)")
	cmd.Flags().IntVar(&f.saturation, "saturation", 0, "Saturation (-100 to 100)")
	cmd.Flags().IntVar(&f.sharpness, "sharpness", 0, "Sharpness (0 to 100)")
	cmd.Flags().BoolVar(&f.greyscale, "greyscale", false, "Capture in greyscale")
	if video {
		cmd.Flags().IntVarP(&f.duration, "duration", "d", 0, "Recording length in seconds")
	} else {
		cmd.Flags().IntVarP(&f.count, "count", "n", 0, "Number of frames to capture")
		cmd.Flags().Float64VarP(&f.interval, "interval", "i", 0, "Seconds between frames in a sequence")
		cmd.Flags().BoolVar(&f.raw, "raw", false, "Append the Bayer raw block to each frame")
	}
}

// buildSettings layers config defaults, the optional preset, and explicit
// flags in that order, so a flag always wins over a preset value.
func (f *captureFlags) buildSettings(cmd *cobra.Command, cfg *config.Config) (camera.Settings, error) {
	settings := camera.FromConfig(cfg)

	if name := strings.TrimSpace(f.preset); name != "" {
		store := camera.NewPresetStore(cfg.Paths.PresetsPath)
		preset, found, err := store.Get(name)
		if err != nil {
			return camera.Settings{}, fmt.Errorf("load preset: %w", err)
		}
		if !found {
			return camera.Settings{}, fmt.Errorf("preset %q not found", name)
		}
		settings = preset.Settings
	}

	flags := cmd.Flags()
	if flags.Changed("exposure") {
		settings.ExposureSeconds = f.exposure
	}
	if flags.Changed("iso") {
		settings.ISO = f.iso
	}
	if flags.Changed("brightness") {
		settings.Brightness = f.brightness
	}
	if flags.Changed("contrast") {
		settings.Contrast = f.contrast
	}
	if flags.Changed("saturation") {
		settings.Saturation = f.saturation
	}
	if flags.Changed("sharpness") {
		settings.Sharpness = f.sharpness
	}
	if flags.Changed("greyscale") {
		settings.Greyscale = f.greyscale
	}
	if flags.Changed("raw") {
		settings.Raw = f.raw
	}
	if flags.Changed("count") {
		settings.FrameCount = f.count
	}
	if flags.Changed("interval") {
		settings.IntervalSeconds = f.interval
	}
	if flags.Changed("duration") {
		settings.VideoSeconds = f.duration
	}

	settings.Normalize()
	if err := settings.Validate(cfg.Capture.MaxExposureSeconds); err != nil {
		return camera.Settings{}, err
	}
	return settings, nil
}

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	flags := &captureFlags{}
	var foreground bool

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a still frame or a frame sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			settings, err := flags.buildSettings(cmd, cfg)
			if err != nil {
				return err
			}
			settingsJSON, err := settings.Encode()
			if err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}

			kind := queue.KindStill
			if settings.FrameCount > 1 {
				kind = queue.KindSequence
			}

			if !foreground {
				if client, dialErr := ctx.dialClient(); dialErr == nil {
					defer client.Close()
					resp, err := client.Capture(ipc.CaptureRequest{
						Kind:         string(kind),
						TargetName:   flags.target,
						SettingsJSON: settingsJSON,
					})
					if err != nil {
						return err
					}
					return printEnqueuedSession(cmd, ctx, resp.Item)
				}
			}

			return runForegroundCapture(cmd, ctx, cfg, kind, flags.target, settingsJSON)
		},
	}

	flags.register(cmd, false)
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run the pipeline in this process instead of the daemon")
	return cmd
}

func newVideoCommand(ctx *commandContext) *cobra.Command {
	flags := &captureFlags{}
	var foreground bool

	cmd := &cobra.Command{
		Use:   "video",
		Short: "Record a video session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			settings, err := flags.buildSettings(cmd, cfg)
			if err != nil {
				return err
			}
			settingsJSON, err := settings.Encode()
			if err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}

			if !foreground {
				if client, dialErr := ctx.dialClient(); dialErr == nil {
					defer client.Close()
					resp, err := client.Video(ipc.VideoRequest{
						TargetName:   flags.target,
						SettingsJSON: settingsJSON,
					})
					if err != nil {
						return err
					}
					return printEnqueuedSession(cmd, ctx, resp.Item)
				}
			}

			return runForegroundCapture(cmd, ctx, cfg, queue.KindVideo, flags.target, settingsJSON)
		},
	}

	flags.register(cmd, true)
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run the pipeline in this process instead of the daemon")
	return cmd
}

func printEnqueuedSession(cmd *cobra.Command, ctx *commandContext, item ipc.QueueItem) error {
	if ctx.JSONMode() {
		return writeJSON(cmd, map[string]any{"item": item})
	}
	target := strings.TrimSpace(item.TargetName)
	if target == "" {
		target = "Untitled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued %s session %d (%s)\n", item.Kind, item.ID, target)
	fmt.Fprintln(cmd.OutOrStdout(), "Watch progress with `astropitography queue list` or `astropitography show -f`")
	return nil
}

// runForegroundCapture executes the full pipeline in this process. Used when
// the daemon is unreachable or the user asked for --foreground explicitly.
func runForegroundCapture(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, kind queue.Kind, target, settingsJSON string) error {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: "console",
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	result, runErr := api.RunCaptureSession(cmd.Context(), api.RunCaptureRequest{
		Config:       cfg,
		Kind:         kind,
		TargetName:   target,
		SettingsJSON: settingsJSON,
		Logger:       logger,
	})
	if runErr != nil && result.Item == nil {
		return runErr
	}

	assessment := api.AssessCaptureSession(result.Item)
	if ctx.JSONMode() {
		return writeJSON(cmd, assessment)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, assessment.OutcomeMessage)
	if assessment.Frames > 0 {
		fmt.Fprintf(out, "Frames captured: %d\n", assessment.Frames)
	}
	if assessment.DNGs > 0 {
		fmt.Fprintf(out, "DNG conversions: %d\n", assessment.DNGs)
	}
	if assessment.Solution != nil {
		printSolutionTable(cmd, *assessment.Solution)
	}
	if assessment.LibraryDir != "" {
		fmt.Fprintf(out, "Library: %s\n", assessment.LibraryDir)
	}
	if assessment.ReviewReason != "" {
		fmt.Fprintf(out, "Review reason: %s\n", assessment.ReviewReason)
	}
	if assessment.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", assessment.ErrorMessage)
	}
	if assessment.Outcome == "failed" && runErr != nil {
		return runErr
	}
	return nil
}
