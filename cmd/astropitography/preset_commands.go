package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"astropitography/internal/camera"
	"astropitography/internal/config"
)

func newPresetCommand(ctx *commandContext) *cobra.Command {
	presetCmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage saved camera settings presets",
	}

	presetCmd.AddCommand(newPresetListCommand(ctx))
	presetCmd.AddCommand(newPresetShowCommand(ctx))
	presetCmd.AddCommand(newPresetSaveCommand(ctx))
	presetCmd.AddCommand(newPresetDeleteCommand(ctx))

	return presetCmd
}

func presetStore(cfg *config.Config) *camera.PresetStore {
	return camera.NewPresetStore(cfg.Paths.PresetsPath)
}

func newPresetListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			presets, err := presetStore(cfg).List()
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				if presets == nil {
					presets = []camera.Preset{}
				}
				return writeJSON(cmd, map[string]any{"presets": presets})
			}
			if len(presets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No presets saved")
				return nil
			}
			rows := make([][]string, 0, len(presets))
			for _, preset := range presets {
				s := preset.Settings
				rows = append(rows, []string{
					camera.DisplayPresetName(preset.Name),
					fmt.Sprintf("%.1fs", s.ExposureSeconds),
					fmt.Sprintf("%d", s.ISO),
					fmt.Sprintf("%d", s.FrameCount),
					yesNo(s.Raw),
					yesNo(s.Greyscale),
				})
			}
			table := renderTable(
				[]string{"Name", "Exposure", "ISO", "Frames", "Raw", "Greyscale"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newPresetShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show one preset in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			preset, found, err := presetStore(cfg).Get(args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("preset %q not found", args[0])
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, preset)
			}
			s := preset.Settings
			rows := [][]string{
				{"Exposure", fmt.Sprintf("%.2f s", s.ExposureSeconds)},
				{"ISO", fmt.Sprintf("%d", s.ISO)},
				{"Brightness", fmt.Sprintf("%d", s.Brightness)},
				{"Contrast", fmt.Sprintf("%d", s.Contrast)},
				{"Saturation", fmt.Sprintf("%d", s.Saturation)},
				{"Sharpness", fmt.Sprintf("%d", s.Sharpness)},
				{"Frame count", fmt.Sprintf("%d", s.FrameCount)},
				{"Interval", fmt.Sprintf("%.1f s", s.IntervalSeconds)},
				{"Video length", fmt.Sprintf("%d s", s.VideoSeconds)},
				{"Raw", yesNo(s.Raw)},
				{"Greyscale", yesNo(s.Greyscale)},
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Preset: %s\n", camera.DisplayPresetName(preset.Name))
			table := renderTable([]string{"Setting", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newPresetSaveCommand(ctx *commandContext) *cobra.Command {
	flags := &captureFlags{}

	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save current flag values as a named preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			settings, err := flags.buildSettings(cmd, cfg)
			if err != nil {
				return err
			}
			if err := presetStore(cfg).Save(args[0], settings); err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{"saved": camera.NormalizePresetName(args[0])})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved preset %s\n", camera.DisplayPresetName(args[0]))
			return nil
		},
	}

	flags.register(cmd, false)
	cmd.Flags().IntVarP(&flags.duration, "duration", "d", 0, "Recording length in seconds for video sessions")
	return cmd
}

func newPresetDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			removed, err := presetStore(cfg).Delete(args[0])
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{"deleted": removed})
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted preset %s\n", camera.DisplayPresetName(args[0]))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Preset %q not found\n", args[0])
			}
			return nil
		},
	}
}
