package main

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"astropitography/internal/api"
	"astropitography/internal/solver"
)

func newSolveCommand(ctx *commandContext) *cobra.Command {
	var databasePath string
	var fovEstimate float64
	var fovMaxError float64

	cmd := &cobra.Command{
		Use:   "solve FILE",
		Short: "Plate solve a single image against the pattern database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			dbPath := strings.TrimSpace(databasePath)
			if dbPath == "" {
				dbPath = cfg.Paths.PatternDBPath
			}
			db, err := solver.LoadDatabase(dbPath)
			if err != nil {
				return fmt.Errorf("load pattern database %s (run `astropitography catalog build` first): %w", dbPath, err)
			}
			engine, err := solver.New(db)
			if err != nil {
				return err
			}

			img, err := decodeImageFile(args[0])
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			opts := solver.SolveOptions{
				MatchRadius:    cfg.Solver.MatchRadius,
				MatchThreshold: cfg.Solver.MatchThreshold,
			}
			if fovEstimate > 0 {
				opts.FOVEstimateDeg = fovEstimate
				opts.FOVMaxErrorDeg = fovMaxError
			} else if cfg.Solver.MaxFOV > 0 {
				opts.FOVEstimateDeg = (cfg.Solver.MinFOV + cfg.Solver.MaxFOV) / 2
				if cfg.Solver.MaxFOV > cfg.Solver.MinFOV {
					opts.FOVMaxErrorDeg = (cfg.Solver.MaxFOV - cfg.Solver.MinFOV) / 2
				}
			}

			solution, err := engine.SolveImage(img, solver.DefaultExtractOptions(), opts)
			if err != nil {
				if errors.Is(err, solver.ErrNoMatch) {
					if ctx.JSONMode() {
						return writeJSON(cmd, map[string]any{"solved": false})
					}
					fmt.Fprintln(cmd.OutOrStdout(), "No match found")
					return nil
				}
				return err
			}

			converted := api.Solution{
				RADeg:         solution.RADeg,
				DecDeg:        solution.DecDeg,
				RollDeg:       solution.RollDeg,
				FOVDeg:        solution.FOVDeg,
				Matches:       solution.Matches,
				RMSEArcsec:    solution.RMSEArcsec,
				MismatchProb:  solution.Probability,
				SolveMillis:   float64(solution.SolveTime.Microseconds()) / 1000,
				ExtractMillis: float64(solution.ExtractTime.Microseconds()) / 1000,
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{"solved": true, "solution": converted})
			}
			printSolutionTable(cmd, converted)
			return nil
		},
	}

	cmd.Flags().StringVar(&databasePath, "database", "", "Pattern database path (defaults to the configured one)")
	cmd.Flags().Float64Var(&fovEstimate, "fov", 0, "Horizontal field of view estimate in degrees")
	cmd.Flags().Float64Var(&fovMaxError, "fov-error", 0, "Maximum error on the field of view estimate in degrees")
	return cmd
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func printSolutionTable(cmd *cobra.Command, solution api.Solution) {
	rows := [][]string{
		{"RA", fmt.Sprintf("%.4f°", solution.RADeg)},
		{"Dec", fmt.Sprintf("%.4f°", solution.DecDeg)},
		{"Roll", fmt.Sprintf("%.2f°", solution.RollDeg)},
		{"FOV", fmt.Sprintf("%.3f°", solution.FOVDeg)},
		{"Matches", fmt.Sprintf("%d", solution.Matches)},
		{"RMSE", fmt.Sprintf("%.2f\"", solution.RMSEArcsec)},
		{"Mismatch prob", fmt.Sprintf("%.2e", solution.MismatchProb)},
		{"Extract time", fmt.Sprintf("%.0f ms", solution.ExtractMillis)},
		{"Solve time", fmt.Sprintf("%.0f ms", solution.SolveMillis)},
	}
	table := renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
	fmt.Fprintln(cmd.OutOrStdout(), table)
}
