package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"astropitography/internal/solver"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the star catalog and pattern database",
	}

	catalogCmd.AddCommand(newCatalogBuildCommand(ctx))
	catalogCmd.AddCommand(newCatalogInfoCommand(ctx))

	return catalogCmd
}

func newCatalogBuildCommand(ctx *commandContext) *cobra.Command {
	var catalogPath string
	var outputPath string
	var maxFOV float64
	var maxMagnitude float64
	var epochYear int

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the pattern database from a BSC5 star catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			source := strings.TrimSpace(catalogPath)
			if source == "" {
				source = cfg.Paths.CatalogPath
			}
			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = cfg.Paths.PatternDBPath
			}

			fov := maxFOV
			if fov <= 0 {
				fov = cfg.Solver.MaxFOV
			}
			if fov <= 0 {
				return fmt.Errorf("maximum field of view is required (set --max-fov or solver.max_fov)")
			}
			magnitude := maxMagnitude
			if magnitude <= 0 {
				magnitude = cfg.Solver.MaxMagnitude
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loading catalog %s...\n", source)
			stars, err := solver.LoadCatalog(source, magnitude, epochYear)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Loaded %d stars (magnitude <= %.1f)\n", len(stars), magnitude)

			opts := solver.DefaultGenerateOptions()
			opts.MaxFOVDeg = fov
			opts.StarMaxMagnitude = magnitude
			if cfg.Solver.PatternStarsPerFOV > 0 {
				opts.PatternStarsPerFOV = cfg.Solver.PatternStarsPerFOV
			}
			if cfg.Solver.CatalogStarsPerFOV > 0 {
				opts.CatalogStarsPerFOV = cfg.Solver.CatalogStarsPerFOV
			}

			fmt.Fprintf(out, "Generating patterns for a %.1f° field of view...\n", fov)
			started := time.Now()
			db, err := solver.Generate(stars, opts)
			if err != nil {
				return err
			}
			if err := db.Save(target); err != nil {
				return fmt.Errorf("save pattern database: %w", err)
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"database":  target,
					"stars":     len(db.Stars),
					"patterns":  db.PatternCount(),
					"max_fov":   fov,
					"elapsed_s": time.Since(started).Seconds(),
				})
			}
			fmt.Fprintf(out, "Wrote %s: %d stars, %d patterns in %s\n",
				target, len(db.Stars), db.PatternCount(), time.Since(started).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "BSC5 catalog path (defaults to the configured one)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Pattern database output path (defaults to the configured one)")
	cmd.Flags().Float64Var(&maxFOV, "max-fov", 0, "Widest field of view the solver should handle, in degrees")
	cmd.Flags().Float64Var(&maxMagnitude, "max-magnitude", 0, "Dimmest star magnitude to include")
	cmd.Flags().IntVar(&epochYear, "epoch", 0, "Proper motion epoch year (current year when 0)")
	return cmd
}

func newCatalogInfoCommand(ctx *commandContext) *cobra.Command {
	var databasePath string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show pattern database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			path := strings.TrimSpace(databasePath)
			if path == "" {
				path = cfg.Paths.PatternDBPath
			}

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("pattern database %s not found; run `astropitography catalog build`", path)
			}
			db, err := solver.LoadDatabase(path)
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"database":   path,
					"size_bytes": info.Size(),
					"stars":      len(db.Stars),
					"patterns":   db.PatternCount(),
					"max_fov":    db.MaxFOVDeg,
				})
			}

			rows := [][]string{
				{"Database", path},
				{"Size", fmt.Sprintf("%.1f MiB", float64(info.Size())/(1<<20))},
				{"Stars", fmt.Sprintf("%d", len(db.Stars))},
				{"Patterns", fmt.Sprintf("%d", db.PatternCount())},
				{"Max FOV", fmt.Sprintf("%.1f°", db.MaxFOVDeg)},
			}
			table := renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&databasePath, "database", "", "Pattern database path (defaults to the configured one)")
	return cmd
}
