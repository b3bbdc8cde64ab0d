package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"astropitography/internal/preview"
	"astropitography/internal/queue"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var sessionID int64
	var outputPath string
	var greyscale bool
	var maxWidth int

	cmd := &cobra.Command{
		Use:   "preview [FILE]",
		Short: "Render a reticle preview PNG from a frame",
		Long: "Render a reticle preview PNG from the given frame file, or from the most\n" +
			"recent captured frame in the queue when no file is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			framePath := ""
			if len(args) == 1 {
				framePath = args[0]
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				store, err := queue.Open(cfg)
				if err != nil {
					return err
				}
				defer store.Close()
				framePath, err = latestFramePath(cmd.Context(), store, sessionID)
				if err != nil {
					return err
				}
			}

			data, err := preview.Render(framePath, preview.Options{
				Greyscale: greyscale,
				MaxWidth:  maxWidth,
			})
			if err != nil {
				return err
			}

			target := strings.TrimSpace(outputPath)
			if target == "" || target == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(target, data, 0o644); err != nil {
				return fmt.Errorf("write preview: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote preview of %s to %s\n", framePath, target)
			return nil
		},
	}

	cmd.Flags().Int64Var(&sessionID, "id", 0, "Preview the latest frame of this session instead of the newest overall")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (stdout when empty or '-')")
	cmd.Flags().BoolVar(&greyscale, "greyscale", false, "Render the preview in greyscale")
	cmd.Flags().IntVar(&maxWidth, "max-width", 0, "Cap the preview width in pixels")
	return cmd
}

// latestFramePath mirrors the daemon's preview frame selection so the CLI
// works without a running daemon.
func latestFramePath(ctx context.Context, store *queue.Store, id int64) (string, error) {
	if id > 0 {
		item, err := store.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		if item == nil {
			return "", fmt.Errorf("session %d not found", id)
		}
		frames := item.FramePaths()
		if len(frames) == 0 {
			return "", fmt.Errorf("session %d has no captured frames", id)
		}
		return frames[len(frames)-1], nil
	}

	items, err := store.List(ctx)
	if err != nil {
		return "", err
	}
	for i := len(items) - 1; i >= 0; i-- {
		frames := items[i].FramePaths()
		if len(frames) > 0 {
			return frames[len(frames)-1], nil
		}
	}
	return "", fmt.Errorf("no captured frames available; run `astropitography capture` first")
}
