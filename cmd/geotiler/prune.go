package main

import (
	"fmt"
	"os"

	"github.com/airbusgeo/geotiler"
	"github.com/spf13/cobra"
)

func newPruneCommand() *cobra.Command {
	opts := geotiler.PruneOptions{}
	var logFile string
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "remove the tiles and previews that have no label file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.TileDir == "" || opts.LabelDir == "" {
				return fmt.Errorf("--tiles and --labels are required")
			}
			if logFile != "" {
				rl, err := geotiler.OpenRunLog(logFile, geotiler.Header("pruning",
					"tiles", opts.TileDir, "previews", opts.PreviewDir, "labels", opts.LabelDir,
					"dry run", fmt.Sprint(opts.DryRun)))
				if err != nil {
					return err
				}
				defer rl.Close()
				opts.Log = rl
			}
			outcomes, err := geotiler.Prune(opts)
			fmt.Fprintln(os.Stdout, geotiler.PruneSummary(outcomes, opts.DryRun))
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.TileDir, "tiles", "", "tile directory")
	flags.StringVar(&opts.PreviewDir, "previews", "", "preview directory")
	flags.StringVar(&opts.LabelDir, "labels", "", "label directory")
	flags.StringVar(&opts.LabelExt, "label-ext", ".txt", "label file extension")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "only report what would be removed")
	flags.StringVar(&logFile, "log", "", "run log file")
	return cmd
}
