package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/geotiler"
	"github.com/spf13/cobra"
)

func newPreviewCommand(g *globalFlags) *cobra.Command {
	var contrast float64
	var workers int
	var resume bool
	var logFile string

	cmd := &cobra.Command{
		Use:   "preview srcdir dstdir",
		Short: "render a png preview of every raster of srcdir into dstdir",
		Args:  cobra.ExactArgs(2),
	}
	flags := cmd.Flags()
	flags.Float64Var(&contrast, "contrast", geotiler.DefaultContrast, "contrast factor, 0 renders flat gray")
	flags.IntVar(&workers, "workers", 0, "number of concurrent renderings (default number of cpus)")
	flags.BoolVar(&resume, "resume", true, "skip rasters whose preview already exists")
	flags.StringVar(&logFile, "log", "", "run log file (default <dstdir>/process_log.txt)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if contrast < 0 {
			return fmt.Errorf("invalid contrast %g, must be >=0", contrast)
		}
		if logFile == "" {
			logFile = filepath.Join(args[1], "process_log.txt")
		}
		rl, err := geotiler.OpenRunLog(logFile, geotiler.Header("preview rendering",
			"input", args[0], "output", args[1]))
		if err != nil {
			return err
		}
		defer rl.Close()
		pd := newProgressDisplay("previews", g.noProgress)
		rep, err := geotiler.PreviewFolder{
			InputDir:  args[0],
			OutputDir: args[1],
			Contrast:  contrast,
			Workers:   workers,
			Resume:    resume,
			Log:       rl,
			Progress:  pd.Progress,
		}.Run(ctx)
		pd.Finish()
		if rep != nil {
			printSummary(os.Stdout, "previews", rep.Summary)
		}
		return err
	}
	return cmd
}
