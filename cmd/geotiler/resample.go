package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/geotiler"
	"github.com/spf13/cobra"
)

func newResampleCommand(g *globalFlags) *cobra.Command {
	var scale float64
	var algorithm, switches, compression, logFile string
	var workers, copyWorkers int
	var resume, verify, cog bool
	var splits, copts, configOpts []string
	var pipeline geotiler.Pipeline

	cmd := &cobra.Command{
		Use:   "resample srcroot dstroot",
		Short: "resample the <split>/images rasters of srcroot into dstroot, copying <split>/labels",
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			comp, err := geotiler.ParseCompression(compression)
			if err != nil {
				return err
			}
			for _, co := range copts {
				if !strings.Contains(co, "=") {
					return fmt.Errorf("creation option %q is not KEY=VALUE", co)
				}
			}
			pipeline = geotiler.Pipeline{
				InputRoot:      args[0],
				OutputRoot:     args[1],
				Splits:         splits,
				Scale:          scale,
				Algorithm:      algorithm,
				Workers:        workers,
				CopyWorkers:    copyWorkers,
				Resume:         resume,
				VerifyExisting: verify,
				Switches:       switches,
				GDALConfig:     configOpts,
				Create: &geotiler.CreateOptions{
					Compression: comp,
					Tiled:       true,
					Extra:       copts,
				},
				COG: cog,
			}
			return pipeline.Validate()
		},
	}
	flags := cmd.Flags()
	flags.Float64Var(&scale, "scale", 2, "ratio between output and input pixel sizes")
	flags.StringVar(&algorithm, "algorithm", "average", "resampling algorithm")
	flags.IntVar(&workers, "workers", 0, "number of concurrent resamplings (default number of cpus)")
	flags.IntVar(&copyWorkers, "copy-workers", 0, "number of concurrent label copies (default --workers)")
	flags.BoolVar(&resume, "resume", true, "skip rasters whose output already exists")
	flags.BoolVar(&verify, "verify", false, "with --resume, regenerate existing outputs that are not complete tiffs")
	flags.StringVar(&switches, "switches", "", "extra gdalwarp switches, e.g. \"-dstnodata 0\"")
	flags.BoolVar(&cog, "cog", false, "write cloud optimized geotiffs")
	flags.StringSliceVar(&splits, "splits", geotiler.DefaultSplits, "dataset splits to process")
	flags.StringVar(&compression, "compression", "LZW", "output compression: NONE, LZW or DEFLATE")
	flags.StringArrayVar(&copts, "co", nil, "tif creation options, e.g. \"PREDICTOR=2\"")
	flags.StringArrayVar(&configOpts, "gdal-config", nil, "gdal configuration options, e.g. \"GDAL_CACHEMAX=512\"")
	flags.StringVar(&logFile, "log", "", "run log file (default <dstroot>/process_log.txt)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if logFile == "" {
			logFile = filepath.Join(args[1], "process_log.txt")
		}
		rl, err := geotiler.OpenRunLog(logFile, geotiler.Header("resampling",
			"input", args[0],
			"output", args[1],
			"scale", fmt.Sprintf("1:%g", scale),
			"algorithm", algorithm,
			"workers", fmt.Sprint(workers),
		))
		if err != nil {
			return err
		}
		defer rl.Close()
		pd := newProgressDisplay("resampling", g.noProgress)
		pipeline.Log = rl
		pipeline.Progress = pd.Progress
		rep, err := pipeline.Run(ctx)
		pd.Finish()
		if rep != nil {
			printSummary(os.Stdout, "images", geotiler.Summarize(rep.Images, rep.Summary.Elapsed))
			printSummary(os.Stdout, "labels", geotiler.Summarize(rep.Labels, rep.Summary.Elapsed))
			fmt.Fprintf(os.Stdout, "log saved to %s\n", logFile)
		}
		return err
	}
	return cmd
}
