package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/geotiler"
	"github.com/spf13/cobra"
)

func newTileCommand(g *globalFlags) *cobra.Command {
	var tileDir, previewDir, logFile string
	var tileSize, workers, previewWorkers int
	var threshold, contrast float64
	var previews, preserveType, untiled, bounds bool
	var compression string
	var copts []string
	var extractor geotiler.Extractor

	cmd := &cobra.Command{
		Use:   "tile source.tif",
		Short: "cut source.tif into georeferenced tiles, and optionally render their previews",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			comp, err := geotiler.ParseCompression(compression)
			if err != nil {
				return err
			}
			opts := []geotiler.ExtractorOption{
				geotiler.TileSize(tileSize),
				geotiler.Threshold(threshold),
				geotiler.Compression(comp),
				geotiler.CreationOptions(copts...),
			}
			if preserveType {
				opts = append(opts, geotiler.PreserveDataType())
			}
			if untiled {
				opts = append(opts, geotiler.Untiled())
			}
			if extractor, err = geotiler.NewExtractor(opts...); err != nil {
				return err
			}
			if previews && contrast < 0 {
				return fmt.Errorf("invalid contrast %g, must be >=0", contrast)
			}
			if tileDir == "" {
				tileDir = defaultOutputDir(args[0], "tiles")
			}
			if previewDir == "" {
				previewDir = defaultOutputDir(args[0], "previews")
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&tileDir, "tiles", "", "tile output directory (default <source>_tiles)")
	flags.StringVar(&previewDir, "previews", "", "preview output directory (default <source>_previews)")
	flags.BoolVar(&previews, "preview", false, "render a png preview of every tile")
	flags.IntVar(&tileSize, "tilesize", 416, "tile width and height, in pixels")
	flags.Float64Var(&threshold, "threshold", 100, "tiles whose maximum pixel value is below threshold are skipped")
	flags.Float64Var(&contrast, "contrast", geotiler.DefaultContrast, "preview contrast factor, 0 renders flat gray")
	flags.IntVar(&workers, "workers", 0, "number of concurrent tile extractions (default number of cpus)")
	flags.IntVar(&previewWorkers, "preview-workers", 0, "number of concurrent preview renderings (default --workers)")
	flags.StringVar(&compression, "compression", "LZW", "tile compression: NONE, LZW or DEFLATE")
	flags.StringArrayVar(&copts, "co", nil, "tif creation options, e.g. \"PREDICTOR=2\"")
	flags.BoolVar(&preserveType, "preserve-type", false, "keep the source pixel type instead of Float32")
	flags.BoolVar(&untiled, "untiled", false, "write striped instead of internally tiled tiles")
	flags.BoolVar(&bounds, "bounds", true, "write a <source>.txt index of tile bounds next to the tile directory")
	flags.StringVar(&logFile, "log", "", "run log file (default <tiles>/process_log.txt)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src := args[0]
		if logFile == "" {
			logFile = filepath.Join(tileDir, "process_log.txt")
		}
		// fail on an unreadable source before creating the log
		r, err := geotiler.OpenRaster(src)
		if err != nil {
			return err
		}
		r.Close()
		rl, err := geotiler.OpenRunLog(logFile, geotiler.Header("tiling",
			"source", src,
			"tiles", tileDir,
			"previews", boolString(previews, previewDir),
			"tilesize", fmt.Sprint(extractor.TileSize()),
			"threshold", fmt.Sprint(extractor.Threshold()),
		))
		if err != nil {
			return err
		}
		defer rl.Close()

		pd := newProgressDisplay("tiling", g.noProgress)
		rep, err := geotiler.Batch{
			Source:         src,
			TileDir:        tileDir,
			PreviewDir:     previewDir,
			Extractor:      extractor,
			Contrast:       contrast,
			Previews:       previews,
			Workers:        workers,
			PreviewWorkers: previewWorkers,
			BoundsIndex:    bounds,
			Log:            rl,
			Progress:       pd.Progress,
		}.Run(ctx)
		pd.Finish()
		if rep != nil {
			rl.Printf("done: %s", rep.Summary)
			printSummary(os.Stdout, "tiles", geotiler.Summarize(rep.Tiles, rep.Summary.Elapsed))
			if previews {
				printSummary(os.Stdout, "previews", geotiler.Summarize(rep.Previews, rep.Summary.Elapsed))
			}
		}
		return err
	}
	return cmd
}

func defaultOutputDir(src, suffix string) string {
	base := filepath.Base(src)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if strings.Contains(src, "://") {
		return base + "_" + suffix
	}
	return filepath.Join(filepath.Dir(src), base+"_"+suffix)
}

func boolString(enabled bool, s string) string {
	if !enabled {
		return "disabled"
	}
	return s
}
