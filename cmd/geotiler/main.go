package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/airbusgeo/geotiler"
	"github.com/airbusgeo/godal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()
	godal.RegisterAll()
	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	verbose    bool
	configFile string
	noProgress bool
	gcsBlock   string
	gcsBlocks  int
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	var startTime time.Time
	cmd := &cobra.Command{
		Use:   "geotiler",
		Short: "georeferenced raster tiling and resampling",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			startTime = time.Now()
			lg, err := newLogger(g.verbose)
			if err != nil {
				return err
			}
			ctx := geotiler.WithLogger(cmd.Context(), lg)
			cmd.SetContext(ctx)
			if g.configFile != "" {
				if err := applyConfigFile(cmd, g.configFile); err != nil {
					return err
				}
			}
			if usesGCS(cmd, args) {
				if err := registerGCS(ctx, g.gcsBlock, g.gcsBlocks); err != nil {
					return err
				}
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			lg := geotiler.Logger(cmd.Context())
			lg.Sugar().Debugf("command %s took %.1fs", cmd.Name(), time.Since(startTime).Seconds())
			_ = lg.Sync()
		},
	}
	pf := cmd.PersistentFlags()
	pf.BoolVar(&g.verbose, "verbose", false, "verbose output")
	pf.StringVar(&g.configFile, "config", "", "yaml file of flag values, e.g. \"tilesize: 512\"")
	pf.BoolVar(&g.noProgress, "no-progress", false, "do not display a progress bar")
	pf.StringVar(&g.gcsBlock, "blocksize", "512k", "gs:// cache blocksize")
	pf.IntVar(&g.gcsBlocks, "numblocks", 1000, "number of gs:// cached blocks")

	cmd.AddCommand(
		newTileCommand(g),
		newPreviewCommand(g),
		newResampleCommand(g),
		newPruneCommand(),
		newWorkflowCommand(),
	)
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	var lg *zap.Logger
	var err error
	if verbose {
		lg, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Sampling = nil
		lg, err = cfg.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return lg, nil
}

// usesGCS reports whether any argument or path flag of cmd is a gs:// url.
func usesGCS(cmd *cobra.Command, args []string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, "gs://") {
			return true
		}
	}
	found := false
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Value.Type() == "string" && strings.HasPrefix(f.Value.String(), "gs://") {
			found = true
		}
	})
	return found
}
