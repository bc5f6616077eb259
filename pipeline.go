package geotiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSplits are the dataset splits processed when none are given.
var DefaultSplits = []string{"train", "val", "test"}

// A Pipeline resamples the rasters of a dataset tree laid out as
// <root>/<split>/images and <root>/<split>/labels into a mirrored tree under
// OutputRoot, copying the label files unchanged.
type Pipeline struct {
	InputRoot  string
	OutputRoot string
	// Splits defaults to DefaultSplits.
	Splits []string
	// Scale is the ratio between the output and input pixel sizes.
	Scale float64
	// Algorithm defaults to "average".
	Algorithm string
	// Workers resample rasters. CopyWorkers copy labels and default to
	// Workers.
	Workers     int
	CopyWorkers int
	// Resume skips rasters whose output already exists. With VerifyExisting,
	// existing outputs are probed first and regenerated if incomplete.
	Resume         bool
	VerifyExisting bool
	// Switches are extra gdalwarp switches, shell quoted.
	Switches string
	// GDALConfig are KEY=VALUE gdal configuration options.
	GDALConfig []string
	// Create sets the creation options of the output rasters. Defaults to
	// LZW compressed, internally tiled.
	Create *CreateOptions
	COG    bool
	// RasterExts defaults to .tif and .tiff, LabelExt to .txt.
	RasterExts []string
	LabelExt   string
	Log        *RunLog
	Progress   *Progress
}

type PipelineReport struct {
	Images  []Outcome
	Labels  []Outcome
	Summary Summary
}

func (pl Pipeline) options() (Algorithm, resampleOpts, error) {
	name := pl.Algorithm
	if name == "" {
		name = string(Average)
	}
	alg, err := ParseAlgorithm(name)
	if err != nil {
		return "", resampleOpts{}, err
	}
	if !(pl.Scale > 0) {
		return "", resampleOpts{}, ErrInvalidOption{"scale factor must be >0"}
	}
	opts := []ResampleOption{WarpSwitches(pl.Switches), GDALConfig(pl.GDALConfig...)}
	if pl.Create != nil {
		if pl.COG && !pl.Create.Tiled {
			return "", resampleOpts{}, ErrInvalidOption{"cog output requires tiled rasters"}
		}
		opts = append(opts, ResampleCreateOptions(*pl.Create))
	}
	if pl.COG {
		opts = append(opts, AsCOG())
	}
	o, err := newResampleOpts(opts)
	return alg, o, err
}

// Validate checks the pipeline parameters without touching the filesystem.
func (pl Pipeline) Validate() error {
	_, _, err := pl.options()
	return err
}

// Run processes the splits one after the other. Invalid parameters are
// reported before anything is created on disk. Per file failures are recorded
// in the report and never abort the run.
func (pl Pipeline) Run(ctx context.Context) (*PipelineReport, error) {
	alg, opts, err := pl.options()
	if err != nil {
		return nil, err
	}
	if !isDir(pl.InputRoot) {
		return nil, &OpenError{Path: pl.InputRoot, Err: ErrNotFound}
	}
	splits := pl.Splits
	if len(splits) == 0 {
		splits = DefaultSplits
	}
	rasterExts := pl.RasterExts
	if len(rasterExts) == 0 {
		rasterExts = []string{".tif", ".tiff"}
	}
	labelExt := pl.LabelExt
	if labelExt == "" {
		labelExt = ".txt"
	}
	if err := os.MkdirAll(pl.OutputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", pl.OutputRoot, err)
	}

	start := time.Now()
	lg := Logger(ctx)
	rep := &PipelineReport{}
	var mu sync.Mutex
	record := func(o Outcome) {
		pl.Log.Record(o)
		if o.Status == StatusFailed {
			lg.Warn("unit failed", zap.String("kind", string(o.Kind)), zap.String("path", o.Unit), zap.Error(o.Err))
		}
		mu.Lock()
		if o.Kind == KindLabel {
			rep.Labels = append(rep.Labels, o)
		} else {
			rep.Images = append(rep.Images, o)
		}
		mu.Unlock()
		pl.Progress.Advance()
	}

	for _, split := range splits {
		if ctx.Err() != nil {
			break
		}
		s := splitRun{
			pl:     pl,
			split:  split,
			alg:    alg,
			opts:   opts,
			record: record,
		}
		if err := s.run(ctx, rasterExts, labelExt); err != nil {
			return rep, err
		}
	}

	all := append(append([]Outcome{}, rep.Images...), rep.Labels...)
	rep.Summary = Summarize(all, time.Since(start))
	pl.Log.Printf("all done: %s", rep.Summary)
	lg.Info("resampling done", zap.Stringer("summary", rep.Summary))
	return rep, ctx.Err()
}

type splitRun struct {
	pl     Pipeline
	split  string
	alg    Algorithm
	opts   resampleOpts
	record func(Outcome)
}

func (s splitRun) run(ctx context.Context, rasterExts []string, labelExt string) error {
	lg := Logger(ctx).With(zap.String("split", s.split))
	imgIn := filepath.Join(s.pl.InputRoot, s.split, "images")
	lblIn := filepath.Join(s.pl.InputRoot, s.split, "labels")
	imgOut := filepath.Join(s.pl.OutputRoot, s.split, "images")
	lblOut := filepath.Join(s.pl.OutputRoot, s.split, "labels")

	var images, labels []string
	var err error
	if isDir(imgIn) {
		if images, err = listFiles(imgIn, rasterExts...); err != nil {
			return fmt.Errorf("list %s: %w", imgIn, err)
		}
		if len(images) == 0 {
			s.pl.Log.Printf("empty folder: %s", imgIn)
		}
	} else {
		s.pl.Log.Printf("missing folder: %s", imgIn)
		lg.Info("no images folder", zap.String("path", imgIn))
	}
	if isDir(lblIn) {
		if labels, err = listFiles(lblIn, labelExt); err != nil {
			return fmt.Errorf("list %s: %w", lblIn, err)
		}
	} else {
		s.pl.Log.Printf("missing folder: %s", lblIn)
		lg.Info("no labels folder", zap.String("path", lblIn))
	}
	if len(images) > 0 {
		if err := os.MkdirAll(imgOut, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", imgOut, err)
		}
	}
	if len(labels) > 0 {
		if err := os.MkdirAll(lblOut, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", lblOut, err)
		}
	}
	s.pl.Progress.AddTotal(len(images) + len(labels))
	lg.Info("processing split", zap.Int("images", len(images)), zap.Int("labels", len(labels)))

	cpu := newCPUPool(s.pl.Workers)
	copyWorkers := s.pl.CopyWorkers
	if copyWorkers <= 0 {
		copyWorkers = s.pl.Workers
	}
	ioPool := newIOPool(copyWorkers)

	for _, name := range images {
		src := filepath.Join(imgIn, name)
		dst := filepath.Join(imgOut, name)
		if s.pl.Resume && exists(dst) {
			if !s.pl.VerifyExisting {
				s.record(Skipped(KindResample, src, ReasonExists))
				continue
			}
			err := ProbeTIFF(dst)
			if err == nil {
				s.record(Skipped(KindResample, src, ReasonExists))
				continue
			}
			s.pl.Log.Printf("regenerating incomplete output %s: %v", dst, err)
		}
		if !submit(ctx, cpu, func() { s.record(s.resample(ctx, src, dst)) }) {
			break
		}
	}
	copyLabels(ctx, ioPool, lblIn, lblOut, labels, s.record)
	cpu.Wait()
	ioPool.Wait()
	return nil
}

func (s splitRun) resample(ctx context.Context, src, dst string) Outcome {
	if err := resample(ctx, src, dst, s.pl.Scale, s.alg, s.opts); err != nil {
		return Failed(KindResample, src, err)
	}
	return Success(KindResample, src, dst)
}
