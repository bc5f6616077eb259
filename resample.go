package geotiler

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/mattn/go-shellwords"
)

// Algorithm is a GDAL resampling method name.
type Algorithm string

const (
	Nearest     Algorithm = "nearest"
	Bilinear    Algorithm = "bilinear"
	Cubic       Algorithm = "cubic"
	CubicSpline Algorithm = "cubicspline"
	Lanczos     Algorithm = "lanczos"
	Average     Algorithm = "average"
	Mode        Algorithm = "mode"
	Max         Algorithm = "max"
	Min         Algorithm = "min"
	Med         Algorithm = "med"
	Q1          Algorithm = "q1"
	Q3          Algorithm = "q3"
)

var algorithms = []Algorithm{Nearest, Bilinear, Cubic, CubicSpline, Lanczos, Average, Mode, Max, Min, Med, Q1, Q3}

// ParseAlgorithm validates a resampling method name. Names are case sensitive,
// as they are for gdalwarp.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, a := range algorithms {
		if string(a) == name {
			return a, nil
		}
	}
	return "", &InvalidAlgorithmError{Name: name}
}

type resampleOpts struct {
	switches []string
	create   CreateOptions
	cog      bool
	config   []string
}

type ResampleOption func(o *resampleOpts) error

// WarpSwitches adds extra gdalwarp command line switches, given as a single
// shell-quoted string. Switches controlling the output size, resolution,
// extent, format or resampling method are rejected.
func WarpSwitches(switches string) ResampleOption {
	return func(o *resampleOpts) error {
		sw, err := ParseSwitches(switches)
		if err != nil {
			return err
		}
		o.switches = append(o.switches, sw...)
		return nil
	}
}

// ResampleCreateOptions sets the creation options of the resampled rasters.
// Defaults to LZW compressed, internally tiled.
func ResampleCreateOptions(co CreateOptions) ResampleOption {
	return func(o *resampleOpts) error {
		o.create = co
		return nil
	}
}

// AsCOG rewrites the resampled rasters as cloud optimized geotiffs.
func AsCOG() ResampleOption {
	return func(o *resampleOpts) error {
		o.cog = true
		return nil
	}
}

// GDALConfig sets KEY=VALUE gdal configuration options for the warp.
func GDALConfig(opts ...string) ResampleOption {
	return func(o *resampleOpts) error {
		for _, co := range opts {
			if !strings.Contains(co, "=") {
				return ErrInvalidOption{fmt.Sprintf("config option %q is not KEY=VALUE", co)}
			}
		}
		o.config = append(o.config, opts...)
		return nil
	}
}

func newResampleOpts(options []ResampleOption) (resampleOpts, error) {
	o := resampleOpts{create: CreateOptions{Compression: CompressLZW, Tiled: true}}
	for _, opt := range options {
		if err := opt(&o); err != nil {
			return o, err
		}
	}
	return o, nil
}

// ParseSwitches splits and validates extra gdalwarp switches.
func ParseSwitches(switches string) ([]string, error) {
	sw, err := shellwords.Parse(switches)
	if err != nil {
		return nil, ErrInvalidOption{fmt.Sprintf("invalid warp switches: %v", err)}
	}
	if err := checkSwitches(sw); err != nil {
		return nil, err
	}
	return sw, nil
}

func checkSwitches(sw []string) error {
	for _, s := range sw {
		switch s {
		case "-of", "-tr", "-ts", "-te", "-te_srs", "-outsize", "-r", "-overwrite", "-co":
			return ErrInvalidOption{fmt.Sprintf("%s switch not allowed, it is set by the resampler", s)}
		}
	}
	return nil
}

// Resample writes to out a copy of the raster in at a resolution scale times
// coarser, using alg. scale 2 halves the width and height.
//
// The returned error is an *OpenError if in cannot be opened, and a
// *ResampleError for any later failure. out only appears when the whole
// raster has been written.
func Resample(ctx context.Context, in, out string, scale float64, alg Algorithm, options ...ResampleOption) error {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return ErrInvalidOption{"scale factor must be >0"}
	}
	if _, err := ParseAlgorithm(string(alg)); err != nil {
		return err
	}
	o, err := newResampleOpts(options)
	if err != nil {
		return err
	}
	return resample(ctx, in, out, scale, alg, o)
}

func resample(ctx context.Context, in, out string, scale float64, alg Algorithm, o resampleOpts) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := OpenRaster(in)
	if err != nil {
		return err
	}
	defer src.Close()
	gt, err := src.GeoTransform()
	if err != nil {
		return &ResampleError{Path: in, Err: err}
	}
	xres, yres := gt.PixelSize()
	switches := append([]string{
		"-of", "GTiff",
		"-tr", fmt.Sprintf("%.17g", xres*scale), fmt.Sprintf("%.17g", yres*scale),
		"-r", string(alg),
	}, o.switches...)

	tmp := tempSibling(out)
	dst, err := src.ds.Warp(tmp, switches,
		godal.CreationOption(o.create.creationOptions()...),
		godal.ConfigOption(o.config...))
	if err != nil {
		_ = os.Remove(tmp)
		return &ResampleError{Path: in, Err: fmt.Errorf("warp: %w", err)}
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return &ResampleError{Path: in, Err: fmt.Errorf("close %s: %w", out, err)}
	}
	if o.cog {
		if err := rewriteCOG(tmp); err != nil {
			_ = os.Remove(tmp)
			return &ResampleError{Path: in, Err: err}
		}
	}
	if err := commit(tmp, out); err != nil {
		return &ResampleError{Path: in, Err: err}
	}
	return nil
}
