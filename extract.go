package geotiler

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/godal"
)

// An Extractor cuts fixed-size tiles out of a source raster and writes the
// non-empty ones as independent georeferenced GTiffs.
//
// The usual workflow is to compute the tile windows of a source with Windows,
// then call ExtractTile for each of them, concurrently if needed: every call
// opens its own handle on the source.
type Extractor struct {
	tileSize     int
	threshold    float64
	create       CreateOptions
	preserveType bool
	ext          string
}

type ExtractorOption func(e *Extractor) error

// TileSize sets the width and height of the extracted tiles, in pixels.
func TileSize(size int) ExtractorOption {
	return func(e *Extractor) error {
		if size <= 0 {
			return ErrInvalidOption{"tile size must be >=1"}
		}
		e.tileSize = size
		return nil
	}
}

func (e Extractor) TileSize() int {
	return e.tileSize
}

// Threshold sets the emptiness threshold: a tile whose maximum value over all
// bands and pixels is strictly below it is considered background and skipped.
func Threshold(value float64) ExtractorOption {
	return func(e *Extractor) error {
		if math.IsNaN(value) {
			return ErrInvalidOption{"threshold must be a number"}
		}
		e.threshold = value
		return nil
	}
}

func (e Extractor) Threshold() float64 {
	return e.threshold
}

// Compression sets the compression of the tile files. Defaults to LZW.
func Compression(c CompressionScheme) ExtractorOption {
	return func(e *Extractor) error {
		e.create.Compression = c
		return nil
	}
}

// Untiled disables the internal tiling of the tile files.
func Untiled() ExtractorOption {
	return func(e *Extractor) error {
		e.create.Tiled = false
		return nil
	}
}

// CreationOptions adds raw KEY=VALUE GTiff creation options.
func CreationOptions(copts ...string) ExtractorOption {
	return func(e *Extractor) error {
		for _, co := range copts {
			if !strings.Contains(co, "=") {
				return ErrInvalidOption{fmt.Sprintf("creation option %q is not KEY=VALUE", co)}
			}
		}
		e.create.Extra = append(e.create.Extra, copts...)
		return nil
	}
}

// PreserveDataType writes tiles with the pixel type of the source instead of
// Float32.
func PreserveDataType() ExtractorOption {
	return func(e *Extractor) error {
		e.preserveType = true
		return nil
	}
}

// TileExtension sets the file extension of tile files, e.g. ".tiff".
func TileExtension(ext string) ExtractorOption {
	return func(e *Extractor) error {
		switch strings.ToLower(ext) {
		case ".tif", ".tiff":
			e.ext = ext
			return nil
		}
		return ErrInvalidOption{fmt.Sprintf("unsupported tile extension %q", ext)}
	}
}

// NewExtractor creates an extractor. Defaults are 416x416 tiles, a threshold
// of 100, and LZW compressed, internally tiled Float32 GTiffs.
func NewExtractor(options ...ExtractorOption) (Extractor, error) {
	e := Extractor{
		tileSize:  416,
		threshold: 100,
		create: CreateOptions{
			Compression: CompressLZW,
			Tiled:       true,
		},
		ext: ".tif",
	}
	for _, o := range options {
		if err := o(&e); err != nil {
			return e, err
		}
	}
	return e, nil
}

// Windows returns the tile windows of a width*height source.
func (e Extractor) Windows(width, height int) ([]Window, error) {
	return Grid(width, height, e.tileSize)
}

// TileName returns the file name of the tile of src at win.
func (e Extractor) TileName(src string, win Window) string {
	base := filepath.Base(src)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_%d_%d%s", base, win.Col, win.Row, e.ext)
}

func tileUnit(src string, win Window) string {
	return fmt.Sprintf("%s[%d,%d]", src, win.Col, win.Row)
}

// ExtractTile reads win from src and, unless it is empty, writes it to outDir.
func (e Extractor) ExtractTile(src string, win Window, outDir string) Outcome {
	unit := tileUnit(src, win)
	path, empty, err := e.extract(src, win, outDir)
	switch {
	case err != nil:
		return Failed(KindTile, unit, err)
	case empty:
		return Skipped(KindTile, unit, ReasonEmpty)
	}
	return Success(KindTile, unit, path)
}

func (e Extractor) extract(src string, win Window, outDir string) (string, bool, error) {
	r, err := OpenRaster(src)
	if err != nil {
		return "", false, err
	}
	defer r.Close()

	data, err := r.ReadWindow(win)
	if err != nil {
		return "", false, err
	}
	if maxValue(data) < e.threshold {
		return "", true, nil
	}
	gt, err := r.GeoTransform()
	if err != nil {
		return "", false, err
	}

	dtype := godal.Float32
	if e.preserveType {
		dtype = r.DataType()
	}
	path := filepath.Join(outDir, e.TileName(src, win))
	w, err := CreateRaster(path, win.Width, win.Height, len(data), dtype, e.create)
	if err != nil {
		return "", false, err
	}
	defer w.Abort()
	if err := w.SetGeoTransform(gt.Shift(win.X, win.Y)); err != nil {
		return "", false, err
	}
	if err := w.SetProjection(r.Projection()); err != nil {
		return "", false, err
	}
	for b := range data {
		if nd, ok := r.NoData(b + 1); ok {
			if err := w.SetNoData(b+1, nd); err != nil {
				return "", false, err
			}
		}
		if err := w.WriteBand(b+1, data[b]); err != nil {
			return "", false, err
		}
	}
	if err := w.Close(); err != nil {
		return "", false, err
	}
	return path, false, nil
}

// maxValue returns the largest non-NaN value of all buffers, or -Inf.
func maxValue(bufs [][]float64) float64 {
	m := math.Inf(-1)
	for _, buf := range bufs {
		for _, v := range buf {
			if v > m {
				m = v
			}
		}
	}
	return m
}
