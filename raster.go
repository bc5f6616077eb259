package geotiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/google/uuid"
)

// A Raster is a read-only handle on a georeferenced raster. It must not be
// shared between goroutines: each worker opens its own.
type Raster struct {
	ds                  *godal.Dataset
	path                string
	width, height, nbnd int
	dtype               godal.DataType
}

// OpenRaster opens the raster at path. The returned error is an *OpenError,
// wrapping ErrNotFound when a local path does not exist.
func OpenRaster(path string) (*Raster, error) {
	if !strings.Contains(path, "://") && !strings.HasPrefix(path, "/vsi") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, &OpenError{Path: path, Err: ErrNotFound}
		}
	}
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	str := ds.Structure()
	return &Raster{
		ds:     ds,
		path:   path,
		width:  str.SizeX,
		height: str.SizeY,
		nbnd:   str.NBands,
		dtype:  str.DataType,
	}, nil
}

func (r *Raster) Path() string {
	return r.path
}

// Size returns the width, height and band count captured at open time.
func (r *Raster) Size() (width, height, bands int) {
	return r.width, r.height, r.nbnd
}

func (r *Raster) DataType() godal.DataType {
	return r.dtype
}

func (r *Raster) GeoTransform() (GeoTransform, error) {
	gt, err := r.ds.GeoTransform()
	if err != nil {
		return GeoTransform{}, fmt.Errorf("geotransform %s: %w", r.path, err)
	}
	return GeoTransform(gt), nil
}

// Projection returns the WKT of the raster's spatial reference, or an empty
// string if it has none.
func (r *Raster) Projection() string {
	return r.ds.Projection()
}

// NoData returns the nodata value of the 1-based band, if one is set.
func (r *Raster) NoData(band int) (float64, bool) {
	if band < 1 || band > r.nbnd {
		return 0, false
	}
	return r.ds.Bands()[band-1].NoData()
}

// ReadWindow reads the pixels of win for the given 1-based bands (all bands if
// none are given). One row-major buffer of Width*Height values is returned per
// band, in the requested order.
func (r *Raster) ReadWindow(win Window, bands ...int) ([][]float64, error) {
	if win.Width <= 0 || win.Height <= 0 || win.X < 0 || win.Y < 0 ||
		win.X+win.Width > r.width || win.Y+win.Height > r.height {
		return nil, fmt.Errorf("read %dx%d+%d+%d from %dx%d raster %s: %w",
			win.Width, win.Height, win.X, win.Y, r.width, r.height, r.path, ErrOutOfBounds)
	}
	if len(bands) == 0 {
		bands = make([]int, r.nbnd)
		for i := range bands {
			bands[i] = i + 1
		}
	}
	dsBands := r.ds.Bands()
	ret := make([][]float64, len(bands))
	for i, b := range bands {
		if b < 1 || b > len(dsBands) {
			return nil, fmt.Errorf("band %d of %s: %w", b, r.path, ErrOutOfBounds)
		}
		ret[i] = make([]float64, win.Width*win.Height)
		if err := dsBands[b-1].Read(win.X, win.Y, ret[i], win.Width, win.Height); err != nil {
			return nil, fmt.Errorf("read band %d of %s: %w", b, r.path, err)
		}
	}
	return ret, nil
}

// Close releases the underlying dataset.
func (r *Raster) Close() error {
	if r == nil || r.ds == nil {
		return nil
	}
	err := r.ds.Close()
	r.ds = nil
	return err
}

type CompressionScheme int

const (
	CompressNone CompressionScheme = iota
	CompressLZW
	CompressDeflate
)

func (c CompressionScheme) String() string {
	switch c {
	case CompressLZW:
		return "LZW"
	case CompressDeflate:
		return "DEFLATE"
	default:
		return "NONE"
	}
}

// ParseCompression maps a (case insensitive) name to a CompressionScheme.
func ParseCompression(name string) (CompressionScheme, error) {
	switch strings.ToUpper(name) {
	case "", "NONE":
		return CompressNone, nil
	case "LZW":
		return CompressLZW, nil
	case "DEFLATE":
		return CompressDeflate, nil
	}
	return CompressNone, ErrInvalidOption{fmt.Sprintf("unknown compression %q", name)}
}

// CreateOptions drive the GTiff creation options of new rasters.
type CreateOptions struct {
	Compression CompressionScheme
	Tiled       bool
	// BlockSize is the internal tile size, only used when Tiled is set. GDAL
	// picks its default (256) when 0.
	BlockSize int
	// Extra creation options in KEY=VALUE form, overriding the above.
	// A KEY= entry removes the key.
	Extra []string
}

func (o CreateOptions) creationOptions() []string {
	copts := map[string]string{}
	if o.Compression != CompressNone {
		copts["COMPRESS"] = o.Compression.String()
	}
	if o.Tiled {
		copts["TILED"] = "YES"
		if o.BlockSize > 0 {
			copts["BLOCKXSIZE"] = fmt.Sprintf("%d", o.BlockSize)
			copts["BLOCKYSIZE"] = fmt.Sprintf("%d", o.BlockSize)
		}
	}
	for _, co := range o.Extra {
		k, v, _ := strings.Cut(co, "=")
		if v == "" {
			delete(copts, k)
		} else {
			copts[k] = v
		}
	}
	ret := make([]string, 0, len(copts))
	for k, v := range copts {
		ret = append(ret, k+"="+v)
	}
	sort.Strings(ret)
	return ret
}

// A WritableRaster is a GTiff being created. Pixels are written to a temporary
// sibling of the destination, which is renamed into place by a successful Close.
type WritableRaster struct {
	ds            *godal.Dataset
	path, tmpPath string
	width, height int
	nbnd          int
	done          bool
}

// CreateRaster creates a new GTiff raster that will appear at path once closed.
func CreateRaster(path string, width, height, bands int, dtype godal.DataType, opts CreateOptions) (*WritableRaster, error) {
	if width <= 0 || height <= 0 || bands <= 0 {
		return nil, ErrInvalidOption{fmt.Sprintf("cannot create %dx%dx%d raster", width, height, bands)}
	}
	tmp := tempSibling(path)
	ds, err := godal.Create(godal.GTiff, tmp, bands, dtype, width, height,
		godal.CreationOption(opts.creationOptions()...))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &WritableRaster{
		ds:      ds,
		path:    path,
		tmpPath: tmp,
		width:   width,
		height:  height,
		nbnd:    bands,
	}, nil
}

func (w *WritableRaster) Path() string {
	return w.path
}

func (w *WritableRaster) SetGeoTransform(gt GeoTransform) error {
	if err := w.ds.SetGeoTransform([6]float64(gt)); err != nil {
		return fmt.Errorf("set geotransform on %s: %w", w.path, err)
	}
	return nil
}

// SetProjection sets the WKT spatial reference. An empty string is a no-op.
func (w *WritableRaster) SetProjection(wkt string) error {
	if wkt == "" {
		return nil
	}
	if err := w.ds.SetProjection(wkt); err != nil {
		return fmt.Errorf("set projection on %s: %w", w.path, err)
	}
	return nil
}

func (w *WritableRaster) SetNoData(band int, nodata float64) error {
	if band < 1 || band > w.nbnd {
		return fmt.Errorf("band %d of %s: %w", band, w.path, ErrOutOfBounds)
	}
	if err := w.ds.Bands()[band-1].SetNoData(nodata); err != nil {
		return fmt.Errorf("set nodata on band %d of %s: %w", band, w.path, err)
	}
	return nil
}

// WriteBand writes a full row-major buffer to the 1-based band.
func (w *WritableRaster) WriteBand(band int, buf []float64) error {
	if band < 1 || band > w.nbnd {
		return fmt.Errorf("band %d of %s: %w", band, w.path, ErrOutOfBounds)
	}
	if len(buf) != w.width*w.height {
		return fmt.Errorf("buffer of %d values for %dx%d band", len(buf), w.width, w.height)
	}
	if err := w.ds.Bands()[band-1].Write(0, 0, buf, w.width, w.height); err != nil {
		return fmt.Errorf("write band %d of %s: %w", band, w.path, err)
	}
	return nil
}

// Close flushes the dataset and moves it to its final path.
func (w *WritableRaster) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.ds.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	return commit(w.tmpPath, w.path)
}

// Abort discards the dataset. It is a no-op once Close has been called, and is
// meant to be deferred right after CreateRaster.
func (w *WritableRaster) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.ds.Close()
	_ = os.Remove(w.tmpPath)
}

// tempSibling returns a unique name in path's directory, keeping the extension
// so that drivers relying on it behave the same.
func tempSibling(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".tmp-" + uuid.New().String() + ext
}

func isTempName(name string) bool {
	return strings.Contains(name, ".tmp-")
}

func commit(tmp, dst string) error {
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s->%s: %w", tmp, dst, err)
	}
	return nil
}
