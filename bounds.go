package geotiler

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/airbusgeo/godal"
)

// TileBounds holds the upper left and lower right corners of a tile.
type TileBounds struct {
	Name     string
	ULX, ULY float64
	LRX, LRY float64
}

// Bounds returns the corners of a width*height raster georeferenced by gt,
// in gt's coordinate system.
func Bounds(name string, gt GeoTransform, width, height int) TileBounds {
	b := TileBounds{Name: name}
	b.ULX, b.ULY = gt.Apply(0, 0)
	b.LRX, b.LRY = gt.Apply(float64(width), float64(height))
	return b
}

// Geographic reprojects bounds expressed in the wkt coordinate system to
// longitude/latitude on the WGS84 datum (EPSG:4326), whatever the datum of the
// source. Sources on another datum get WGS84 corners, not corners in their own
// geographic system, so that indexes of different sources are comparable.
func Geographic(wkt string, bounds []TileBounds) ([]TileBounds, error) {
	if len(bounds) == 0 {
		return nil, nil
	}
	src, err := godal.NewSpatialRefFromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("parse projection: %w", err)
	}
	defer src.Close()
	dst, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return nil, fmt.Errorf("epsg:4326: %w", err)
	}
	defer dst.Close()
	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		return nil, fmt.Errorf("new transform: %w", err)
	}
	defer trn.Close()

	n := len(bounds)
	xs := make([]float64, 2*n)
	ys := make([]float64, 2*n)
	zs := make([]float64, 2*n)
	ok := make([]bool, 2*n)
	for i, b := range bounds {
		xs[2*i], ys[2*i] = b.ULX, b.ULY
		xs[2*i+1], ys[2*i+1] = b.LRX, b.LRY
	}
	if err := trn.TransformEx(xs, ys, zs, ok); err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	ret := make([]TileBounds, n)
	for i, b := range bounds {
		if !ok[2*i] || !ok[2*i+1] {
			return nil, fmt.Errorf("cannot transform corners of %s", b.Name)
		}
		ret[i] = TileBounds{
			Name: b.Name,
			ULX:  xs[2*i],
			ULY:  ys[2*i],
			LRX:  xs[2*i+1],
			LRY:  ys[2*i+1],
		}
	}
	return ret, nil
}

// WriteBoundsIndex writes one "name: ulx uly lrx lry" line per tile to path,
// sorted by tile name.
func WriteBoundsIndex(path string, bounds []TileBounds) error {
	sorted := append([]TileBounds(nil), bounds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	tmp := tempSibling(path)
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "Tile Filename: Bounds (ulx uly lrx lry)")
	for _, b := range sorted {
		fmt.Fprintf(w, "%s: %.9f %.9f %.9f %.9f\n", b.Name, b.ULX, b.ULY, b.LRX, b.LRY)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", path, err)
	}
	return commit(tmp, path)
}
