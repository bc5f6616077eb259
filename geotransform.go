package geotiler

import "math"

// GeoTransform holds the six affine coefficients mapping pixel/line coordinates
// to georeferenced coordinates, in GDAL order:
//
//	Xgeo = gt[0] + col*gt[1] + row*gt[2]
//	Ygeo = gt[3] + col*gt[4] + row*gt[5]
//
// gt[5] is negative for north-up images.
type GeoTransform [6]float64

// Apply returns the georeferenced coordinates of the pixel corner (col,row).
func (gt GeoTransform) Apply(col, row float64) (float64, float64) {
	return gt[0] + col*gt[1] + row*gt[2],
		gt[3] + col*gt[4] + row*gt[5]
}

// Shift returns the geotransform of a sub-raster whose upper left pixel is
// (col,row) in gt's pixel frame. Pixel size and rotation terms are kept.
func (gt GeoTransform) Shift(col, row int) GeoTransform {
	ret := gt
	ret[0], ret[3] = gt.Apply(float64(col), float64(row))
	return ret
}

// PixelSize returns the pixel width and the absolute pixel height.
func (gt GeoTransform) PixelSize() (float64, float64) {
	return gt[1], math.Abs(gt[5])
}
