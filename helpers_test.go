package geotiler

import (
	"os"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	godal.RegisterAll()
	os.Exit(m.Run())
}

var testGeoTransform = GeoTransform{500000, 1, 0, 4000000, 0, -1}

// writeRaster creates a georeferenced w*h GTiff with nb bands of dtype, whose
// pixel values are given by fill (band is 0-based).
func writeRaster(t *testing.T, path string, w, h, nb int, dtype godal.DataType, fill func(band, x, y int) float64) {
	t.Helper()
	ds, err := godal.Create(godal.GTiff, path, nb, dtype, w, h)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64(testGeoTransform)))
	sr, err := godal.NewSpatialRefFromEPSG(32650)
	require.NoError(t, err)
	defer sr.Close()
	require.NoError(t, ds.SetSpatialRef(sr))
	buf := make([]float64, w*h)
	for b, band := range ds.Bands() {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				buf[y*w+x] = fill(b, x, y)
			}
		}
		require.NoError(t, band.Write(0, 0, buf, w, h))
	}
	require.NoError(t, ds.Close())
}

func constant(v float64) func(int, int, int) float64 {
	return func(int, int, int) float64 { return v }
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	names, err := listFiles(dir)
	require.NoError(t, err)
	return names
}

func mkdir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
