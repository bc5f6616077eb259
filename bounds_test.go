package geotiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounds(t *testing.T) {
	b := Bounds("a_1_2.tif", testGeoTransform.Shift(16, 32), 16, 16)
	assert.Equal(t, TileBounds{Name: "a_1_2.tif", ULX: 500016, ULY: 3999968, LRX: 500032, LRY: 3999952}, b)
}

func TestGeographic(t *testing.T) {
	sr, err := godal.NewSpatialRefFromEPSG(32650)
	require.NoError(t, err)
	defer sr.Close()
	wkt, err := sr.WKT()
	require.NoError(t, err)

	// 500000 is the central meridian of UTM zone 50, 117E
	geo, err := Geographic(wkt, []TileBounds{Bounds("t.tif", testGeoTransform, 416, 416)})
	require.NoError(t, err)
	require.Len(t, geo, 1)
	assert.InDelta(t, 117.0, geo[0].ULX, 1e-9)
	assert.InDelta(t, 36.14, geo[0].ULY, 0.05)
	assert.Greater(t, geo[0].LRX, geo[0].ULX)
	assert.Less(t, geo[0].LRY, geo[0].ULY)

	_, err = Geographic("not a projection", []TileBounds{{Name: "x"}})
	assert.Error(t, err)
}

func TestWriteBoundsIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.txt")
	require.NoError(t, WriteBoundsIndex(path, []TileBounds{
		{Name: "s_1_0.tif", ULX: 1, ULY: 2, LRX: 3, LRY: 4},
		{Name: "s_0_0.tif", ULX: 0.5, ULY: 2, LRX: 1, LRY: 4},
	}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Tile Filename: Bounds (ulx uly lrx lry)\n"+
		"s_0_0.tif: 0.500000000 2.000000000 1.000000000 4.000000000\n"+
		"s_1_0.tif: 1.000000000 2.000000000 3.000000000 4.000000000\n", string(b))
	assert.Equal(t, []string{"scene.txt"}, listDir(t, dir))

	assert.Error(t, WriteBoundsIndex(filepath.Join(dir, "missing", "scene.txt"), nil))
}
