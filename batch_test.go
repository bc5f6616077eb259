package geotiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScene creates a 1664x1664 4-band raster whose 416 tiles are bright,
// except for those in empty, which are all zero.
func writeScene(t *testing.T, path string, empty map[[2]int]bool) {
	t.Helper()
	writeRaster(t, path, 1664, 1664, 4, godal.Byte, func(b, x, y int) float64 {
		if empty[[2]int{x / 416, y / 416}] {
			return 0
		}
		return float64(150 + b*20)
	})
}

var sceneEmptyTiles = map[[2]int]bool{{0, 0}: true, {3, 0}: true, {1, 2}: true}

func TestBatchScenario(t *testing.T) {
	for _, previews := range []bool{false, true} {
		dir := t.TempDir()
		src := filepath.Join(dir, "scene.tif")
		writeScene(t, src, sceneEmptyTiles)
		ext, err := NewExtractor(TileSize(416), Threshold(100))
		require.NoError(t, err)

		var mu sync.Mutex
		maxDone := int64(0)
		progress := &Progress{OnAdvance: func(done, _ int64) {
			mu.Lock()
			if done > maxDone {
				maxDone = done
			}
			mu.Unlock()
		}}
		rl, err := OpenRunLog(filepath.Join(dir, "process_log.txt"), Header("test"))
		require.NoError(t, err)
		b := Batch{
			Source:      src,
			TileDir:     filepath.Join(dir, "out", "tiles"),
			PreviewDir:  filepath.Join(dir, "out", "previews"),
			Extractor:   ext,
			Previews:    previews,
			Contrast:    DefaultContrast,
			Workers:     4,
			BoundsIndex: true,
			Log:         rl,
			Progress:    progress,
		}
		rep, err := b.Run(context.Background())
		require.NoError(t, err)
		require.NoError(t, rl.Close())

		s := Summarize(rep.Tiles, 0)
		assert.Equal(t, 16, s.Total)
		assert.Equal(t, 13, s.Success)
		assert.Equal(t, 3, s.Skipped)
		assert.Equal(t, 0, s.Failed)
		for _, o := range rep.Tiles {
			if o.Status == StatusSkipped {
				assert.Equal(t, ReasonEmpty, o.Reason)
			}
		}
		tiles := listDir(t, b.TileDir)
		assert.Len(t, tiles, 13)
		assert.NotContains(t, tiles, "scene_0_0.tif")
		assert.NotContains(t, tiles, "scene_3_0.tif")
		assert.NotContains(t, tiles, "scene_1_2.tif")
		assert.Contains(t, tiles, "scene_3_3.tif")

		expected := int64(16)
		if previews {
			expected = 29
			assert.Len(t, rep.Previews, 13)
			pngs := listDir(t, b.PreviewDir)
			assert.Len(t, pngs, 13)
			assert.Contains(t, pngs, "scene_2_1.png")
			img, err := imaging.Open(filepath.Join(b.PreviewDir, "scene_2_1.png"))
			require.NoError(t, err)
			assert.Equal(t, 416, img.Bounds().Dx())
		} else {
			assert.Empty(t, rep.Previews)
			assert.NoDirExists(t, b.PreviewDir)
		}
		assert.Equal(t, expected, progress.Done())
		assert.Equal(t, expected, progress.Total())
		assert.Equal(t, expected, maxDone)

		assert.Len(t, rep.Bounds, 13)
		idx, err := os.ReadFile(filepath.Join(dir, "out", "scene.txt"))
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(idx)), "\n")
		assert.Len(t, lines, 14)
		assert.True(t, strings.HasPrefix(lines[1], "scene_0_1.tif: "))

		logged, err := os.ReadFile(filepath.Join(dir, "process_log.txt"))
		require.NoError(t, err)
		assert.Equal(t, 3, strings.Count(string(logged), "skipped tile"))
	}
}

func TestBatchUnreadableSource(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	_, err := Batch{
		Source:  filepath.Join(dir, "nope.tif"),
		TileDir: out,
	}.Run(context.Background())
	var oe *OpenError
	require.True(t, errors.As(err, &oe))
	assert.NoDirExists(t, out)

	notraster := filepath.Join(dir, "garbage.tif")
	require.NoError(t, os.WriteFile(notraster, []byte("not a tiff"), 0o644))
	_, err = Batch{Source: notraster, TileDir: out}.Run(context.Background())
	assert.True(t, errors.As(err, &oe))
	assert.NoDirExists(t, out)
}

func TestBatchCanceled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scene.tif")
	writeRaster(t, src, 64, 64, 3, godal.Byte, constant(200))
	ext, _ := NewExtractor(TileSize(16))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := Batch{
		Source:    src,
		TileDir:   filepath.Join(dir, "tiles"),
		Extractor: ext,
	}.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	assert.Empty(t, rep.Tiles)
}

func TestBatchUnitFailures(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pan.tif")
	// two bands only: every tile is produced, no preview can be rendered
	writeRaster(t, src, 32, 32, 2, godal.Byte, constant(200))
	tileDir := filepath.Join(dir, "tiles")
	// a directory in the way of the first tile makes its final rename fail
	require.NoError(t, mkdir(filepath.Join(tileDir, "pan_0_0.tif", "x")))
	ext, err := NewExtractor(TileSize(16))
	require.NoError(t, err)

	rl, err := OpenRunLog(filepath.Join(dir, "process_log.txt"), "")
	require.NoError(t, err)
	progress := &Progress{}
	rep, err := Batch{
		Source:     src,
		TileDir:    tileDir,
		PreviewDir: filepath.Join(dir, "previews"),
		Extractor:  ext,
		Contrast:   DefaultContrast,
		Previews:   true,
		Workers:    2,
		Log:        rl,
		Progress:   progress,
	}.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, rl.Close())

	tiles := Summarize(rep.Tiles, 0)
	assert.Equal(t, 4, tiles.Total)
	assert.Equal(t, 3, tiles.Success)
	assert.Equal(t, 1, tiles.Failed)
	assert.Contains(t, Failures(rep.Tiles)[0].Unit, "[0,0]")

	previews := Summarize(rep.Previews, 0)
	assert.Equal(t, 3, previews.Total)
	assert.Equal(t, 3, previews.Failed)
	assert.Empty(t, listDir(t, filepath.Join(dir, "previews")))
	assert.Equal(t, 7, rep.Summary.Total)
	assert.Equal(t, 4, rep.Summary.Failed)

	assert.Equal(t, int64(7), progress.Total())
	assert.Equal(t, progress.Total(), progress.Done())

	logged, err := os.ReadFile(filepath.Join(dir, "process_log.txt"))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(logged), "failed preview"))
	assert.Equal(t, 1, strings.Count(string(logged), "failed tile"))
}

func TestBatchZeroContrast(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scene.tif")
	writeRaster(t, src, 16, 16, 4, godal.Byte, func(b, x, y int) float64 { return float64(100 + 10*x + b) })
	ext, _ := NewExtractor(TileSize(16))
	b := Batch{
		Source:     src,
		TileDir:    filepath.Join(dir, "tiles"),
		PreviewDir: filepath.Join(dir, "previews"),
		Extractor:  ext,
		Previews:   true,
	}
	rep, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Previews, 1)
	require.Equal(t, StatusSuccess, rep.Previews[0].Status, rep.Previews[0].Reason)

	img, err := imaging.Open(filepath.Join(b.PreviewDir, "scene_0_0.png"))
	require.NoError(t, err)
	for _, p := range [][2]int{{0, 0}, {7, 3}, {15, 15}} {
		r, g, bl, _ := img.At(p[0], p[1]).RGBA()
		assert.Equal(t, []uint32{128 * 0x101, 128 * 0x101, 128 * 0x101}, []uint32{r, g, bl}, p)
	}

	b.Contrast = -1
	_, err = b.Run(context.Background())
	assert.ErrorAs(t, err, &ErrInvalidOption{})
}
