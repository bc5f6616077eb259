package geotiler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlgorithm(t *testing.T) {
	for _, name := range []string{"nearest", "bilinear", "cubic", "cubicspline", "lanczos",
		"average", "mode", "max", "min", "med", "q1", "q3"} {
		a, err := ParseAlgorithm(name)
		assert.NoError(t, err)
		assert.Equal(t, name, string(a))
	}
	_, err := ParseAlgorithm("bicubic")
	var iae *InvalidAlgorithmError
	require.ErrorAs(t, err, &iae)
	assert.Equal(t, "bicubic", iae.Name)
	assert.Contains(t, err.Error(), "average")
	_, err = ParseAlgorithm("Average")
	assert.Error(t, err)
}

func TestParseSwitches(t *testing.T) {
	sw, err := ParseSwitches(`-dstnodata 0 -wo "NUM_THREADS=2"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"-dstnodata", "0", "-wo", "NUM_THREADS=2"}, sw)
	sw, err = ParseSwitches("")
	assert.NoError(t, err)
	assert.Empty(t, sw)
	for _, bad := range []string{"-tr 1 1", "-r near", "-of PNG", `-wo "unterminated`} {
		_, err := ParseSwitches(bad)
		assert.ErrorAs(t, err, &ErrInvalidOption{}, bad)
	}
}

func TestResample(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.tif")
	writeRaster(t, src, 64, 48, 4, godal.UInt16, func(b, x, y int) float64 { return float64(x + y + b) })
	out := filepath.Join(dir, "out.tif")
	require.NoError(t, Resample(context.Background(), src, out, 2, Average))

	r, err := OpenRaster(out)
	require.NoError(t, err)
	defer r.Close()
	w, h, nb := r.Size()
	assert.Equal(t, []int{32, 24, 4}, []int{w, h, nb})
	gt, err := r.GeoTransform()
	require.NoError(t, err)
	xres, yres := gt.PixelSize()
	assert.InDelta(t, 2.0, xres, 1e-9)
	assert.InDelta(t, 2.0, yres, 1e-9)
	assert.InDelta(t, testGeoTransform[0], gt[0], 1e-6)
	assert.InDelta(t, testGeoTransform[3], gt[3], 1e-6)
	assert.Equal(t, godal.UInt16, r.DataType())
	assert.Equal(t, []string{"in.tif", "out.tif"}, listDir(t, dir))
}

func TestResampleErrors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	err := Resample(ctx, filepath.Join(dir, "none.tif"), filepath.Join(dir, "out.tif"), 2, Average)
	var oe *OpenError
	assert.ErrorAs(t, err, &oe)
	assert.True(t, errors.Is(err, ErrNotFound))

	src := filepath.Join(dir, "in.tif")
	writeRaster(t, src, 8, 8, 1, godal.Byte, constant(1))
	assert.ErrorAs(t, Resample(ctx, src, filepath.Join(dir, "o.tif"), 0, Average), &ErrInvalidOption{})
	var iae *InvalidAlgorithmError
	assert.ErrorAs(t, Resample(ctx, src, filepath.Join(dir, "o.tif"), 2, "bicubic"), &iae)

	err = Resample(ctx, src, filepath.Join(dir, "missing", "o.tif"), 2, Average)
	var re *ResampleError
	assert.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"in.tif"}, listDir(t, dir))
}

func TestResampleCOG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.tif")
	writeRaster(t, src, 512, 512, 3, godal.Byte, func(b, x, y int) float64 { return float64((x * y) % 256) })
	out := filepath.Join(dir, "out.tif")
	require.NoError(t, Resample(context.Background(), src, out, 2, Bilinear,
		AsCOG(), ResampleCreateOptions(CreateOptions{Compression: CompressDeflate, Tiled: true, BlockSize: 128})))
	assert.NoError(t, ProbeTIFF(out))
	r, err := OpenRaster(out)
	require.NoError(t, err)
	defer r.Close()
	w, h, _ := r.Size()
	assert.Equal(t, 256, w)
	assert.Equal(t, 256, h)
}

// writeDataset creates <root>/<split>/{images,labels} with n rasters and
// labels per split.
func writeDataset(t *testing.T, root string, splits []string, n int) {
	t.Helper()
	for _, split := range splits {
		imgs := filepath.Join(root, split, "images")
		lbls := filepath.Join(root, split, "labels")
		require.NoError(t, mkdir(imgs))
		require.NoError(t, mkdir(lbls))
		for i := 0; i < n; i++ {
			name := split + "_" + string(rune('a'+i))
			writeRaster(t, filepath.Join(imgs, name+".tif"), 40, 40, 4, godal.Byte, constant(float64(10*i)))
			require.NoError(t, os.WriteFile(filepath.Join(lbls, name+".txt"),
				[]byte("0 0.5 0.5 0.25 0.25\n1 0.1 0.2 0.05 0.05\n"), 0o644))
		}
	}
}

func TestPipeline(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "dataset")
	out := filepath.Join(dir, "dataset_2m")
	writeDataset(t, in, []string{"train", "val"}, 3)

	progress := &Progress{}
	pl := Pipeline{
		InputRoot:  in,
		OutputRoot: out,
		Scale:      2,
		Algorithm:  "average",
		Workers:    2,
		Resume:     true,
		Progress:   progress,
	}
	rep, err := pl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, Summarize(rep.Images, 0).Success)
	assert.Equal(t, 6, Summarize(rep.Labels, 0).Success)
	assert.Equal(t, 12, rep.Summary.Total)
	assert.Equal(t, int64(12), progress.Done())
	assert.Equal(t, int64(12), progress.Total())
	assert.NoDirExists(t, filepath.Join(out, "test"))

	for _, split := range []string{"train", "val"} {
		assert.Equal(t, listDir(t, filepath.Join(in, split, "images")), listDir(t, filepath.Join(out, split, "images")))
		for _, name := range listDir(t, filepath.Join(in, split, "labels")) {
			want, err := os.ReadFile(filepath.Join(in, split, "labels", name))
			require.NoError(t, err)
			got, err := os.ReadFile(filepath.Join(out, split, "labels", name))
			require.NoError(t, err)
			assert.True(t, bytes.Equal(want, got), name)
		}
	}
	r, err := OpenRaster(filepath.Join(out, "val", "images", "val_b.tif"))
	require.NoError(t, err)
	gt, _ := r.GeoTransform()
	w, h, _ := r.Size()
	r.Close()
	xres, yres := gt.PixelSize()
	assert.InDelta(t, 2.0, xres, 1e-9)
	assert.InDelta(t, 2.0, yres, 1e-9)
	assert.Equal(t, 20, w)
	assert.Equal(t, 20, h)

	// second run does nothing but copying labels
	before, err := os.Stat(filepath.Join(out, "train", "images", "train_a.tif"))
	require.NoError(t, err)
	rep, err = pl.Run(context.Background())
	require.NoError(t, err)
	images := Summarize(rep.Images, 0)
	assert.Equal(t, 6, images.Skipped)
	assert.Equal(t, 0, images.Success)
	for _, o := range rep.Images {
		assert.Equal(t, ReasonExists, o.Reason)
	}
	after, err := os.Stat(filepath.Join(out, "train", "images", "train_a.tif"))
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestPipelineInvalidAlgorithm(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "dataset")
	writeDataset(t, in, []string{"train"}, 1)
	out := filepath.Join(dir, "out")
	_, err := Pipeline{InputRoot: in, OutputRoot: out, Scale: 2, Algorithm: "bicubic"}.Run(context.Background())
	var iae *InvalidAlgorithmError
	assert.ErrorAs(t, err, &iae)
	assert.NoDirExists(t, out)

	_, err = Pipeline{InputRoot: in, OutputRoot: out, Scale: -2}.Run(context.Background())
	assert.ErrorAs(t, err, &ErrInvalidOption{})
	_, err = Pipeline{InputRoot: in, OutputRoot: out, Scale: 2, Switches: "-tr 3 3"}.Run(context.Background())
	assert.ErrorAs(t, err, &ErrInvalidOption{})
	assert.NoDirExists(t, out)
}

func TestPipelineFailuresAndVerify(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "dataset")
	out := filepath.Join(dir, "out")
	writeDataset(t, in, []string{"train"}, 2)
	require.NoError(t, os.WriteFile(filepath.Join(in, "train", "images", "broken.tif"), []byte("garbage"), 0o644))

	rl, err := OpenRunLog(filepath.Join(out, "process_log.txt"), "")
	require.NoError(t, err)
	defer rl.Close()
	pl := Pipeline{InputRoot: in, OutputRoot: out, Scale: 2, Resume: true, VerifyExisting: true, Log: rl}
	rep, err := pl.Run(context.Background())
	require.NoError(t, err)
	images := Summarize(rep.Images, 0)
	assert.Equal(t, 2, images.Success)
	assert.Equal(t, 1, images.Failed)
	failed := Failures(rep.Images)
	require.Len(t, failed, 1)
	var oe *OpenError
	assert.ErrorAs(t, failed[0].Err, &oe)

	// truncate an output as an interrupted writer would have
	victim := filepath.Join(out, "train", "images", "train_b.tif")
	require.NoError(t, os.Truncate(victim, 64))
	require.Error(t, ProbeTIFF(victim))

	rep, err = pl.Run(context.Background())
	require.NoError(t, err)
	images = Summarize(rep.Images, 0)
	assert.Equal(t, 1, images.Success)
	assert.Equal(t, 1, images.Skipped)
	assert.NoError(t, ProbeTIFF(victim))
}
