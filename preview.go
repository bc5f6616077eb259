package geotiler

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"github.com/disintegration/imaging"
)

// PreviewBands are the 1-based source bands mapped to red, green and blue.
// The sensor stores blue, green, red, nir in that order.
var PreviewBands = [3]int{3, 2, 1}

// DefaultContrast is the contrast factor applied to previews by the command
// line tools.
const DefaultContrast = 2.0

// RenderPreview writes an 8-bit RGB PNG rendering of the raster at tilePath to
// outPath. Each channel is normalized by its own maximum, so brightness is not
// comparable across tiles. contrast is a linear stretch factor around
// mid-gray: 1 leaves the image unchanged, 0 renders flat gray.
func RenderPreview(tilePath, outPath string, contrast float64) error {
	if contrast < 0 || math.IsNaN(contrast) {
		return ErrInvalidOption{"contrast factor must be >=0"}
	}
	r, err := OpenRaster(tilePath)
	if err != nil {
		return err
	}
	defer r.Close()
	w, h, nb := r.Size()
	if nb < len(PreviewBands) {
		return fmt.Errorf("%s has %d bands, need at least %d", tilePath, nb, len(PreviewBands))
	}
	channels, err := r.ReadWindow(Window{Width: w, Height: h}, PreviewBands[:]...)
	if err != nil {
		return err
	}
	img := composeRGB(channels, w, h)
	if contrast != 1 {
		img = adjustContrast(img, contrast)
	}
	return writePNG(outPath, img)
}

// composeRGB stacks 3 channels into an opaque image, each one scaled so that
// its maximum maps to 255.
func composeRGB(channels [][]float64, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	for c, ch := range channels {
		scale := 0.0
		if m := maxValue([][]float64{ch}); m > 0 {
			scale = 255 / m
		}
		for i, v := range ch {
			img.Pix[i*4+c] = clampUint8(v * scale)
		}
	}
	return img
}

// contrastLUT maps each 8-bit level v to 127.5+(v-127.5)*factor, clamped.
func contrastLUT(factor float64) [256]uint8 {
	var lut [256]uint8
	for i := range lut {
		lut[i] = clampUint8(math.Round(127.5 + (float64(i)-127.5)*factor))
	}
	return lut
}

func adjustContrast(img image.Image, factor float64) *image.NRGBA {
	lut := contrastLUT(factor)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}

// clampUint8 truncates v to [0,255]. NaN maps to 0.
func clampUint8(v float64) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

func writePNG(path string, img image.Image) error {
	tmp := tempSibling(path)
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", path, err)
	}
	return commit(tmp, path)
}
