package geotiler

import (
	"fmt"
	"os"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
)

type strileTags struct {
	StripOffsets    []uint64 `tiff:"field,tag=273"`
	StripByteCounts []uint64 `tiff:"field,tag=279"`
	TileOffsets     []uint64 `tiff:"field,tag=324"`
	TileByteCounts  []uint64 `tiff:"field,tag=325"`
}

// ProbeTIFF checks that the (Big)TIFF file at path is structurally complete:
// its directories parse and every strip or tile lies within the file. A
// raster cut short by an interrupted writer fails the probe.
func ProbeTIFF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	size := uint64(st.Size())
	tif, err := tiff.Parse(f, nil, nil)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	ifds := tif.IFDs()
	if len(ifds) == 0 {
		return fmt.Errorf("%s has no image directory", path)
	}
	for i, ifd := range ifds {
		tags := strileTags{}
		if err := tiff.UnmarshalIFD(ifd, &tags); err != nil {
			return fmt.Errorf("ifd %d of %s: %w", i, path, err)
		}
		offsets, counts := tags.TileOffsets, tags.TileByteCounts
		if len(offsets) == 0 {
			offsets, counts = tags.StripOffsets, tags.StripByteCounts
		}
		if len(offsets) == 0 || len(offsets) != len(counts) {
			return fmt.Errorf("ifd %d of %s: %d offsets for %d byte counts", i, path, len(offsets), len(counts))
		}
		for s := range offsets {
			if counts[s] > 0 && offsets[s]+counts[s] > size {
				return fmt.Errorf("ifd %d of %s: block %d ends at %d, past end of file (%d)",
					i, path, s, offsets[s]+counts[s], size)
			}
		}
	}
	return nil
}
