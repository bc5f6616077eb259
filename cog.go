package geotiler

import (
	"fmt"
	"os"

	"github.com/airbusgeo/cogger"
	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
)

// rewriteCOG reorders the internally tiled geotiff at path into a cloud
// optimized layout, in place.
func rewriteCOG(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()
	tmp := tempSibling(path)
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := cogger.Rewrite(out, tiff.ReadAtReadSeeker(in)); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("cog rewrite %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return commit(tmp, path)
}
