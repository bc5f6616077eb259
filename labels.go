package geotiler

import (
	"context"
	"path/filepath"
)

// copyLabels mirrors every label file of srcDir into dstDir on p. Each copy
// reports its outcome through record.
func copyLabels(ctx context.Context, p unitPool, srcDir, dstDir string, names []string, record func(Outcome)) {
	for _, name := range names {
		src := filepath.Join(srcDir, name)
		dst := filepath.Join(dstDir, name)
		if !submit(ctx, p, func() { record(copyLabel(src, dst)) }) {
			return
		}
	}
}

func copyLabel(src, dst string) Outcome {
	if err := copyFile(src, dst); err != nil {
		return Failed(KindLabel, src, err)
	}
	return Success(KindLabel, src, dst)
}
