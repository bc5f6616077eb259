package geotiler

import (
	"fmt"
	"path/filepath"
)

// PruneOptions configure Prune.
type PruneOptions struct {
	// TileDir holds the tile rasters, PreviewDir their previews. PreviewDir
	// is optional.
	TileDir    string
	PreviewDir string
	// LabelDir holds one label file per annotated tile, with the basename of
	// the tile.
	LabelDir string
	// LabelExt defaults to .txt.
	LabelExt string
	// DryRun reports what would be removed without removing anything.
	DryRun bool
	Log    *RunLog
}

// Prune removes the tiles, and their previews, that have no label file. It
// returns one outcome per file examined: Success for removed files, Skipped
// for kept ones.
func Prune(opts PruneOptions) ([]Outcome, error) {
	labelExt := opts.LabelExt
	if labelExt == "" {
		labelExt = ".txt"
	}
	labelNames, err := listFiles(opts.LabelDir, labelExt)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", opts.LabelDir, err)
	}
	labelled := make(map[string]bool, len(labelNames))
	for _, n := range labelNames {
		labelled[baseName(n)] = true
	}

	var outcomes []Outcome
	prune := func(dir string, exts ...string) error {
		names, err := listFiles(dir, exts...)
		if err != nil {
			return fmt.Errorf("list %s: %w", dir, err)
		}
		for _, n := range names {
			path := filepath.Join(dir, n)
			o := pruneFile(path, labelled[baseName(n)], opts.DryRun)
			opts.Log.Record(o)
			outcomes = append(outcomes, o)
		}
		return nil
	}
	if err := prune(opts.TileDir, ".tif", ".tiff"); err != nil {
		return outcomes, err
	}
	if opts.PreviewDir != "" && isDir(opts.PreviewDir) {
		if err := prune(opts.PreviewDir, ".png"); err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

func pruneFile(path string, keep, dryRun bool) Outcome {
	if keep {
		return Skipped(KindPrune, path, ReasonKept)
	}
	if !dryRun {
		if err := removeIfExists(path); err != nil {
			return Failed(KindPrune, path, err)
		}
	}
	return Success(KindPrune, path, path)
}

// PruneSummary counts removed and kept files, mentioning dry runs.
func PruneSummary(outcomes []Outcome, dryRun bool) string {
	s := Summarize(outcomes, 0)
	verb := "removed"
	if dryRun {
		verb = "would remove"
	}
	return fmt.Sprintf("%s %d files, kept %d, %d failures", verb, s.Success, s.Skipped, s.Failed)
}
