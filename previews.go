package geotiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// A Report holds the outcomes of a run, in no particular order, and their
// summary.
type Report struct {
	Outcomes []Outcome
	Summary  Summary
}

// PreviewFolder renders a PNG preview of every raster of InputDir into
// OutputDir. It is the standalone counterpart of the preview stage of Batch.
type PreviewFolder struct {
	InputDir  string
	OutputDir string
	// Contrast factor passed to RenderPreview. 0 renders flat gray.
	Contrast float64
	Workers  int
	// Resume skips rasters whose preview already exists.
	Resume bool
	// RasterExts defaults to .tif and .tiff.
	RasterExts []string
	Log        *RunLog
	Progress   *Progress
}

// Run renders the previews, then writes summary.txt and, if anything failed,
// failed_files.txt to OutputDir. Per file failures are reported in the
// returned Report, not as an error.
func (pf PreviewFolder) Run(ctx context.Context) (*Report, error) {
	contrast := pf.Contrast
	if !(contrast >= 0) {
		return nil, ErrInvalidOption{"contrast factor must be >=0"}
	}
	exts := pf.RasterExts
	if len(exts) == 0 {
		exts = []string{".tif", ".tiff"}
	}
	names, err := listFiles(pf.InputDir, exts...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", pf.InputDir, err)
	}
	if err := os.MkdirAll(pf.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", pf.OutputDir, err)
	}
	start := time.Now()
	pf.Progress.AddTotal(len(names))
	Logger(ctx).Info("rendering previews", zap.String("input", pf.InputDir), zap.Int("files", len(names)))

	var (
		mu       sync.Mutex
		outcomes []Outcome
	)
	record := func(o Outcome) {
		pf.Log.Record(o)
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
		pf.Progress.Advance()
	}
	p := newIOPool(pf.Workers)
	for _, name := range names {
		src := filepath.Join(pf.InputDir, name)
		dst := filepath.Join(pf.OutputDir, baseName(name)+".png")
		if pf.Resume && exists(dst) {
			record(Skipped(KindPreview, src, ReasonExists))
			continue
		}
		if !submit(ctx, p, func() { record(renderOutcome(src, dst, contrast)) }) {
			break
		}
	}
	p.Wait()

	rep := &Report{Outcomes: outcomes, Summary: Summarize(outcomes, time.Since(start))}
	if err := WriteSummary(filepath.Join(pf.OutputDir, "summary.txt"), "Preview conversion summary", rep.Summary); err != nil {
		return rep, err
	}
	if err := WriteFailures(filepath.Join(pf.OutputDir, "failed_files.txt"), outcomes); err != nil {
		return rep, err
	}
	return rep, ctx.Err()
}

func renderOutcome(src, dst string, contrast float64) Outcome {
	if err := RenderPreview(src, dst, contrast); err != nil {
		return Failed(KindPreview, src, err)
	}
	return Success(KindPreview, src, dst)
}
