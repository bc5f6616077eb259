package geotiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// A Batch tiles one source raster and optionally renders a preview of every
// produced tile.
//
// Tiles are extracted on a pool of Workers CPU workers, each task opening its
// own handle on the source. Previews are rendered once all tiles are done, on a
// separate pool of PreviewWorkers I/O workers, for the produced tiles only.
type Batch struct {
	Source     string
	TileDir    string
	PreviewDir string
	// Extractor defaults to NewExtractor() when zero.
	Extractor Extractor
	// Contrast factor of the previews, see RenderPreview. 0 renders flat
	// gray; callers usually want DefaultContrast.
	Contrast float64
	Previews bool
	// Workers defaults to the number of CPUs. PreviewWorkers defaults to
	// Workers.
	Workers        int
	PreviewWorkers int
	// BoundsIndex writes <base>.txt next to TileDir, listing the corners of
	// every produced tile.
	BoundsIndex bool
	Log         *RunLog
	Progress    *Progress
}

type BatchReport struct {
	Tiles    []Outcome
	Previews []Outcome
	// Bounds of the produced tiles, in lon/lat when the source projection
	// could be transformed, in source coordinates otherwise.
	Bounds  []TileBounds
	Summary Summary
}

type tileResult struct {
	win     Window
	outcome Outcome
}

// Run executes the batch. Per tile and per preview failures are recorded in
// the report. The returned error is non nil when the source cannot be opened,
// when the output directories cannot be created, or when ctx was canceled, in
// which case the report covers the units that completed.
func (b Batch) Run(ctx context.Context) (*BatchReport, error) {
	ext := b.Extractor
	if ext.tileSize == 0 {
		ext, _ = NewExtractor()
	}
	contrast := b.Contrast
	if b.Previews && (!(contrast >= 0) || b.PreviewDir == "") {
		return nil, ErrInvalidOption{"previews require an output directory and a contrast factor >=0"}
	}
	start := time.Now()
	lg := Logger(ctx).With(zap.String("source", b.Source))

	src, err := OpenRaster(b.Source)
	if err != nil {
		return nil, err
	}
	width, height, _ := src.Size()
	gt, gterr := src.GeoTransform()
	wkt := src.Projection()
	src.Close()
	if gterr != nil {
		return nil, &OpenError{Path: b.Source, Err: gterr}
	}
	windows, err := ext.Windows(width, height)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(b.TileDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", b.TileDir, err)
	}
	if b.Previews {
		if err := os.MkdirAll(b.PreviewDir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", b.PreviewDir, err)
		}
	}

	candidates := len(windows)
	if b.Previews {
		b.Progress.AddTotal(2 * candidates)
	} else {
		b.Progress.AddTotal(candidates)
	}
	lg.Info("extracting tiles", zap.Int("width", width), zap.Int("height", height),
		zap.Int("tilesize", ext.TileSize()), zap.Int("candidates", candidates))

	var (
		mu    sync.Mutex
		tiles []tileResult
	)
	cpu := newCPUPool(b.Workers)
	for _, win := range windows {
		win := win
		if !submit(ctx, cpu, func() {
			o := ext.ExtractTile(b.Source, win, b.TileDir)
			b.Log.Record(o)
			if o.Status == StatusFailed {
				lg.Warn("tile failed", zap.String("tile", o.Unit), zap.Error(o.Err))
			}
			mu.Lock()
			tiles = append(tiles, tileResult{win: win, outcome: o})
			mu.Unlock()
			b.Progress.Advance()
		}) {
			break
		}
	}
	cpu.Wait()

	sort.Slice(tiles, func(i, j int) bool {
		wi, wj := tiles[i].win, tiles[j].win
		if wi.Row != wj.Row {
			return wi.Row < wj.Row
		}
		return wi.Col < wj.Col
	})
	rep := &BatchReport{}
	var produced []tileResult
	for _, t := range tiles {
		rep.Tiles = append(rep.Tiles, t.outcome)
		if t.outcome.Status == StatusSuccess {
			produced = append(produced, t)
		}
	}
	if b.Previews {
		b.Progress.AddTotal(len(produced) - candidates)
	}

	if b.Previews && ctx.Err() == nil {
		paths := make([]string, len(produced))
		for i, t := range produced {
			paths[i] = t.outcome.Path
		}
		sort.Strings(paths)
		workers := b.PreviewWorkers
		if workers <= 0 {
			workers = b.Workers
		}
		ioPool := newIOPool(workers)
		for _, p := range paths {
			p := p
			dst := filepath.Join(b.PreviewDir, baseName(p)+".png")
			if !submit(ctx, ioPool, func() {
				o := renderOutcome(p, dst, contrast)
				b.Log.Record(o)
				if o.Status == StatusFailed {
					lg.Warn("preview failed", zap.String("tile", p), zap.Error(o.Err))
				}
				mu.Lock()
				rep.Previews = append(rep.Previews, o)
				mu.Unlock()
				b.Progress.Advance()
			}) {
				break
			}
		}
		ioPool.Wait()
	}

	if len(produced) > 0 {
		rep.Bounds = b.tileBounds(ctx, ext, gt, wkt, produced)
	}
	if b.BoundsIndex && len(rep.Bounds) > 0 {
		idx := filepath.Join(filepath.Dir(filepath.Clean(b.TileDir)), baseName(b.Source)+".txt")
		if err := WriteBoundsIndex(idx, rep.Bounds); err != nil {
			lg.Warn("bounds index", zap.Error(err))
		}
	}

	all := append(append([]Outcome{}, rep.Tiles...), rep.Previews...)
	rep.Summary = Summarize(all, time.Since(start))
	lg.Info("batch done", zap.Stringer("summary", rep.Summary))
	return rep, ctx.Err()
}

func (b Batch) tileBounds(ctx context.Context, ext Extractor, gt GeoTransform, wkt string, produced []tileResult) []TileBounds {
	bounds := make([]TileBounds, len(produced))
	for i, t := range produced {
		bounds[i] = Bounds(ext.TileName(b.Source, t.win), gt.Shift(t.win.X, t.win.Y), t.win.Width, t.win.Height)
	}
	if wkt == "" {
		return bounds
	}
	geo, err := Geographic(wkt, bounds)
	if err != nil {
		Logger(ctx).Warn("cannot compute geographic bounds, using source coordinates",
			zap.String("source", b.Source), zap.Error(err))
		return bounds
	}
	return geo
}
