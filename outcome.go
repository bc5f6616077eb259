package geotiler

import (
	"fmt"
	"io"
	"os"
	"time"
)

type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Kind names the class of work an Outcome belongs to.
type Kind string

const (
	KindTile     Kind = "tile"
	KindPreview  Kind = "preview"
	KindResample Kind = "resample"
	KindLabel    Kind = "label"
	KindPrune    Kind = "prune"
)

// Skip reasons.
const (
	ReasonEmpty  = "empty"
	ReasonExists = "exists"
	ReasonKept   = "labelled"
)

// An Outcome is the result of a single unit of work: one tile, one preview, or
// one file of a resampling run.
type Outcome struct {
	Kind   Kind
	Status Status
	// Unit identifies the input of the unit of work (source path, or source
	// path and tile position for tiles).
	Unit string
	// Path is the produced (or pruned) file, if any.
	Path   string
	Reason string
	Err    error
}

func Success(kind Kind, unit, path string) Outcome {
	return Outcome{Kind: kind, Status: StatusSuccess, Unit: unit, Path: path}
}

func Skipped(kind Kind, unit, reason string) Outcome {
	return Outcome{Kind: kind, Status: StatusSkipped, Unit: unit, Reason: reason}
}

func Failed(kind Kind, unit string, err error) Outcome {
	return Outcome{Kind: kind, Status: StatusFailed, Unit: unit, Reason: err.Error(), Err: err}
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusSuccess:
		return fmt.Sprintf("%s %s %s -> %s", o.Status, o.Kind, o.Unit, o.Path)
	default:
		return fmt.Sprintf("%s %s %s | %s", o.Status, o.Kind, o.Unit, o.Reason)
	}
}

// Summary aggregates a set of outcomes.
type Summary struct {
	Total, Success, Skipped, Failed int
	Elapsed                         time.Duration
}

func Summarize(outcomes []Outcome, elapsed time.Duration) Summary {
	s := Summary{Total: len(outcomes), Elapsed: elapsed}
	for _, o := range outcomes {
		switch o.Status {
		case StatusSuccess:
			s.Success++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// SuccessRate is the percentage of successful units among the units that were
// not skipped. It is 100 when every unit was skipped.
func (s Summary) SuccessRate() float64 {
	attempted := s.Success + s.Failed
	if attempted == 0 {
		return 100
	}
	return float64(s.Success) * 100 / float64(attempted)
}

func (s Summary) String() string {
	return fmt.Sprintf("total=%d success=%d skipped=%d failed=%d (%.2f%%) in %s",
		s.Total, s.Success, s.Skipped, s.Failed, s.SuccessRate(), formatElapsed(s.Elapsed))
}

func formatElapsed(d time.Duration) string {
	if d > time.Minute {
		return fmt.Sprintf("%.2fmin", d.Minutes())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// Failures returns the failed outcomes, in order.
func Failures(outcomes []Outcome) []Outcome {
	var ret []Outcome
	for _, o := range outcomes {
		if o.Status == StatusFailed {
			ret = append(ret, o)
		}
	}
	return ret
}

func writeSummaryTo(w io.Writer, title string, s Summary) error {
	_, err := fmt.Fprintf(w, "%s\n  total: %d\n  success: %d\n  skipped: %d\n  failed: %d\n  success rate: %.2f%%\n  elapsed: %s\n",
		title, s.Total, s.Success, s.Skipped, s.Failed, s.SuccessRate(), formatElapsed(s.Elapsed))
	return err
}

// WriteSummary writes a plain text summary to path.
func WriteSummary(path, title string, s Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeSummaryTo(f, title, s); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// WriteFailures writes one "unit<TAB>cause" line per failed outcome to path.
// Nothing is written when there are no failures.
func WriteFailures(path string, outcomes []Outcome) error {
	failed := Failures(outcomes)
	if len(failed) == 0 {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	for _, o := range failed {
		if _, err := fmt.Fprintf(f, "%s\t%s\n", o.Unit, o.Reason); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
