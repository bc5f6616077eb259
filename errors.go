package geotiler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOption is returned by option constructors and run validation when a
// parameter is out of its accepted range.
type ErrInvalidOption struct {
	msg string
}

func (err ErrInvalidOption) Error() string {
	return err.msg
}

var (
	// ErrOutOfBounds is returned when a read window exceeds the raster extent
	// or references a band that does not exist.
	ErrOutOfBounds = errors.New("window out of bounds")
	// ErrNotFound is wrapped by OpenError when the path does not exist.
	ErrNotFound = errors.New("no such raster")
)

// OpenError reports a raster that could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// ResampleError reports a failure after the source was opened successfully.
type ResampleError struct {
	Path string
	Err  error
}

func (e *ResampleError) Error() string {
	return fmt.Sprintf("resample %s: %v", e.Path, e.Err)
}

func (e *ResampleError) Unwrap() error {
	return e.Err
}

// InvalidAlgorithmError is returned by ParseAlgorithm for unknown names.
type InvalidAlgorithmError struct {
	Name string
}

func (e *InvalidAlgorithmError) Error() string {
	names := make([]string, len(algorithms))
	for i, a := range algorithms {
		names[i] = string(a)
	}
	return fmt.Sprintf("invalid resampling algorithm %q, expecting one of %s",
		e.Name, strings.Join(names, ","))
}
