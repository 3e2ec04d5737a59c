// Package byterange parses single-range HTTP Range headers and trims file
// handles down to the requested slice.
package byterange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnsupportedUnit = errors.New("range: unsupported unit")
	ErrMalformed       = errors.New("range: malformed")
	ErrUnsatisfiable   = errors.New("range: not satisfiable")
)

// InvalidRangeError reports a range whose start lies after its end.
type InvalidRangeError struct {
	Start, End uint64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("range: start %d after end %d", e.Start, e.End)
}

// Range is an inclusive byte interval with Start <= End < file size.
type Range struct {
	Start, End uint64
}

// Len returns the number of bytes covered.
func (r Range) Len() uint64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header value for a file of size.
func (r Range) ContentRange(size uint64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// Parse validates header ("bytes=<start>-<end>", either bound optional)
// against a file of size bytes. An end past EOF is clamped, not rejected.
// Suffix ranges are not special: "bytes=-N" means 0 through N.
func Parse(header string, size uint64) (Range, error) {
	const prefix = "bytes="
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, prefix) {
		return Range{}, ErrUnsupportedUnit
	}
	set := strings.TrimPrefix(header, prefix)
	if strings.Contains(set, ",") {
		return Range{}, fmt.Errorf("%w: multiple ranges", ErrMalformed)
	}
	parts := strings.Split(set, "-")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformed, set)
	}

	start, err := parseBound(parts[0], 0)
	if err != nil {
		return Range{}, err
	}
	var last uint64
	if size > 0 {
		last = size - 1
	}
	end, err := parseBound(parts[1], last)
	if err != nil {
		return Range{}, err
	}

	// An omitted end never makes the range invalid, so "bytes=<size>-" is
	// reported as unsatisfiable rather than inverted.
	if strings.TrimSpace(parts[1]) != "" && start > end {
		return Range{}, &InvalidRangeError{Start: start, End: end}
	}
	if start >= size {
		return Range{}, fmt.Errorf("%w: start %d, size %d", ErrUnsatisfiable, start, size)
	}
	if end > last {
		end = last
	}
	return Range{Start: start, End: end}, nil
}

func parseBound(s string, def uint64) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad position %q", ErrMalformed, s)
	}
	return n, nil
}
