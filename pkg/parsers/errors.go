package parsers

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRoot marks input whose top-level structure is not the
	// expected grammar at all, as opposed to a file with zero records.
	ErrMalformedRoot = errors.New("malformed root structure")
	// ErrUnsupportedType is returned by For for types outside the closed set.
	ErrUnsupportedType = errors.New("unsupported scan type")
	// ErrEmptyRecord marks a record that decodes but carries none of the
	// identifying fields, such as a bare null or {}.
	ErrEmptyRecord = errors.New("record has no identifying fields")
)

// ParseError reports a file that could not be opened or decoded.
type ParseError struct {
	Path string
	Type ScanType
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s file %s: %v", e.Type, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PartialRecordWarning describes one record that was skipped while its
// siblings were kept.
type PartialRecordWarning struct {
	Path string
	Line int
	Err  error
}

func (w PartialRecordWarning) Error() string {
	return fmt.Sprintf("%s:%d: skipped record: %v", w.Path, w.Line, w.Err)
}

func (w PartialRecordWarning) Unwrap() error { return w.Err }
