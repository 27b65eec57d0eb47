// Package flowerr defines the error taxonomy shared by the flow-routing
// packages: configuration errors detected before any processing, data errors
// found while processing, and cancellation requested by the caller.
package flowerr

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the coarse classification of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindData
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindData:
		return "data"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

var (
	// ErrConfig marks invalid parameters or mismatched inputs.
	ErrConfig = errors.New("invalid configuration")
	// ErrData marks input grids that cannot be processed.
	ErrData = errors.New("invalid data")
	// ErrCycle marks a flow-direction graph that is not acyclic.
	ErrCycle = errors.New("flow direction cycle")
	// ErrCanceled marks a run stopped on request.
	ErrCanceled = errors.New("canceled")
)

// Error is a classified failure. Row and Col locate the offending cell
// when one is known, otherwise they are -1.
type Error struct {
	Kind Kind
	Op   string
	Row  int
	Col  int
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op + ": "
	if e.Err != nil {
		msg += e.Err.Error()
	} else {
		msg += e.Kind.String()
	}
	if e.Row >= 0 && e.Col >= 0 {
		msg += fmt.Sprintf(" (row %d, col %d)", e.Row, e.Col)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match an *Error against the sentinel of its kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfig:
		return e.Kind == KindConfig
	case ErrData:
		return e.Kind == KindData
	case ErrCanceled:
		return e.Kind == KindCanceled
	}
	return false
}

// Config returns a configuration error for op.
func Config(op, format string, args ...any) error {
	return &Error{Kind: KindConfig, Op: op, Row: -1, Col: -1, Err: fmt.Errorf(format, args...)}
}

// Data returns a data error for op.
func Data(op, format string, args ...any) error {
	return &Error{Kind: KindData, Op: op, Row: -1, Col: -1, Err: fmt.Errorf(format, args...)}
}

// DataAt returns a data error located at a cell.
func DataAt(op string, row, col int, err error) error {
	return &Error{Kind: KindData, Op: op, Row: row, Col: col, Err: err}
}

// Canceled wraps a context error (or nil) as a cancellation outcome.
func Canceled(op string, cause error) error {
	if cause == nil {
		cause = ErrCanceled
	}
	return &Error{Kind: KindCanceled, Op: op, Row: -1, Col: -1, Err: cause}
}

// Classify maps any error onto a Kind using only errors.Is/As.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, ErrCycle) {
		return KindData
	}
	return KindUnknown
}

// IsCanceled reports whether err is a cancellation outcome rather than a failure.
func IsCanceled(err error) bool {
	return Classify(err) == KindCanceled
}
