// Package dberrors defines the tagged-sum error kinds surfaced by the
// storage core, per the error handling design in the specification.
package dberrors

import (
	"errors"
	"fmt"
)

// Kind tags the category of a storage-engine error.
type Kind int

const (
	// Ok is never attached to a returned error; it exists so Kind's
	// zero value has a name instead of reading as "unknown".
	Ok Kind = iota
	AlreadyExists
	NotFound
	OutOfSpace
	PageFull
	PinnedPageInUse
	IoError
	CorruptPage
	InvalidPageID
	Failed
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case AlreadyExists:
		return "already_exists"
	case NotFound:
		return "not_found"
	case OutOfSpace:
		return "out_of_space"
	case PageFull:
		return "page_full"
	case PinnedPageInUse:
		return "pinned_page_in_use"
	case IoError:
		return "io_error"
	case CorruptPage:
		return "corrupt_page"
	case InvalidPageID:
		return "invalid_page_id"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every core package.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "buffer.FetchPage"
	Subject string // the id/name involved, e.g. "table:orders"
	Err     error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Subject != "" {
		msg += fmt.Sprintf(" (%s)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for op/subject with the given kind and optional
// wrapped cause.
func New(kind Kind, op, subject string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: cause}
}

// Is reports whether err is a storage *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Failed for errors
// that did not originate in this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return Ok
	}
	return Failed
}
