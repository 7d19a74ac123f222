// Package pcaperr holds the error types returned by pcapkit.
// Every error carries the file, interface or native diagnostic it refers to,
// so callers can act on it without re-deriving context.
package pcaperr

import (
	"errors"
	"fmt"
)

// ValidationError reports bad construction arguments. It is returned before
// any resource has been touched.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// IOError reports a file level open/read/write/close failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// CaptureOpenError reports that an offline capture context could not be
// created on top of an already opened file.
type CaptureOpenError struct {
	Path string
	Diag string
}

func (e *CaptureOpenError) Error() string {
	return fmt.Sprintf("open capture context for %q: %s", e.Path, e.Diag)
}

// InterfaceOpenError reports that a network interface could not be opened
// for live capture.
type InterfaceOpenError struct {
	Interface string
	Diag      string
}

func (e *InterfaceOpenError) Error() string {
	return fmt.Sprintf("open interface %q: %s", e.Interface, e.Diag)
}

// OutputOpenError reports that the dump destination of a live capture could
// not be opened.
type OutputOpenError struct {
	Path string
	Err  error
}

func (e *OutputOpenError) Error() string {
	return fmt.Sprintf("open capture output %q: %v", e.Path, e.Err)
}

func (e *OutputOpenError) Unwrap() error { return e.Err }

// ClosedError is returned by any operation attempted on a closed resource.
type ClosedError struct {
	Name string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("%q is closed", e.Name)
}

// SourceClosedError is returned when a duplication is attempted from a
// reader that no longer holds an open capture context.
type SourceClosedError struct {
	Name string
}

func (e *SourceClosedError) Error() string {
	return fmt.Sprintf("source %q has no open capture context", e.Name)
}

// EnumerationError reports that the interface listing failed.
type EnumerationError struct {
	Diag string
}

func (e *EnumerationError) Error() string {
	return "list interfaces: " + e.Diag
}

// CaptureLoopError reports an abnormal termination of a live capture loop.
// Packets dumped before the failure stay in the output file.
type CaptureLoopError struct {
	Interface string
	Dumped    int
	Err       error
}

func (e *CaptureLoopError) Error() string {
	return fmt.Sprintf("capture loop on %q stopped after %d packets: %v", e.Interface, e.Dumped, e.Err)
}

func (e *CaptureLoopError) Unwrap() error { return e.Err }

// AlreadyStartedError is returned when a live capture engine is started twice.
type AlreadyStartedError struct {
	Interface string
}

func (e *AlreadyStartedError) Error() string {
	return fmt.Sprintf("capture on %q was already started", e.Interface)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsIO(err error) bool {
	var e *IOError
	return errors.As(err, &e)
}

func IsClosed(err error) bool {
	var e *ClosedError
	return errors.As(err, &e)
}

func IsSourceClosed(err error) bool {
	var e *SourceClosedError
	return errors.As(err, &e)
}
