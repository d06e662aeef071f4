package engine

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound    ErrorKind = "not found"
	KindResolution  ErrorKind = "resolution"
	KindCompilation ErrorKind = "compilation"
	KindEval        ErrorKind = "eval"
	KindProgramming ErrorKind = "programming"
)

// EngineError is the error type returned by every fallible operation of the
// pipeline. Cause keeps the underlying script or Go error reachable through
// errors.Unwrap.
type EngineError struct {
	Kind    ErrorKind
	Path    string
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsKind reports whether any EngineError in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var ee *EngineError
		if !errors.As(err, &ee) {
			return false
		}
		if ee.Kind == kind {
			return true
		}
		err = ee.Cause
	}
	return false
}

func notFound(path, format string, args ...interface{}) error {
	return &EngineError{Kind: KindNotFound, Path: path, Message: fmt.Sprintf(format, args...)}
}

func resolutionFailure(path string) error {
	return &EngineError{Kind: KindResolution, Path: path, Message: "failed to resolve file"}
}
