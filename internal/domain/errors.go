package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies which stage of a day export failed.
type ErrorKind string

const (
	KindStoreQuery ErrorKind = "StoreQueryError"
	KindEncoding   ErrorKind = "EncodingError"
	KindFileIO     ErrorKind = "FileIOError"
	KindUpload     ErrorKind = "UploadError"
	KindTimeout    ErrorKind = "TimeoutError"
)

// Stage returns the short pipeline stage name used in logs and metrics.
func (k ErrorKind) Stage() string {
	switch k {
	case KindStoreQuery:
		return "query"
	case KindEncoding:
		return "encode"
	case KindFileIO:
		return "write"
	case KindUpload:
		return "upload"
	case KindTimeout:
		return "watchdog"
	default:
		return "unknown"
	}
}

// StageError is a failure attributed to one stage of one day's export.
// Day is empty for run-level failures such as a watchdog timeout.
type StageError struct {
	Kind ErrorKind
	Day  string
	Err  error
}

func (e *StageError) Error() string {
	if e.Day == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: day %s: %v", e.Kind, e.Day, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with a kind and day. It returns nil for a nil err
// and leaves an existing StageError untouched so the innermost stage wins.
func NewStageError(kind ErrorKind, day string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Kind: kind, Day: day, Err: err}
}

// KindOf extracts the ErrorKind from an error chain.
func KindOf(err error) (ErrorKind, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}
