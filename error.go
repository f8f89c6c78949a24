package upload

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var (
	// ErrAborted is returned when an upload is cancelled without a specific cause.
	ErrAborted = errors.New("upload: aborted")
	// ErrRetriesExhausted is wrapped by FileError when every attempt failed.
	ErrRetriesExhausted = errors.New("upload: retries exhausted")
)

// HttpError is returned when the destination answered with a non-success status.
// e holds the error hit while reading the response body, if any.
type HttpError struct {
	Code int
	Body []byte
	e    error
}

func (e *HttpError) Error() string {
	if e.e != nil {
		return fmt.Sprintf("HTTP Error %d: %s (reading body: %s)", e.Code, e.Body, e.e)
	}
	return fmt.Sprintf("HTTP Error %d: %s", e.Code, e.Body)
}

func (e *HttpError) Unwrap() []error {
	var res []error
	if e.e != nil {
		res = append(res, e.e)
	}
	// pre-signed urls usually answer 403 once expired
	switch e.Code {
	case 403:
		res = append(res, os.ErrPermission)
	case 404:
		res = append(res, fs.ErrNotExist)
	}
	return res
}

// FileError identifies the file whose upload failed for good.
type FileError struct {
	Path     string
	URL      string
	Attempts int
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("upload of '%s' failed after %d attempt(s): %s", e.Path, e.Attempts, e.Err)
}

func (e *FileError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}

// AbortError marks an attempt stopped by its context before reaching the transport.
// It is never retried.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	return e.Cause.Error()
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}
