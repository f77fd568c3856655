package archiver

import (
	"errors"
	"fmt"
)

// FetchError is a failed upstream query attempt. It is retried.
type FetchError struct {
	BaseURL string
	Metric  string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Metric, e.BaseURL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UploadError is a failed object write. It is retried.
type UploadError struct {
	Key        string
	StatusCode int // 0 when the store never answered
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upload %s: status %d: %v", e.Key, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// UnexpectedError covers anything outside the fetch/upload path, including
// recovered panics. It is never retried.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string { return "unexpected: " + e.Err.Error() }

func (e *UnexpectedError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func Retryable(err error) bool {
	var fe *FetchError
	var ue *UploadError
	return errors.As(err, &fe) || errors.As(err, &ue)
}

// Kind names the error class for log records.
func Kind(err error) string {
	var fe *FetchError
	var ue *UploadError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fe):
		return "fetch"
	case errors.As(err, &ue):
		return "upload"
	default:
		return "unexpected"
	}
}
