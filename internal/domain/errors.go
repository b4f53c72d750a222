package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a tracked job cannot be located.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobFinished is returned when a mutation targets a terminal job.
	ErrJobFinished = errors.New("job already finished")
)

// ValidationError reports bad input detected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// UploadError reports a failed file upload. Body carries the backend's error
// payload for diagnosis when the backend was reached.
type UploadError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return "upload failed: " + e.Err.Error()
	}
	if e.Body != "" {
		return fmt.Sprintf("upload failed: http %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upload failed: http %d", e.StatusCode)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubmissionError reports a rejected generation request (backend reached,
// non-2xx response).
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("submission rejected: http %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("submission rejected: http %d", e.StatusCode)
}

// TransportError reports that the backend could not be reached at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports that polling exceeded its bound before the job
// reached a terminal state.
type TimeoutError struct {
	JobID   string
	Elapsed string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for job %s after %s", e.JobID, e.Elapsed)
}

// ErrorCode maps a job client failure to the machine-readable code stored on
// the job record. The UI picks retry affordances off these codes.
func ErrorCode(err error) string {
	var (
		ve *ValidationError
		ue *UploadError
		se *SubmissionError
		te *TransportError
		to *TimeoutError
	)
	switch {
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &ue):
		return "upload_error"
	case errors.As(err, &se):
		return "submission_error"
	case errors.As(err, &to):
		return "timeout_error"
	case errors.As(err, &te):
		return "transport_error"
	}
	return "internal_error"
}
