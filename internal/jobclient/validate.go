package jobclient

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"studiofront/internal/domain"
)

// MaxFileBytes caps file uploads at 100 MB, matching the backend's limit so
// oversized files fail fast without a wasted round trip.
const MaxFileBytes = 100 << 20

// FileInput is a transient upload artifact: it exists only for the duration
// of one job run and is discarded once the job is submitted or reset.
type FileInput struct {
	Slot        string
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// ValidateFile checks a file against a slot's allow-list and the global size
// cap. It performs no I/O.
func ValidateFile(f FileInput, slot UploadSlot) error {
	if f.Size > MaxFileBytes {
		return &domain.ValidationError{
			Field:  slot.Name,
			Reason: fmt.Sprintf("file %q exceeds the %d MB limit", f.Name, MaxFileBytes>>20),
		}
	}
	if f.Size <= 0 {
		return &domain.ValidationError{Field: slot.Name, Reason: "file is empty"}
	}
	ct := normalizeContentType(f.ContentType)
	if ct == "" {
		return &domain.ValidationError{Field: slot.Name, Reason: "file content type is missing"}
	}
	for _, allowed := range slot.ContentTypes {
		if ct == allowed {
			return nil
		}
	}
	return &domain.ValidationError{
		Field:  slot.Name,
		Reason: fmt.Sprintf("content type %q is not supported (allowed: %s)", ct, strings.Join(slot.ContentTypes, ", ")),
	}
}

func normalizeContentType(ct string) string {
	parsed, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return parsed
}
