package domain

import (
	"encoding/json"
	"time"
)

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindImage   JobKind = "image"
	JobKindSpeech  JobKind = "speech"
	JobKindVideo   JobKind = "video"
	JobKindLipSync JobKind = "lipsync"
)

// Valid reports whether the kind is one the service knows how to drive.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindImage, JobKindSpeech, JobKindVideo, JobKindLipSync:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status freezes the job. A failed job can only
// move again through a user-initiated retry, which creates a fresh pending
// state on the same record.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Result holds the kind-specific output of a completed job. Only the fields
// relevant to the job's kind are populated.
type Result struct {
	ImageURLs    []string `json:"image_urls,omitempty"`
	AudioURL     string   `json:"audio_url,omitempty"`
	VideoURL     string   `json:"video_url,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
}

// Empty reports whether the result carries no output at all.
func (r *Result) Empty() bool {
	if r == nil {
		return true
	}
	return len(r.ImageURLs) == 0 && r.AudioURL == "" && r.VideoURL == "" && r.ThumbnailURL == ""
}

// Job tracks one unit of asynchronous generation work. The backend assigns
// the canonical ID; jobs synthesized while the backend is unreachable carry a
// locally generated placeholder ID and Simulated=true.
type Job struct {
	ID           string          `json:"id"`
	Kind         JobKind         `json:"kind"`
	Status       JobStatus       `json:"status"`
	PayloadJSON  json.RawMessage `json:"payload,omitempty"`
	Result       *Result         `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	Simulated    bool            `json:"simulated,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers can hand jobs across goroutine
// boundaries without sharing mutable state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.PayloadJSON != nil {
		cp.PayloadJSON = append(json.RawMessage(nil), j.PayloadJSON...)
	}
	if j.Result != nil {
		res := *j.Result
		if j.Result.ImageURLs != nil {
			res.ImageURLs = append([]string(nil), j.Result.ImageURLs...)
		}
		cp.Result = &res
	}
	return &cp
}
