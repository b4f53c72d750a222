package jobclient

import (
	"encoding/json"
	"fmt"

	"studiofront/internal/domain"
)

// UploadSlot describes one file input a kind accepts before submission.
type UploadSlot struct {
	// Name keys the uploaded URL into the generation payload ("video_url").
	Name string
	// Field is the multipart form field callers supply the file under.
	Field string
	// Path is the backend upload endpoint for this slot.
	Path string
	// ContentTypes is the allow-list enforced before any network call.
	ContentTypes []string
}

// KindSpec parametrizes the generic client for one media kind: where to
// upload, where to submit, where to poll, and how to map backend output into
// the typed result.
type KindSpec struct {
	Kind         domain.JobKind
	GeneratePath string
	StatusPath   string // expects the job id as its single fmt argument
	Slots        []UploadSlot
	MapResult    func(raw json.RawMessage) (*domain.Result, error)
	Placeholder  func(jobID string) *domain.Result
}

var (
	videoContentTypes = []string{
		"video/mp4",
		"video/quicktime",
		"video/webm",
		"video/x-matroska",
	}
	audioContentTypes = []string{
		"audio/mpeg",
		"audio/mp3",
		"audio/wav",
		"audio/x-wav",
		"audio/mp4",
		"audio/ogg",
	}
)

// SpecFor returns the built-in spec for a kind.
func SpecFor(kind domain.JobKind) (KindSpec, error) {
	switch kind {
	case domain.JobKindImage:
		return KindSpec{
			Kind:         kind,
			GeneratePath: "/image/generate",
			StatusPath:   "/image/status/%s",
			MapResult:    mapImageResult,
			Placeholder: func(jobID string) *domain.Result {
				return &domain.Result{ImageURLs: []string{placeholderURL("image", jobID, "png")}}
			},
		}, nil
	case domain.JobKindSpeech:
		return KindSpec{
			Kind:         kind,
			GeneratePath: "/speech/generate",
			StatusPath:   "/speech/status/%s",
			MapResult:    mapSpeechResult,
			Placeholder: func(jobID string) *domain.Result {
				return &domain.Result{AudioURL: placeholderURL("speech", jobID, "mp3")}
			},
		}, nil
	case domain.JobKindVideo:
		return KindSpec{
			Kind:         kind,
			GeneratePath: "/video/generate",
			StatusPath:   "/video/status/%s",
			MapResult:    mapVideoResult,
			Placeholder: func(jobID string) *domain.Result {
				return &domain.Result{
					VideoURL:     placeholderURL("video", jobID, "mp4"),
					ThumbnailURL: placeholderURL("video", jobID, "jpg"),
				}
			},
		}, nil
	case domain.JobKindLipSync:
		return KindSpec{
			Kind:         kind,
			GeneratePath: "/lipsync/generate",
			StatusPath:   "/lipsync/status/%s",
			Slots: []UploadSlot{
				{Name: "video_url", Field: "video", Path: "/lipsync/upload", ContentTypes: videoContentTypes},
				{Name: "audio_url", Field: "audio", Path: "/lipsync/upload", ContentTypes: audioContentTypes},
			},
			MapResult: mapVideoResult,
			Placeholder: func(jobID string) *domain.Result {
				return &domain.Result{
					VideoURL:     placeholderURL("lipsync", jobID, "mp4"),
					ThumbnailURL: placeholderURL("lipsync", jobID, "jpg"),
				}
			},
		}, nil
	}
	return KindSpec{}, fmt.Errorf("unsupported job kind %q", kind)
}

func placeholderURL(kind, jobID, ext string) string {
	return fmt.Sprintf("https://cdn.example.com/placeholder/%s/%s.%s", kind, jobID, ext)
}

func mapImageResult(raw json.RawMessage) (*domain.Result, error) {
	var out struct {
		Images []string `json:"images"`
		URL    string   `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	res := &domain.Result{ImageURLs: out.Images}
	if len(res.ImageURLs) == 0 && out.URL != "" {
		res.ImageURLs = []string{out.URL}
	}
	if res.Empty() {
		return nil, fmt.Errorf("image result missing urls")
	}
	return res, nil
}

func mapSpeechResult(raw json.RawMessage) (*domain.Result, error) {
	var out struct {
		AudioURL string `json:"audio_url"`
		URL      string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	res := &domain.Result{AudioURL: out.AudioURL}
	if res.AudioURL == "" {
		res.AudioURL = out.URL
	}
	if res.Empty() {
		return nil, fmt.Errorf("speech result missing audio url")
	}
	return res, nil
}

func mapVideoResult(raw json.RawMessage) (*domain.Result, error) {
	var out struct {
		VideoURL     string `json:"video_url"`
		ThumbnailURL string `json:"thumbnail_url"`
		URL          string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	res := &domain.Result{VideoURL: out.VideoURL, ThumbnailURL: out.ThumbnailURL}
	if res.VideoURL == "" {
		res.VideoURL = out.URL
	}
	if res.VideoURL == "" {
		return nil, fmt.Errorf("video result missing url")
	}
	return res, nil
}
