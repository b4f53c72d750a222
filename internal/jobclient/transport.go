package jobclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"studiofront/internal/domain"
	"studiofront/internal/session"
)

// Transport is the thin HTTP client the job pipeline drives. One instance is
// shared across kinds; it carries no job state.
type Transport struct {
	httpClient *http.Client
	baseURL    string
	creds      *session.Store
}

// TransportOptions configures a Transport.
type TransportOptions struct {
	BaseURL     string
	HTTPClient  *http.Client
	Timeout     time.Duration
	Credentials *session.Store
}

// NewTransport builds a Transport for the generation backend.
func NewTransport(opts TransportOptions) *Transport {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Transport{
		httpClient: client,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		creds:      opts.Credentials,
	}
}

func (t *Transport) do(req *http.Request) (*http.Response, error) {
	if t.creds != nil {
		if token, ok := t.creds.Get(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return t.httpClient.Do(req)
}

// Upload sends one file as a multipart payload and returns the remote URL
// assigned by the backend.
func (t *Transport) Upload(ctx context.Context, path string, f FileInput) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return "", &domain.UploadError{Err: err}
	}
	if _, err := io.Copy(part, f.Reader); err != nil {
		return "", &domain.UploadError{Err: err}
	}
	if err := mw.WriteField("file_type", f.ContentType); err != nil {
		return "", &domain.UploadError{Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &domain.UploadError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, &buf)
	if err != nil {
		return "", &domain.UploadError{Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.do(req)
	if err != nil {
		return "", &domain.TransportError{Op: "upload", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &domain.UploadError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &domain.UploadError{Err: fmt.Errorf("decode upload response: %w", err)}
	}
	if out.URL == "" {
		return "", &domain.UploadError{Err: fmt.Errorf("upload response missing url")}
	}
	return out.URL, nil
}

// submitOutcome is what a generate call produced: either a job id to poll or
// a direct result payload (synchronous completion).
type submitOutcome struct {
	JobID  string
	Status domain.JobStatus
	Raw    json.RawMessage
}

// Submit posts the generation request.
func (t *Transport) Submit(ctx context.Context, path string, payload json.RawMessage) (*submitOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.SubmissionError{Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "submit", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &domain.TransportError{Op: "submit", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.SubmissionError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var head struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, &domain.SubmissionError{StatusCode: resp.StatusCode, Body: "unparsable generate response"}
	}
	return &submitOutcome{
		JobID:  head.JobID,
		Status: normalizeStatus(head.Status),
		Raw:    json.RawMessage(body),
	}, nil
}

// statusOutcome is one observation of a polled job.
type statusOutcome struct {
	Status domain.JobStatus
	Error  string
	Raw    json.RawMessage
}

// Status queries the backend job descriptor once.
func (t *Transport) Status(ctx context.Context, statusPath, jobID string) (*statusOutcome, error) {
	url := t.baseURL + fmt.Sprintf(statusPath, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: "status", Err: err}
	}
	resp, err := t.do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "status", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &domain.TransportError{Op: "status", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.SubmissionError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var out struct {
		Status string          `json:"status"`
		Error  string          `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &domain.SubmissionError{StatusCode: resp.StatusCode, Body: "unparsable status response"}
	}
	raw := out.Result
	if len(raw) == 0 {
		raw = json.RawMessage(body)
	}
	return &statusOutcome{
		Status: normalizeStatus(out.Status),
		Error:  out.Error,
		Raw:    raw,
	}, nil
}

// normalizeStatus maps the backend status vocabulary onto the client's. The
// backend reports "error" for some failure modes; it collapses into failed.
func normalizeStatus(s string) domain.JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "queued":
		return domain.JobStatusPending
	case "processing", "running":
		return domain.JobStatusProcessing
	case "completed", "succeeded":
		return domain.JobStatusCompleted
	case "failed", "error":
		return domain.JobStatusFailed
	}
	return domain.JobStatusPending
}
