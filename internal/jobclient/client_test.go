package jobclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"studiofront/internal/domain"
)

func testClient(t *testing.T, kind domain.JobKind, backendURL string, simulate bool) *Client {
	t.Helper()
	spec, err := SpecFor(kind)
	if err != nil {
		t.Fatalf("SpecFor(%s): %v", kind, err)
	}
	return NewClient(Config{
		Transport:                NewTransport(TransportOptions{BaseURL: backendURL}),
		Spec:                     spec,
		PollTimeout:              2 * time.Second,
		PollInterval:             20 * time.Millisecond,
		SimulateOnTransportError: simulate,
		SimulatedDelay:           30 * time.Millisecond,
		Logger:                   zerolog.Nop(),
	})
}

func waitTerminal(t *testing.T, c *Client) *domain.Job {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("job never reached a terminal state: %+v", c.Job())
		case <-time.After(10 * time.Millisecond):
		}
		if job := c.Job(); job != nil && job.Status.Terminal() {
			return job
		}
	}
}

func lipsyncFiles() []FileInput {
	return []FileInput{
		{Slot: "video_url", Name: "face.mp4", ContentType: "video/mp4", Size: 1 << 20, Reader: strings.NewReader("video-bytes")},
		{Slot: "audio_url", Name: "voice.mp3", ContentType: "audio/mpeg", Size: 1 << 18, Reader: strings.NewReader("audio-bytes")},
	}
}

func TestStartRejectsOversizedFileBeforeNetwork(t *testing.T) {
	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer backend.Close()

	c := testClient(t, domain.JobKindLipSync, backend.URL, false)
	files := lipsyncFiles()
	files[0].Size = 150 << 20

	_, err := c.Start(Request{Payload: map[string]any{}, Files: files})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Start() error = %v, want ValidationError", err)
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("backend was hit %d times before validation failed", n)
	}
	if c.Job() != nil {
		t.Fatal("client should stay idle after validation failure")
	}
}

func TestUploadFailureSkipsSubmit(t *testing.T) {
	var submits int32
	var uploads int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/upload"):
			n := atomic.AddInt32(&uploads, 1)
			if n == 1 {
				// first slot (video) succeeds
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"url":"https://files.example.com/v1.mp4"}`))
				return
			}
			// audio upload fails
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"bad audio"}`))
		case strings.HasSuffix(r.URL.Path, "/generate"):
			atomic.AddInt32(&submits, 1)
		}
	}))
	defer backend.Close()

	c := testClient(t, domain.JobKindLipSync, backend.URL, false)
	if _, err := c.Start(Request{Payload: map[string]any{}, Files: lipsyncFiles()}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	job := waitTerminal(t, c)
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.ErrorCode != "upload_error" {
		t.Fatalf("error code = %q, want upload_error", job.ErrorCode)
	}
	if !strings.Contains(job.ErrorMessage, "bad audio") {
		t.Fatalf("error message %q should carry the backend body", job.ErrorMessage)
	}
	if n := atomic.LoadInt32(&submits); n != 0 {
		t.Fatalf("submit ran %d times despite upload failure", n)
	}
}

func TestAsyncJobCompletesThroughPolling(t *testing.T) {
	var polls int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/generate"):
			_, _ = w.Write([]byte(`{"job_id":"job-42","status":"pending"}`))
		case strings.Contains(r.URL.Path, "/status/"):
			if atomic.AddInt32(&polls, 1) < 3 {
				_, _ = w.Write([]byte(`{"status":"processing"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"completed","result":{"video_url":"https://cdn.example.com/out.mp4","thumbnail_url":"https://cdn.example.com/out.jpg"}}`))
		}
	}))
	defer backend.Close()

	c := testClient(t, domain.JobKindVideo, backend.URL, false)
	snap, err := c.Start(Request{Payload: map[string]any{"prompt": "a sunrise"}})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !strings.HasPrefix(snap.ID, "local-") {
		t.Fatalf("initial id = %q, want local placeholder", snap.ID)
	}

	job := waitTerminal(t, c)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s (%s), want completed", job.Status, job.ErrorMessage)
	}
	if job.ID != "job-42" {
		t.Fatalf("id = %q, want backend-assigned job-42", job.ID)
	}
	if job.Simulated {
		t.Fatal("genuine backend completion must not be flagged simulated")
	}
	if job.Result == nil || job.Result.VideoURL != "https://cdn.example.com/out.mp4" {
		t.Fatalf("result = %+v", job.Result)
	}
	if c.Progress() != 100 {
		t.Fatalf("progress = %d, want 100", c.Progress())
	}
}

func TestSynchronousCompletion(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"images":["https://cdn.example.com/a.png","https://cdn.example.com/b.png"]}`))
	}))
	defer backend.Close()

	c := testClient(t, domain.JobKindImage, backend.URL, false)
	if _, err := c.Start(Request{Payload: map[string]any{"prompt": "two cats"}}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	job := waitTerminal(t, c)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if len(job.Result.ImageURLs) != 2 {
		t.Fatalf("image urls = %v", job.Result.ImageURLs)
	}
}

func TestPollTimeout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/generate") {
			_, _ = w.Write([]byte(`{"job_id":"job-slow","status":"pending"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	}))
	defer backend.Close()

	spec, _ := SpecFor(domain.JobKindVideo)
	c := NewClient(Config{
		Transport:    NewTransport(TransportOptions{BaseURL: backend.URL}),
		Spec:         spec,
		PollTimeout:  80 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	if _, err := c.Start(Request{Payload: map[string]any{"prompt": "x"}}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	job := waitTerminal(t, c)
	if job.Status != domain.JobStatusFailed || job.ErrorCode != "timeout_error" {
		t.Fatalf("job = %s/%s, want failed/timeout_error", job.Status, job.ErrorCode)
	}
}

func TestSimulatedCompletionFallback(t *testing.T) {
	// Closed server: every call is a transport failure.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	c := testClient(t, domain.JobKindVideo, backend.URL, true)
	if _, err := c.Start(Request{Payload: map[string]any{"prompt": "x"}}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	job := waitTerminal(t, c)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want simulated completed", job.Status)
	}
	if !job.Simulated {
		t.Fatal("simulated completion must be flagged")
	}
	if !strings.HasPrefix(job.ID, "local-") {
		t.Fatalf("simulated job kept id %q, want local placeholder", job.ID)
	}
	if job.Result == nil || !strings.Contains(job.Result.VideoURL, "placeholder") {
		t.Fatalf("result = %+v, want placeholder url", job.Result)
	}
}

func TestTransportErrorSurfacesWhenSimulationDisabled(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	c := testClient(t, domain.JobKindVideo, backend.URL, false)
	if _, err := c.Start(Request{Payload: map[string]any{"prompt": "x"}}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	job := waitTerminal(t, c)
	if job.Status != domain.JobStatusFailed || job.ErrorCode != "transport_error" {
		t.Fatalf("job = %s/%s, want failed/transport_error", job.Status, job.ErrorCode)
	}
	if job.Simulated {
		t.Fatal("disabled fallback must not simulate")
	}
}

func TestResetDiscardsStaleResponse(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://cdn.example.com/late.png"}`))
	}))
	defer backend.Close()

	c := testClient(t, domain.JobKindImage, backend.URL, false)
	if _, err := c.Start(Request{Payload: map[string]any{"prompt": "x"}}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	c.Reset()
	close(release)

	// give the stale response time to arrive and (correctly) be dropped
	time.Sleep(100 * time.Millisecond)
	if job := c.Job(); job != nil {
		t.Fatalf("stale response mutated state after reset: %+v", job)
	}
	if c.Progress() != 0 {
		t.Fatalf("progress = %d after reset, want 0", c.Progress())
	}
}

func TestCancelWhileIdleIsNoop(t *testing.T) {
	c := testClient(t, domain.JobKindImage, "http://127.0.0.1:0", false)
	c.Cancel()
	c.Cancel()
	if c.Job() != nil {
		t.Fatal("idle client should have no job")
	}
}

func TestConcurrentKindsDoNotCrossContaminate(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/image/"):
			_, _ = w.Write([]byte(`{"images":["https://cdn.example.com/img.png"]}`))
		case strings.HasPrefix(r.URL.Path, "/speech/"):
			_, _ = w.Write([]byte(`{"audio_url":"https://cdn.example.com/voice.mp3"}`))
		}
	}))
	defer backend.Close()

	img := testClient(t, domain.JobKindImage, backend.URL, false)
	spc := testClient(t, domain.JobKindSpeech, backend.URL, false)

	if _, err := img.Start(Request{Payload: map[string]any{"prompt": "cat"}}); err != nil {
		t.Fatalf("image Start() error: %v", err)
	}
	if _, err := spc.Start(Request{Payload: map[string]any{"text": "hello"}}); err != nil {
		t.Fatalf("speech Start() error: %v", err)
	}

	imgJob := waitTerminal(t, img)
	spcJob := waitTerminal(t, spc)

	if imgJob.Status != domain.JobStatusCompleted || spcJob.Status != domain.JobStatusCompleted {
		t.Fatalf("statuses = %s/%s, want both completed", imgJob.Status, spcJob.Status)
	}
	if imgJob.Result.AudioURL != "" || len(spcJob.Result.ImageURLs) != 0 {
		t.Fatal("result fields leaked across kinds")
	}
	if len(imgJob.Result.ImageURLs) != 1 || spcJob.Result.AudioURL == "" {
		t.Fatalf("results incomplete: %+v / %+v", imgJob.Result, spcJob.Result)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	var polls int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/upload"):
			_, _ = w.Write([]byte(`{"url":"https://files.example.com/f"}`))
		case strings.HasSuffix(r.URL.Path, "/generate"):
			_, _ = w.Write([]byte(`{"job_id":"job-7","status":"pending"}`))
		default:
			if atomic.AddInt32(&polls, 1) < 4 {
				_, _ = w.Write([]byte(`{"status":"processing"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"completed","result":{"video_url":"https://cdn.example.com/v.mp4"}}`))
		}
	}))
	defer backend.Close()

	c := testClient(t, domain.JobKindLipSync, backend.URL, false)
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	if _, err := c.Start(Request{Payload: map[string]any{}, Files: lipsyncFiles()}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	waitTerminal(t, c)

	last := -1
	for {
		select {
		case ev := <-events:
			if ev.Progress < last {
				t.Fatalf("progress went backwards: %d after %d", ev.Progress, last)
			}
			last = ev.Progress
			if ev.Progress == 100 {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("never saw progress 100; last %d", last)
		}
	}
}

func TestStatusNormalization(t *testing.T) {
	tests := []struct {
		in   string
		want domain.JobStatus
	}{
		{"pending", domain.JobStatusPending},
		{"queued", domain.JobStatusPending},
		{"PROCESSING", domain.JobStatusProcessing},
		{"running", domain.JobStatusProcessing},
		{"completed", domain.JobStatusCompleted},
		{"succeeded", domain.JobStatusCompleted},
		{"failed", domain.JobStatusFailed},
		{"error", domain.JobStatusFailed},
		{"", domain.JobStatusPending},
	}
	for _, tt := range tests {
		if got := normalizeStatus(tt.in); got != tt.want {
			t.Fatalf("normalizeStatus(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMapResultShapes(t *testing.T) {
	if _, err := mapImageResult(json.RawMessage(`{}`)); err == nil {
		t.Fatal("empty image result should error")
	}
	res, err := mapVideoResult(json.RawMessage(`{"url":"https://cdn.example.com/v.mp4"}`))
	if err != nil || res.VideoURL != "https://cdn.example.com/v.mp4" {
		t.Fatalf("mapVideoResult fallback url: %+v, %v", res, err)
	}
	res, err = mapSpeechResult(json.RawMessage(`{"audio_url":"https://cdn.example.com/a.mp3"}`))
	if err != nil || res.AudioURL == "" {
		t.Fatalf("mapSpeechResult: %+v, %v", res, err)
	}
}
