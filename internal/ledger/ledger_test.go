package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"studiofront/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleJobs() []*domain.Job {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return []*domain.Job{
		{
			ID:        "job-1",
			Kind:      domain.JobKindVideo,
			Status:    domain.JobStatusCompleted,
			Result:    &domain.Result{VideoURL: "https://cdn.example.com/v.mp4", ThumbnailURL: "https://cdn.example.com/v.jpg"},
			CreatedAt: now.Add(-time.Minute),
			UpdatedAt: now,
		},
		{
			ID:           "job-2",
			Kind:         domain.JobKindSpeech,
			Status:       domain.JobStatusFailed,
			ErrorMessage: "voice model unavailable",
			ErrorCode:    "submission_error",
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:        "local-3",
			Kind:      domain.JobKindImage,
			Status:    domain.JobStatusCompleted,
			Result:    &domain.Result{ImageURLs: []string{"https://cdn.example.com/a.png"}},
			Simulated: true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := sampleJobs()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Load() returned %d jobs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Status != want[i].Status || got[i].Kind != want[i].Kind {
			t.Fatalf("job %d mismatch: got %+v want %+v", i, got[i], want[i])
		}
	}
	if !got[2].Simulated {
		t.Fatal("simulated flag lost in round trip")
	}
	if got[0].Result == nil || got[0].Result.VideoURL != want[0].Result.VideoURL {
		t.Fatalf("result lost: %+v", got[0].Result)
	}
	if got[1].ErrorMessage != "voice model unavailable" {
		t.Fatalf("error message lost: %q", got[1].ErrorMessage)
	}
}

func TestSaveRewritesFully(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(sampleJobs()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	// second save with a shorter list must fully replace the first
	if err := s.Save(sampleJobs()[:1]); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "job-1" {
		t.Fatalf("Load() after rewrite = %d jobs, want only job-1", len(got))
	}
}

func TestLoadEmptyLedger(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("fresh ledger returned %d jobs", len(got))
	}
}

func TestLoadDiscardsCorruptMirror(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(sampleJobs()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	// corrupt one row directly
	if _, err := s.db.Exec(`UPDATE jobs SET result = '{not json', kind = 'hologram' WHERE id = 'job-1'`); err != nil {
		t.Fatalf("corrupting row: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() must not error on corrupt data, got: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("corrupt mirror should load as empty, got %d jobs", len(got))
	}
}
