package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/bookweave/internal/proposal"
	"github.com/dgallion1/bookweave/internal/weave"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestInputHash(t *testing.T) {
	base, sec := testSources(t)
	req := Request{Base: base, Secondary: sec, Strategy: weave.StrategyAuto}

	h1, err := InputHash(req)
	if err != nil {
		t.Fatal(err)
	}
	req.Force = true
	h2, _ := InputHash(req)
	if h1 != h2 {
		t.Error("force should not change the input hash")
	}

	req.Hints = &proposal.HintSet{InsertionPoints: []proposal.Hint{{SourcePage: proposal.I(1)}}}
	h3, _ := InputHash(req)
	if h3 == h1 {
		t.Error("hints should change the input hash")
	}
}

func TestNewJob(t *testing.T) {
	a, b := NewJob(Request{}), NewJob(Request{})
	if a.ID == "" || a.RunID == "" || a.ID == b.ID || a.RunID == b.RunID {
		t.Errorf("ids not unique: %s/%s %s/%s", a.ID, a.RunID, b.ID, b.RunID)
	}
	if a.Status != StatusQueued {
		t.Errorf("status = %q", a.Status)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob(Request{})

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusLoading, "loading"},
		{StatusTagging, "tagging"},
		{StatusMerging, "merging"},
		{StatusStoring, "storing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJobStatusDone(t *testing.T) {
	for _, s := range []JobStatus{StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped} {
		if !s.Done() {
			t.Errorf("%q should be done", s)
		}
	}
	for _, s := range []JobStatus{StatusQueued, StatusLoading, StatusPlacing, StatusMerging} {
		if s.Done() {
			t.Errorf("%q should not be done", s)
		}
	}
}

func TestParseGenerate(t *testing.T) {
	for _, s := range []string{"", "tags", "hints"} {
		if _, err := ParseGenerate(s); err != nil {
			t.Errorf("ParseGenerate(%q): %v", s, err)
		}
	}
	if _, err := ParseGenerate("facts"); err == nil {
		t.Error("expected error")
	}
}

func TestJob_Progress(t *testing.T) {
	job := NewJob(Request{})
	job.SetOraclePages(3)
	job.PageDone(false)
	job.PageDone(true)
	job.AddError("beit page 2: boom")

	snap := job.Snapshot()
	if snap.Progress.OraclePages != 3 || snap.Progress.PagesProcessed != 2 || snap.Progress.OracleFailures != 1 {
		t.Errorf("progress = %+v", snap.Progress)
	}
	if len(snap.Progress.Errors) != 1 || snap.Progress.Errors[0] != "beit page 2: boom" {
		t.Errorf("errors = %v", snap.Progress.Errors)
	}

	// The snapshot must not alias the job's error slice.
	snap.Progress.Errors[0] = "changed"
	if job.Snapshot().Progress.Errors[0] != "beit page 2: boom" {
		t.Error("snapshot aliases job errors")
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if snap.Mode != "" {
		t.Errorf("mode before merge = %q", snap.Mode)
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", Status: StatusCompleted, UpdatedAt: time.Now()}
	running := &Job{ID: "running", Status: StatusMerging, UpdatedAt: time.Now()}
	store.Put(expired)
	store.Put(running)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", Status: StatusCompleted, UpdatedAt: time.Now()}
	store.Put(fresh)

	counts := store.Counts()
	if counts[StatusCompleted] != 2 || counts[StatusMerging] != 1 {
		t.Errorf("counts before cleanup = %v", counts)
	}

	if n := store.Cleanup(); n != 1 {
		t.Errorf("Cleanup removed %d, want 1", n)
	}

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("running") == nil {
		t.Error("expected unfinished job to survive cleanup")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}
