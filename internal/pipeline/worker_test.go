package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/bookweave/internal/config"
	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/oracle"
	"github.com/dgallion1/bookweave/internal/pathstore"
	"github.com/dgallion1/bookweave/internal/proposal"
	"github.com/dgallion1/bookweave/internal/report"
	"github.com/dgallion1/bookweave/internal/weave"
)

func testSources(t *testing.T) (*doctree.Source, *doctree.Source) {
	t.Helper()
	base, err := doctree.NewSource("sadot", "שדות", []doctree.Page{
		{Number: 1, Lines: doctree.LinesFromText("b1\nb2")},
		{Number: 2, Lines: doctree.LinesFromText("b3")},
	})
	if err != nil {
		t.Fatal(err)
	}
	sec, err := doctree.NewSource("beit", "בית", []doctree.Page{
		{Number: 1, Lines: doctree.LinesFromText("s1\ns2")},
		{Number: 2, Lines: doctree.LinesFromText("s3")},
	})
	if err != nil {
		t.Fatal(err)
	}
	return base, sec
}

func quietLog() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeOracle tags every page with its own year and places every
// secondary page after base page 1. Pages listed in fail always error.
type fakeOracle struct {
	fail      map[string]error
	transient atomic.Int32 // retryable errors still to return
	calls     atomic.Int32
}

func (f *fakeOracle) err(src *doctree.Source, page *doctree.Page) error {
	f.calls.Add(1)
	if f.transient.Load() > 0 && f.transient.Add(-1) >= 0 {
		return &oracle.RetryableError{StatusCode: 529, Message: "overloaded"}
	}
	return f.fail[fmt.Sprintf("%s/%d", src.ID, page.Number)]
}

func (f *fakeOracle) TagPage(_ context.Context, src *doctree.Source, page *doctree.Page) (proposal.TaggedPage, error) {
	if err := f.err(src, page); err != nil {
		return proposal.TaggedPage{}, err
	}
	return proposal.TaggedPage{
		SourceID:   src.ID,
		PageNumber: proposal.I(page.Number),
		LineTags: []proposal.Tag{{
			LineStart: proposal.I(1),
			LineEnd:   proposal.I(page.LineCount()),
			Year:      proposal.I(1900 + page.Number),
		}},
	}, nil
}

func (f *fakeOracle) PlacePage(_ context.Context, src *doctree.Source, page *doctree.Page, _ string) ([]proposal.Hint, error) {
	if err := f.err(src, page); err != nil {
		return nil, err
	}
	return []proposal.Hint{{
		SourcePage:      proposal.I(page.Number),
		SourceLineStart: proposal.I(1),
		SourceLineEnd:   proposal.I(page.LineCount()),
		InsertAfterPage: proposal.I(1),
	}}, nil
}

// memStore is an in-memory Store.
type memStore struct {
	mu  sync.Mutex
	kv  map[string]any
	err error
}

func newMemStore() *memStore { return &memStore{kv: map[string]any{}} }

func (m *memStore) PutNode(_ context.Context, key string, req pathstore.NodeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.kv[key] = req.Value
	return nil
}

func (m *memStore) ListChildren(_ context.Context, key string, limit int) ([]pathstore.ListChildrenResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pathstore.ListChildrenResponse
	for k := range m.kv {
		if strings.HasPrefix(k, key+"/") {
			out = append(out, pathstore.ListChildrenResponse{Key: k})
		}
	}
	return out, nil
}

func newTestWorker(o Oracle, s Store) *Worker {
	w := NewWorker(o, s, quietLog(), 2)
	w.wait = func(int) time.Duration { return 0 }
	return w
}

func TestWorker_SpliceAndPersist(t *testing.T) {
	base, sec := testSources(t)
	store := newMemStore()
	w := newTestWorker(nil, store)

	job := NewJob(Request{
		Base:      base,
		Secondary: sec,
		Hints: &proposal.HintSet{InsertionPoints: []proposal.Hint{{
			SourcePage: proposal.I(2), SourceLineStart: proposal.I(1), SourceLineEnd: proposal.I(1),
			InsertAfterPage: proposal.I(1),
		}}},
	})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %q, errors = %v", snap.Status, snap.Progress.Errors)
	}
	if snap.Mode != string(weave.StrategySplice) || snap.Progress.Segments != 3 {
		t.Errorf("mode = %q, segments = %d", snap.Mode, snap.Progress.Segments)
	}
	if got := job.Result().Document.Text; !strings.Contains(got, "s3") {
		t.Errorf("placed text missing:\n%s", got)
	}

	for _, key := range []string{
		pathstore.RunKey(job.RunID, "meta"),
		pathstore.RunKey(job.RunID, "manifest"),
		pathstore.RunKey(job.RunID, "report"),
		pathstore.HashKey(snap.InputHash) + "/" + job.RunID,
	} {
		if _, ok := store.kv[key]; !ok {
			t.Errorf("missing stored key %s", key)
		}
	}

	// The same input again is skipped unless forced.
	again := NewJob(job.Request())
	w.Process(context.Background(), again)
	if s := again.Snapshot(); s.Status != StatusDupSkipped || !strings.Contains(s.Progress.Errors[0], job.RunID) {
		t.Errorf("second run = %q %v", s.Status, s.Progress.Errors)
	}

	req := job.Request()
	req.Force = true
	forced := NewJob(req)
	w.Process(context.Background(), forced)
	if s := forced.Snapshot(); s.Status != StatusCompleted {
		t.Errorf("forced run = %q", s.Status)
	}
}

func TestWorker_GenerateTagsPartial(t *testing.T) {
	base, sec := testSources(t)
	o := &fakeOracle{fail: map[string]error{"beit/2": errors.New("refused")}}
	w := newTestWorker(o, nil)

	job := NewJob(Request{Base: base, Secondary: sec, Generate: GenerateTags})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("status = %q, errors = %v", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.OraclePages != 4 || snap.Progress.PagesProcessed != 4 || snap.Progress.OracleFailures != 1 {
		t.Errorf("progress = %+v", snap.Progress)
	}
	res := job.Result()
	if res.Mode != weave.StrategyGrouped {
		t.Errorf("mode = %q", res.Mode)
	}
	if n := res.Report.Count(report.OracleFailure); n != 1 {
		t.Errorf("oracle failures in report = %d", n)
	}
	if job.Request().Tags.TagCount() != 3 {
		t.Errorf("generated tags = %d", job.Request().Tags.TagCount())
	}
}

func TestWorker_GenerateHintsRetries(t *testing.T) {
	base, sec := testSources(t)
	o := &fakeOracle{}
	o.transient.Store(2)
	w := newTestWorker(o, nil)
	w.maxConcurrentOracle = 1

	job := NewJob(Request{Base: base, Secondary: sec, Generate: GenerateHints})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %q, errors = %v", snap.Status, snap.Progress.Errors)
	}
	if got := o.calls.Load(); got != 4 {
		t.Errorf("oracle calls = %d, want 2 pages + 2 retries", got)
	}
	if res := job.Result(); res.Report.PlacementsResolved != 2 {
		t.Errorf("placements = %d", res.Report.PlacementsResolved)
	}
}

func TestWorker_Failures(t *testing.T) {
	base, sec := testSources(t)
	same, _ := doctree.NewSource("sadot", "copy", sec.Pages)

	tests := []struct {
		name  string
		req   Request
		phase string
	}{
		{"missing source", Request{Base: base}, "loading"},
		{"no oracle", Request{Base: base, Secondary: sec, Generate: GenerateTags}, "oracle"},
		{"shared id", Request{Base: base, Secondary: same}, "merging"},
		{"bad strategy", Request{Base: base, Secondary: sec, Strategy: "random"}, "merging"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob(tt.req)
			newTestWorker(nil, nil).Process(context.Background(), job)
			snap := job.Snapshot()
			if snap.Status != StatusFailed || snap.Phase != tt.phase {
				t.Errorf("got %q/%q, want failed/%s (%v)", snap.Status, snap.Phase, tt.phase, snap.Progress.Errors)
			}
		})
	}
}

func TestWorker_StoreErrorIsPartial(t *testing.T) {
	base, sec := testSources(t)
	store := newMemStore()
	store.err = errors.New("pathstore down")
	job := NewJob(Request{Base: base, Secondary: sec})
	newTestWorker(nil, store).Process(context.Background(), job)
	if s := job.Snapshot(); s.Status != StatusPartial || job.Result() == nil {
		t.Errorf("status = %q", s.Status)
	}
}

func TestFanoutTagsOrder(t *testing.T) {
	base, sec := testSources(t)
	f := &Fanout{Oracle: &fakeOracle{}, Limit: 4, wait: func(int) time.Duration { return 0 }}
	set, failures := f.Tags(context.Background(), base, sec)
	if len(failures) != 0 {
		t.Fatalf("failures = %v", failures)
	}
	var got []string
	for _, p := range set.Pages {
		got = append(got, fmt.Sprintf("%s/%d", p.SourceID, p.PageNumber.Value))
	}
	want := "sadot/1 sadot/2 beit/1 beit/2"
	if strings.Join(got, " ") != want {
		t.Errorf("order = %v, want %s", got, want)
	}
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := retry(context.Background(), quietLog(), func(int) time.Duration { return 0 }, func() error {
		calls++
		return &oracle.RetryableError{StatusCode: 500}
	})
	if !IsRetryable(err) || calls != MaxRetries {
		t.Errorf("calls = %d, err = %v", calls, err)
	}

	calls = 0
	err = retry(context.Background(), quietLog(), func(int) time.Duration { return 0 }, func() error {
		calls++
		return errors.New("bad request")
	})
	if IsRetryable(err) || calls != 1 {
		t.Errorf("non-retryable: calls = %d", calls)
	}
}

func TestBackoffBounds(t *testing.T) {
	for attempt := range 8 {
		d := Backoff(attempt)
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		if d < base || d >= base+base/2 {
			t.Errorf("Backoff(%d) = %v, want [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}

func TestOrchestrator(t *testing.T) {
	base, sec := testSources(t)
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, MaxConcurrentOracle: 1, JobTTL: time.Hour}

	o := NewOrchestrator(cfg, nil, nil, quietLog())
	first := NewJob(Request{Base: base, Secondary: sec})
	if err := o.Submit(first); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second := NewJob(Request{Base: base, Secondary: sec})
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full")
	}
	if second.Snapshot().Status != StatusFailed {
		t.Error("rejected job should be failed")
	}
	if o.QueueDepth() != 1 || o.GetJob(first.ID) != first {
		t.Error("first job should be queued and registered")
	}

	o.Start(context.Background())
	deadline := time.Now().Add(5 * time.Second)
	for !first.Snapshot().Status.Done() {
		if time.Now().After(deadline) {
			t.Fatal("job did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	o.Stop()
	if first.Snapshot().Status != StatusCompleted {
		t.Errorf("status = %q", first.Snapshot().Status)
	}
}

// panicStore panics on the first write only.
type panicStore struct {
	*memStore
	once sync.Once
}

func (p *panicStore) PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error {
	p.once.Do(func() { panic("disk on fire") })
	return p.memStore.PutNode(ctx, key, req)
}

func TestOrchestrator_PanicFailsOnlyThatJob(t *testing.T) {
	base, sec := testSources(t)
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 2, MaxConcurrentOracle: 1, JobTTL: time.Hour}

	o := NewOrchestrator(cfg, nil, &panicStore{memStore: newMemStore()}, quietLog())
	first := NewJob(Request{Base: base, Secondary: sec})
	second := NewJob(Request{Base: base, Secondary: sec, Strategy: weave.StrategySplice, Force: true})
	if err := o.Submit(first); err != nil {
		t.Fatal(err)
	}
	if err := o.Submit(second); err != nil {
		t.Fatal(err)
	}

	o.Start(context.Background())
	deadline := time.Now().Add(5 * time.Second)
	for !first.Snapshot().Status.Done() || !second.Snapshot().Status.Done() {
		if time.Now().After(deadline) {
			t.Fatal("jobs did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	o.Stop()

	snap := first.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "storing" {
		t.Errorf("panicked job = %s/%s, want failed/storing", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) == 0 || !strings.Contains(snap.Progress.Errors[0], "disk on fire") {
		t.Errorf("errors = %v", snap.Progress.Errors)
	}
	if got := second.Snapshot().Status; got != StatusCompleted {
		t.Errorf("second job = %s, want completed", got)
	}
	if c := o.JobCounts(); c[StatusFailed] != 1 || c[StatusCompleted] != 1 {
		t.Errorf("counts = %v", c)
	}
}
