package pipeline

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/bookweave/internal/assemble"
	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/proposal"
	"github.com/dgallion1/bookweave/internal/weave"
)

// JobStatus represents the state of a merge job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusLoading    JobStatus = "loading"
	StatusTagging    JobStatus = "tagging"
	StatusPlacing    JobStatus = "placing"
	StatusMerging    JobStatus = "merging"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Done reports whether the job has stopped changing.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// Generate asks the oracle to produce proposals before merging.
type Generate string

const (
	GenerateNone  Generate = ""
	GenerateTags  Generate = "tags"
	GenerateHints Generate = "hints"
)

// ParseGenerate accepts "", "tags" or "hints".
func ParseGenerate(s string) (Generate, error) {
	switch g := Generate(s); g {
	case GenerateNone, GenerateTags, GenerateHints:
		return g, nil
	}
	return "", fmt.Errorf("unknown generate mode %q (want tags or hints)", s)
}

// Request is the input of one merge job.
type Request struct {
	Base      *doctree.Source
	Secondary *doctree.Source
	Tags      *proposal.TagSet
	Hints     *proposal.HintSet
	Strategy  weave.Strategy
	Labels    assemble.Labels
	Generate  Generate
	Force     bool
}

// Job tracks the state of a single merge.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	RunID string `json:"run_id"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	InputHash string    `json:"input_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	req    Request
	result *weave.Result
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	OraclePages    int      `json:"oracle_pages"`
	PagesProcessed int      `json:"pages_processed"`
	OracleFailures int      `json:"oracle_failures"`
	Segments       int      `json:"segments"`
	Errors         []string `json:"errors"`
}

// NewJob wraps req in a queued job with fresh job and run ids.
func NewJob(req Request) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		RunID:     weave.NewRunID(),
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		req:       req,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes finished jobs idle for longer than the TTL and returns
// how many it removed.
func (s *JobStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Counts tallies jobs by status.
func (s *JobStore) Counts() map[JobStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[JobStatus]int)
	for _, job := range s.jobs {
		job.mu.Lock()
		counts[job.Status]++
		job.mu.Unlock()
	}
	return counts
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetOraclePages records how many pages the oracle will be asked about.
func (j *Job) SetOraclePages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.OraclePages = n
	j.UpdatedAt = time.Now()
}

// PageDone counts one oracle page, failed or not.
func (j *Job) PageDone(failed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.PagesProcessed++
	if failed {
		j.Progress.OracleFailures++
	}
	j.UpdatedAt = time.Now()
}

// SetResult stores the finished merge.
func (j *Job) SetResult(res *weave.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	if res != nil && res.Document != nil {
		j.Progress.Segments = len(res.Document.Blocks)
	}
	j.UpdatedAt = time.Now()
}

// Result returns the merge result, or nil before merging finished.
func (j *Job) Result() *weave.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Request returns the job input.
func (j *Job) Request() Request {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.req
}

func (j *Job) setRequest(req Request) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.req = req
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	RunID     string    `json:"run_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Mode      string    `json:"mode,omitempty"`
	InputHash string    `json:"input_hash,omitempty"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	snap := JobSnapshot{
		ID:        j.ID,
		RunID:     j.RunID,
		Status:    j.Status,
		Phase:     j.Phase,
		InputHash: j.InputHash,
		Progress:  j.Progress,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	snap.Progress.Errors = errs
	if j.result != nil {
		snap.Mode = string(j.result.Mode)
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// InputHash identifies a merge input: both sources, the proposals, the
// strategy and the generate mode. Labels and Force do not count.
func InputHash(req Request) (string, error) {
	data, err := json.Marshal(struct {
		Base      *doctree.Source   `json:"base"`
		Secondary *doctree.Source   `json:"secondary"`
		Tags      *proposal.TagSet  `json:"tags"`
		Hints     *proposal.HintSet `json:"hints"`
		Strategy  weave.Strategy    `json:"strategy"`
		Generate  Generate          `json:"generate"`
	}{req.Base, req.Secondary, req.Tags, req.Hints, req.Strategy, req.Generate})
	if err != nil {
		return "", fmt.Errorf("hash input: %w", err)
	}
	return ContentHashHex(data), nil
}
